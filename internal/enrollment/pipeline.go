// Package enrollment drives sample capture for new students and the
// training step that turns the captured samples into a model artifact.
package enrollment

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"unicode"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/kozaktomas/face-attendance/internal/facemodel"
	"github.com/kozaktomas/face-attendance/internal/faults"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// Pipeline owns the enrollment data path: camera frames in, named sample
// files and a registry record out, plus model training over the samples.
type Pipeline struct {
	registry    *registry.Store
	credentials *credentials.Store
	model       facemodel.Model
	openCamera  camera.Opener
	detector    camera.Detector
	samplesDir  string
	artifact    string
	logger      *zap.Logger

	// OnSample, when set, is called after each persisted sample with the
	// running sample count. Used for progress reporting.
	OnSample func(n int)
}

func New(
	reg *registry.Store,
	creds *credentials.Store,
	model facemodel.Model,
	openCamera camera.Opener,
	detector camera.Detector,
	samplesDir, artifactPath string,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		registry:    reg,
		credentials: creds,
		model:       model,
		openCamera:  openCamera,
		detector:    detector,
		samplesDir:  samplesDir,
		artifact:    artifactPath,
		logger:      logger,
	}
}

// validName allows letters and spaces only, as the sample file name format
// cannot carry dots or separators inside the name component.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}

// CaptureResult reports what one enrollment run produced.
type CaptureResult struct {
	Student         registry.Student
	Samples         int
	DefaultPassword string // set when a credential was created
}

// Capture acquires the camera, detects faces frame by frame and persists
// each detected region as a grayscale sample until the sample count
// exceeds maxSamples or ctx is cancelled. The serial used in sample names
// is fixed once at the start of the call. On success the student is
// appended to the registry and a default credential is created.
func (p *Pipeline) Capture(ctx context.Context, student registry.Student, maxSamples int, onDupID, onDupName registry.DuplicateDecision) (*CaptureResult, error) {
	id, name := student.ID, student.Name
	if id == "" || name == "" {
		return nil, faults.Validation("both id and name are required")
	}
	if !validName(name) {
		return nil, faults.Validation("name must contain only letters and spaces")
	}

	// Collisions are decided before the camera is touched, so a declined
	// duplicate never leaves sample files behind under a serial the next
	// enrollee would inherit.
	if err := p.registry.CheckDuplicates(student, onDupID, onDupName); err != nil {
		return nil, err
	}

	serial, err := p.registry.NextSerial()
	if err != nil {
		return nil, err
	}
	student.Serial = serial

	if err := os.MkdirAll(p.samplesDir, 0o755); err != nil {
		return nil, faults.IO("creating samples directory: %v", err)
	}

	dev, err := p.openCamera()
	if err != nil {
		return nil, faults.Device("opening camera: %v", err)
	}
	defer dev.Close()

	count := 0
	var written []string
frames:
	for {
		if err := ctx.Err(); err != nil {
			break
		}
		frame, err := dev.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			// A broken frame source ends the capture with whatever was
			// collected so far only if nothing usable remains.
			if count > 0 && faults.IsDevice(err) {
				p.logger.Warn("frame source ended during capture", zap.Error(err))
				break
			}
			return nil, err
		}
		for _, region := range p.detector.Detect(frame) {
			count++
			path := filepath.Join(p.samplesDir, sampleFileName(name, serial, id, count))
			if err := saveGraySample(frame, region, path); err != nil {
				return nil, err
			}
			written = append(written, path)
			if p.OnSample != nil {
				p.OnSample(count)
			}
		}
		if count > maxSamples {
			break frames
		}
	}

	if count == 0 {
		return nil, faults.Validation("no faces captured for %s", id)
	}

	// Append repeats the duplicate check under the file lock; a concurrent
	// registration can still decline it here, so this call's samples must
	// not outlive the failure.
	if err := p.registry.Append(student, onDupID, onDupName); err != nil {
		for _, path := range written {
			if rmErr := os.Remove(path); rmErr != nil {
				p.logger.Warn("failed to delete sample after aborted registration",
					zap.String("path", path), zap.Error(rmErr))
			}
		}
		return nil, err
	}

	result := &CaptureResult{Student: student, Samples: count}
	password, created, err := p.credentials.CreateStudent(id)
	if err != nil {
		return nil, err
	}
	if created {
		result.DefaultPassword = password
	}

	p.logger.Info("enrollment capture finished",
		zap.String("id", id),
		zap.Int("serial", serial),
		zap.Int("samples", count))
	return result, nil
}

// saveGraySample writes the region of frame as a grayscale jpeg.
func saveGraySample(frame image.Image, region image.Rectangle, path string) error {
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return faults.Validation("detected region outside frame")
	}
	gray := image.NewGray(region)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(frame.At(x, y)))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return faults.IO("creating sample file: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, gray, nil); err != nil {
		return faults.IO("encoding sample: %v", err)
	}
	return nil
}

// Train builds (image, label) pairs from every sample file, fits the model
// and persists the artifact. Unreadable sample files are skipped with a
// warning; an empty training set is a model error.
func (p *Pipeline) Train(ctx context.Context) (int, error) {
	samples, err := listSamples(p.samplesDir, p.logger)
	if err != nil {
		return 0, err
	}

	var (
		images []image.Image
		labels []int
	)
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		img, err := loadImage(sample.Path)
		if err != nil {
			p.logger.Warn("skipping unreadable sample", zap.String("path", sample.Path), zap.Error(err))
			continue
		}
		images = append(images, img)
		labels = append(labels, sample.Serial)
	}

	if len(images) == 0 {
		return 0, faults.Model("no valid training data found")
	}

	if err := p.model.Train(images, labels); err != nil {
		return 0, err
	}
	if err := p.model.Save(p.artifact); err != nil {
		return 0, err
	}

	p.logger.Info("model trained",
		zap.Int("samples", len(images)),
		zap.String("artifact", p.artifact))
	return len(images), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// Remove cascades a registration removal: the registry record, the
// student's samples, and the credential file. Surviving students' samples
// are relabeled to their reconciled serials so training labels stay
// consistent with the registry.
func (p *Pipeline) Remove(id string) (bool, error) {
	removed, relabel, err := p.registry.Remove(id)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}
	if _, err := removeSamplesFor(p.samplesDir, id, p.logger); err != nil {
		return true, err
	}
	if err := relabelSamples(p.samplesDir, relabel, p.logger); err != nil {
		return true, err
	}
	if err := p.credentials.RemoveStudent(id); err != nil {
		return true, err
	}
	return true, nil
}

// CountSamples returns how many sample files belong to the student id.
func (p *Pipeline) CountSamples(id string) (int, error) {
	samples, err := listSamples(p.samplesDir, p.logger)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sample := range samples {
		if sample.ID == id {
			n++
		}
	}
	return n, nil
}
