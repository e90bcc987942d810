// Package session runs the live recognition loop: frames in, predictions
// resolved against the registry, attendance rows out. One Session value is
// one run from camera acquisition to release.
package session

import (
	"context"
	"image"
	"image/draw"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facemodel"
	"github.com/kozaktomas/face-attendance/internal/faults"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// State of the recognition run.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// EventKind classifies what happened for one detected face.
type EventKind string

const (
	// EventRecorded means an attendance row was written for the match.
	EventRecorded EventKind = "recorded"
	// EventMatched means the face matched a student but the dedup policy
	// suppressed a new row.
	EventMatched EventKind = "matched"
	// EventUnknown means the prediction was out of threshold or the label
	// did not resolve to a student.
	EventUnknown EventKind = "unknown"
)

// Event is the per-face report delivered to the observer. It feeds
// presentation only and is never persisted.
type Event struct {
	Kind     EventKind
	Student  *registry.Student
	Label    int
	Distance float64
	At       time.Time
}

// Options configure a Session run.
type Options struct {
	Threshold float64 // maximum accepted prediction distance
	Dedup     string  // config.DedupSession or config.DedupStudent
	// Observer receives one Event per detected face. Optional.
	Observer func(Event)
	// Now supplies timestamps for attendance rows. Defaults to time.Now.
	Now func() time.Time
}

// Session is the recognition state machine. A Session value runs once.
type Session struct {
	id         string
	model      facemodel.Model
	registry   *registry.Store
	ledger     *ledger.Ledger
	openCamera camera.Opener
	detector   camera.Detector
	opts       Options
	logger     *zap.Logger

	state State

	// Dedup state, initialized at Running entry. recorded implements the
	// historical run-wide cap; recordedIDs the per-student variant.
	recorded    bool
	recordedIDs map[string]bool
}

func New(
	model facemodel.Model,
	reg *registry.Store,
	led *ledger.Ledger,
	openCamera camera.Opener,
	detector camera.Detector,
	opts Options,
	logger *zap.Logger,
) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = facemodel.DefaultThreshold
	}
	if opts.Dedup == "" {
		opts.Dedup = config.DedupSession
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		id:         uuid.NewString(),
		model:      model,
		registry:   reg,
		ledger:     led,
		openCamera: openCamera,
		detector:   detector,
		opts:       opts,
		logger:     logger,
	}
}

// ID returns the unique id of this run.
func (s *Session) ID() string { return s.id }

// State returns the current run state.
func (s *Session) State() State { return s.state }

// Recorded reports how many attendance rows this run has written.
func (s *Session) Recorded() int { return len(s.recordedIDs) }

// Run drives the loop until ctx is cancelled or the frame source fails.
// The camera is released on every exit path. Cancellation is a clean stop;
// a mid-loop frame failure stops the run and surfaces the device error.
func (s *Session) Run(ctx context.Context) error {
	if s.state != Idle {
		return faults.Validation("session already ran")
	}
	if !s.model.Trained() {
		return faults.Model("model is untrained")
	}

	dev, err := s.openCamera()
	if err != nil {
		return faults.Device("opening camera: %v", err)
	}

	s.state = Running
	s.recorded = false
	s.recordedIDs = make(map[string]bool)
	s.logger.Info("recognition session started", zap.String("session", s.id))

	defer func() {
		dev.Close()
		s.state = Stopped
		s.logger.Info("recognition session stopped",
			zap.String("session", s.id),
			zap.Int("recorded", len(s.recordedIDs)))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		frame, err := dev.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, region := range s.detector.Detect(frame) {
			face := crop(frame, region)
			if face == nil {
				continue
			}
			if err := s.handleFace(face); err != nil {
				return err
			}
		}
	}
}

// shouldRecord applies the dedup policy for a resolved student.
func (s *Session) shouldRecord(id string) bool {
	switch s.opts.Dedup {
	case config.DedupStudent:
		return !s.recordedIDs[id]
	default:
		// Historical behavior: at most one row per run, whoever is seen
		// first, regardless of how many students are recognized.
		return !s.recorded
	}
}

// crop extracts a face region from the frame. Returns nil when the region
// falls outside the frame.
func crop(frame image.Image, region image.Rectangle) image.Image {
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return nil
	}
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := frame.(subImager); ok {
		return si.SubImage(region)
	}
	out := image.NewRGBA(region)
	draw.Draw(out, region, frame, region.Min, draw.Src)
	return out
}

func (s *Session) handleFace(face image.Image) error {
	now := s.opts.Now()

	label, distance, err := s.model.Predict(face)
	if err != nil {
		return err
	}
	if distance >= s.opts.Threshold {
		s.emit(Event{Kind: EventUnknown, Label: label, Distance: distance, At: now})
		return nil
	}

	student, err := s.registry.GetBySerial(label)
	if err != nil {
		return err
	}
	if student == nil {
		s.emit(Event{Kind: EventUnknown, Label: label, Distance: distance, At: now})
		return nil
	}

	if !s.shouldRecord(student.ID) {
		s.emit(Event{Kind: EventMatched, Student: student, Label: label, Distance: distance, At: now})
		return nil
	}

	record := ledger.NewRecord(student.ID, student.Name, student.Department, student.Branch, student.Program, now)
	if err := s.ledger.Append(record); err != nil {
		return err
	}
	s.recorded = true
	s.recordedIDs[student.ID] = true
	s.emit(Event{Kind: EventRecorded, Student: student, Label: label, Distance: distance, At: now})
	s.logger.Info("attendance recorded",
		zap.String("session", s.id),
		zap.String("id", student.ID),
		zap.Float64("distance", distance))
	return nil
}

func (s *Session) emit(e Event) {
	if s.opts.Observer != nil {
		s.opts.Observer(e)
	}
}
