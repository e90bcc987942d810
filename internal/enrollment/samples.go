package enrollment

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

// Sample is one captured face image. Its identity is encoded entirely in
// the file name: {name}.{serial}.{id}.{index}.jpg. The serial component is
// the face model training label and must track the owning student's serial.
type Sample struct {
	Name   string
	Serial int
	ID     string
	Index  int
	Path   string
}

func sampleFileName(name string, serial int, id string, index int) string {
	return fmt.Sprintf("%s.%d.%s.%d.jpg", name, serial, id, index)
}

// parseSampleName decodes a sample file name. Names never contain dots
// (enrollment restricts them to letters and spaces), so the format splits
// into exactly five dot-separated fields.
func parseSampleName(fileName string) (Sample, bool) {
	parts := strings.Split(fileName, ".")
	if len(parts) != 5 || parts[4] != "jpg" {
		return Sample{}, false
	}
	serial, err := strconv.Atoi(parts[1])
	if err != nil {
		return Sample{}, false
	}
	index, err := strconv.Atoi(parts[3])
	if err != nil {
		return Sample{}, false
	}
	return Sample{Name: parts[0], Serial: serial, ID: parts[2], Index: index}, true
}

// listSamples enumerates the parseable sample files in dir. Files that do
// not match the naming scheme are skipped with a warning.
func listSamples(dir string, logger *zap.Logger) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, faults.IO("reading samples directory: %v", err)
	}

	var samples []Sample
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sample, ok := parseSampleName(entry.Name())
		if !ok {
			logger.Warn("skipping unrecognized sample file", zap.String("file", entry.Name()))
			continue
		}
		sample.Path = filepath.Join(dir, entry.Name())
		samples = append(samples, sample)
	}
	return samples, nil
}

// removeSamplesFor deletes every sample belonging to the student id.
// Returns the number of files removed.
func removeSamplesFor(dir, id string, logger *zap.Logger) (int, error) {
	samples, err := listSamples(dir, logger)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, sample := range samples {
		if sample.ID != id {
			continue
		}
		if err := os.Remove(sample.Path); err != nil {
			logger.Warn("failed to delete sample", zap.String("path", sample.Path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// relabelSamples renames sample files whose serial was reassigned during
// registry reconciliation, so training labels keep matching the registry.
func relabelSamples(dir string, mapping map[int]int, logger *zap.Logger) error {
	if len(mapping) == 0 {
		return nil
	}
	samples, err := listSamples(dir, logger)
	if err != nil {
		return err
	}
	for _, sample := range samples {
		newSerial, ok := mapping[sample.Serial]
		if !ok {
			continue
		}
		newPath := filepath.Join(dir, sampleFileName(sample.Name, newSerial, sample.ID, sample.Index))
		if err := os.Rename(sample.Path, newPath); err != nil {
			return faults.IO("relabeling sample %s: %v", sample.Path, err)
		}
	}
	return nil
}
