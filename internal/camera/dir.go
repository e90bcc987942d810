package camera

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

// DirDevice reads frames from image files in a directory, in name order.
// It stands in for a physical camera in tests and headless deployments;
// the source is exhausted once every file has been read.
type DirDevice struct {
	paths  []string
	pos    int
	closed bool
}

// OpenDir opens a directory as a frame source. An unreadable or empty
// directory is a device error, matching a camera that will not open.
func OpenDir(dir string) (*DirDevice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, faults.Device("opening frame directory %s: %v", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") || strings.HasSuffix(name, ".png") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, faults.Device("no frames in %s", dir)
	}
	sort.Strings(paths)
	return &DirDevice{paths: paths}, nil
}

func (d *DirDevice) Read(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.closed {
		return nil, faults.Device("frame source is closed")
	}
	if d.pos >= len(d.paths) {
		return nil, faults.Device("frame source exhausted")
	}
	path := d.paths[d.pos]
	d.pos++

	f, err := os.Open(path)
	if err != nil {
		return nil, faults.Device("reading frame %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, faults.Device("decoding frame %s: %v", path, err)
	}
	return img, nil
}

func (d *DirDevice) Close() error {
	d.closed = true
	return nil
}
