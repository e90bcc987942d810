package camera

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenDirReadsFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dev, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dev.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := dev.Read(ctx); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	_, err = dev.Read(ctx)
	if !faults.IsDevice(err) {
		t.Errorf("expected device error at end of source, got %v", err)
	}
}

func TestOpenDirEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenDir(dir)
	if !faults.IsDevice(err) {
		t.Errorf("expected device error for frameless directory, got %v", err)
	}
}

func TestOpenDirMissing(t *testing.T) {
	_, err := OpenDir(filepath.Join(t.TempDir(), "nope"))
	if !faults.IsDevice(err) {
		t.Errorf("expected device error, got %v", err)
	}
}

func TestReadAfterClose(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))

	dev, err := OpenDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = dev.Read(context.Background())
	if !faults.IsDevice(err) {
		t.Errorf("expected device error after close, got %v", err)
	}
}

func TestReadUndecodableFrame(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.jpg"), []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	dev, err := OpenDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.Close()

	_, err = dev.Read(context.Background())
	if !faults.IsDevice(err) {
		t.Errorf("expected device error for undecodable frame, got %v", err)
	}
}

func TestFullFrameDetector(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 32, 24))
	regions := FullFrame.Detect(frame)
	if len(regions) != 1 || regions[0] != frame.Bounds() {
		t.Errorf("unexpected regions %v", regions)
	}
}
