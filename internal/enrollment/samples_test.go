package enrollment

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSampleNameRoundTrip(t *testing.T) {
	name := sampleFileName("Ada Lovelace", 3, "CS2021001", 17)
	if name != "Ada Lovelace.3.CS2021001.17.jpg" {
		t.Fatalf("unexpected file name %q", name)
	}

	sample, ok := parseSampleName(name)
	if !ok {
		t.Fatal("round trip failed to parse")
	}
	if sample.Name != "Ada Lovelace" || sample.Serial != 3 || sample.ID != "CS2021001" || sample.Index != 17 {
		t.Errorf("unexpected sample %+v", sample)
	}
}

func TestParseSampleNameRejects(t *testing.T) {
	bad := []string{
		"Ada.3.CS2021001.17.png",  // wrong extension
		"Ada.3.CS2021001.jpg",     // missing index
		"Ada.x.CS2021001.17.jpg",  // non-numeric serial
		"Ada.3.CS2021001.x.jpg",   // non-numeric index
		"Ada.3.CS.2021001.17.jpg", // too many fields
		"notes.txt",
	}
	for _, name := range bad {
		if _, ok := parseSampleName(name); ok {
			t.Errorf("parseSampleName(%q) accepted", name)
		}
	}
}

func TestListSamplesSkipsStrays(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"Ada Lovelace.1.CS2021001.1.jpg",
		"Ada Lovelace.1.CS2021001.2.jpg",
		"README.md",
		"Thumbs.db",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	samples, err := listSamples(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(samples))
	}
}

func TestListSamplesMissingDir(t *testing.T) {
	samples, err := listSamples(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	if err != nil {
		t.Fatalf("list missing dir: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples, got %d", len(samples))
	}
}

func TestRelabelSamples(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"Grace Hopper.2.CS2021002.1.jpg",
		"Grace Hopper.2.CS2021002.2.jpg",
		"Alan Turing.3.CS2021003.1.jpg",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	err := relabelSamples(dir, map[int]int{2: 1, 3: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("relabel: %v", err)
	}

	for _, want := range []string{
		"Grace Hopper.1.CS2021002.1.jpg",
		"Grace Hopper.1.CS2021002.2.jpg",
		"Alan Turing.2.CS2021003.1.jpg",
	} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("missing relabeled file %s", want)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "Grace Hopper.2.CS2021002.1.jpg")); err == nil {
		t.Error("old serial file still present")
	}
}

func TestRemoveSamplesFor(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"Ada Lovelace.1.CS2021001.1.jpg",
		"Ada Lovelace.1.CS2021001.2.jpg",
		"Grace Hopper.2.CS2021002.1.jpg",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := removeSamplesFor(dir, "CS2021001", zap.NewNop())
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(dir, "Grace Hopper.2.CS2021002.1.jpg")); err != nil {
		t.Error("unrelated sample was deleted")
	}
}
