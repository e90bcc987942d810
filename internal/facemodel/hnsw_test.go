package facemodel

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

// gradientFace builds a synthetic face image with a distinct brightness
// pattern per seed, so different seeds embed far apart.
func gradientFace(seed int) image.Image {
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			v := (x*(seed+1) + y*seed*3) % 256
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

func trainedModel(t *testing.T) *HNSW {
	t.Helper()
	m := NewHNSW()
	samples := []image.Image{
		gradientFace(1), gradientFace(1),
		gradientFace(7), gradientFace(7),
	}
	labels := []int{1, 1, 2, 2}
	if err := m.Train(samples, labels); err != nil {
		t.Fatalf("train: %v", err)
	}
	return m
}

func TestPredictSelfMatch(t *testing.T) {
	m := trainedModel(t)

	label, distance, err := m.Predict(gradientFace(1))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if label != 1 {
		t.Errorf("label = %d, want 1", label)
	}
	if distance > 1 {
		t.Errorf("self-match distance = %f, want near 0", distance)
	}

	label, _, err = m.Predict(gradientFace(7))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if label != 2 {
		t.Errorf("label = %d, want 2", label)
	}
}

func TestPredictUntrained(t *testing.T) {
	m := NewHNSW()
	_, _, err := m.Predict(gradientFace(1))
	if err == nil {
		t.Fatal("expected error")
	}
	if !faults.IsModel(err) {
		t.Errorf("expected model error, got %v", err)
	}
	if m.Trained() {
		t.Error("fresh model reports trained")
	}
}

func TestTrainValidation(t *testing.T) {
	m := trainedModel(t)

	if err := m.Train(nil, nil); !faults.IsModel(err) {
		t.Errorf("empty train: expected model error, got %v", err)
	}
	if err := m.Train([]image.Image{gradientFace(1)}, []int{1, 2}); !faults.IsModel(err) {
		t.Errorf("mismatched labels: expected model error, got %v", err)
	}

	// A failed train leaves the previous state usable.
	if !m.Trained() {
		t.Fatal("model lost trained state after failed train")
	}
	if label, _, err := m.Predict(gradientFace(1)); err != nil || label != 1 {
		t.Errorf("predict after failed train: label=%d err=%v", label, err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := trainedModel(t)
	path := filepath.Join(t.TempDir(), "model.bin")

	if err := m.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewHNSW()
	if err := restored.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !restored.Trained() {
		t.Fatal("restored model reports untrained")
	}

	wantLabel, wantDistance, err := m.Predict(gradientFace(7))
	if err != nil {
		t.Fatal(err)
	}
	gotLabel, gotDistance, err := restored.Predict(gradientFace(7))
	if err != nil {
		t.Fatalf("predict on restored model: %v", err)
	}
	if gotLabel != wantLabel {
		t.Errorf("restored label = %d, want %d", gotLabel, wantLabel)
	}
	if math.Abs(gotDistance-wantDistance) > 1e-6 {
		t.Errorf("restored distance = %f, want %f", gotDistance, wantDistance)
	}
}

func TestSaveUntrained(t *testing.T) {
	m := NewHNSW()
	err := m.Save(filepath.Join(t.TempDir(), "model.bin"))
	if !faults.IsModel(err) {
		t.Errorf("expected model error, got %v", err)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	m := NewHNSW()
	err := m.Load(filepath.Join(t.TempDir(), "nope.bin"))
	if !faults.IsModel(err) {
		t.Errorf("expected model error, got %v", err)
	}
}

func TestLoadCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(path, []byte("not a gob stream"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewHNSW()
	err := m.Load(path)
	if !faults.IsModel(err) {
		t.Errorf("expected model error, got %v", err)
	}
	if m.Trained() {
		t.Error("model reports trained after corrupt load")
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	vec := Embed(gradientFace(3))
	if len(vec) != embedSize*embedSize {
		t.Fatalf("embedding length = %d, want %d", len(vec), embedSize*embedSize)
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-3 {
		t.Errorf("embedding norm = %f, want 1", norm)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if d := CosineDistance(a, a); d > 1e-9 {
		t.Errorf("identical vectors: distance = %f, want 0", d)
	}
	if d := CosineDistance(a, b); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors: distance = %f, want 1", d)
	}
	if d := CosineDistance(a, []float32{1, 0}); d != 2 {
		t.Errorf("length mismatch: distance = %f, want 2", d)
	}
	if d := CosineDistance(a, []float32{0, 0, 0}); d != 2 {
		t.Errorf("zero vector: distance = %f, want 2", d)
	}
}
