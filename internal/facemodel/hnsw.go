package facemodel

import (
	"encoding/gob"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/faults"
)

// hnswMaxNeighbors is the M parameter of the graph.
const hnswMaxNeighbors = 16

// distanceScale maps cosine distance (0..2) onto the 0..200 range the
// historical threshold of 50 was calibrated against.
const distanceScale = 100.0

// HNSW is the local Model implementation: an approximate nearest-neighbour
// index over sample embeddings, one node per training sample.
type HNSW struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int]
	labels  []int       // label per sample index
	vectors [][]float32 // embedding per sample index
}

func NewHNSW() *HNSW {
	return &HNSW{}
}

// artifact is the persisted model state. The graph itself is cheap to
// rebuild, so only the labeled vectors are stored.
type artifact struct {
	Labels  []int
	Vectors [][]float32
}

func buildGraph(vectors [][]float32) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	for i, vec := range vectors {
		g.Add(hnsw.MakeNode(i, vec))
	}
	return g
}

// Train fits the index to the labeled samples. The previous state is kept
// until the new one is complete.
func (m *HNSW) Train(samples []image.Image, labels []int) error {
	if len(samples) == 0 {
		return faults.Model("no training samples")
	}
	if len(samples) != len(labels) {
		return faults.Model("got %d samples but %d labels", len(samples), len(labels))
	}

	vectors := make([][]float32, len(samples))
	for i, sample := range samples {
		vectors[i] = Embed(sample)
	}
	g := buildGraph(vectors)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = g
	m.labels = append([]int(nil), labels...)
	m.vectors = vectors
	return nil
}

// Predict returns the label of the nearest training sample and the scaled
// cosine distance to it.
func (m *HNSW) Predict(face image.Image) (int, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph == nil {
		return 0, 0, faults.Model("model is untrained")
	}

	query := Embed(face)
	neighbors := m.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return 0, 0, faults.Model("search returned no neighbors")
	}

	n := neighbors[0]
	distance := CosineDistance(query, n.Value) * distanceScale
	return m.labels[n.Key], distance, nil
}

// Save writes the artifact to path via a temp file and atomic rename.
func (m *HNSW) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph == nil {
		return faults.Model("nothing to save: model is untrained")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return faults.IO("creating artifact directory: %v", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return faults.IO("creating temp artifact: %v", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(artifact{Labels: m.labels, Vectors: m.vectors}); err != nil {
		return faults.IO("encoding artifact: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return faults.IO("closing temp artifact: %v", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return faults.IO("replacing artifact: %v", err)
	}
	return nil
}

// Load restores the model from an artifact file and rebuilds the graph.
func (m *HNSW) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return faults.Model("no trained artifact at %s", path)
		}
		return faults.IO("opening artifact: %v", err)
	}
	defer f.Close()

	var a artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return faults.Model("corrupt artifact %s: %v", path, err)
	}
	if len(a.Labels) != len(a.Vectors) || len(a.Labels) == 0 {
		return faults.Model("corrupt artifact %s: inconsistent sample count", path)
	}

	g := buildGraph(a.Vectors)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = g
	m.labels = a.Labels
	m.vectors = a.Vectors
	return nil
}

// Trained reports whether the model can predict.
func (m *HNSW) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph != nil
}
