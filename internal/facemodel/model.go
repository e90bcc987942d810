// Package facemodel is the recognition capability boundary: it trains on
// labeled face samples and predicts a label with a dissimilarity distance
// for a new face. Lower distance means a better match; a prediction is a
// match only when the distance is under the configured threshold.
package facemodel

import "image"

// DefaultThreshold is the historical acceptance cutoff. It is a tunable,
// not a law of nature; override it through configuration.
const DefaultThreshold = 50.0

// Model is the trained recognizer. Implementations must keep the distance
// polarity (lower = better) or renormalize consistently.
type Model interface {
	// Train replaces the model state with one fitted to the labeled
	// samples. It is all-or-nothing; a failed Train leaves the previous
	// state intact.
	Train(samples []image.Image, labels []int) error

	// Predict returns the best-matching label and its distance. It fails
	// with a model error when no trained state is loaded.
	Predict(face image.Image) (label int, distance float64, err error)

	// Save persists the trained state to path, writing a temp file and
	// renaming so a failure never leaves a half-written artifact.
	Save(path string) error

	// Load restores trained state from path. A corrupt artifact is a
	// model error.
	Load(path string) error

	// Trained reports whether the model can predict.
	Trained() bool
}
