package facemodel

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// embedSize is the side of the square grayscale thumbnail a face is
// reduced to before comparison.
const embedSize = 64

// Embed reduces a face region to a unit-length grayscale vector. The same
// embedding is used for training and prediction, so its exact shape only
// has to be stable, not optimal.
func Embed(face image.Image) []float32 {
	small := image.NewGray(image.Rect(0, 0, embedSize, embedSize))
	draw.CatmullRom.Scale(small, small.Bounds(), face, face.Bounds(), draw.Over, nil)

	vec := make([]float32, embedSize*embedSize)
	var norm float64
	for y := 0; y < embedSize; y++ {
		for x := 0; x < embedSize; x++ {
			g := color.GrayModel.Convert(small.At(x, y)).(color.Gray)
			v := float64(g.Y) / 255.0
			vec[y*embedSize+x] = float32(v)
			norm += v * v
		}
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
