// Package camera defines the external capture and detection capability
// consumed by enrollment and recognition. The core never talks to video
// hardware directly; it drives whatever Device implementation it is given.
package camera

import (
	"context"
	"image"
)

// Device is an exclusive-use frame source. Read blocks for the next frame
// and fails with a device error when the source breaks; Close must be
// called on every exit path.
type Device interface {
	Read(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener acquires a Device. Acquisition failure is a device error.
type Opener func() (Device, error)

// Detector finds face regions in a frame.
type Detector interface {
	Detect(frame image.Image) []image.Rectangle
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(frame image.Image) []image.Rectangle

func (f DetectorFunc) Detect(frame image.Image) []image.Rectangle { return f(frame) }

// FullFrame is a Detector that treats the whole frame as one face region.
// Useful for pre-cropped frame sources.
var FullFrame = DetectorFunc(func(frame image.Image) []image.Rectangle {
	return []image.Rectangle{frame.Bounds()}
})
