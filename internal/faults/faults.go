// Package faults defines the error taxonomy shared by all stores and
// pipelines. Each kind wraps an underlying error (or a plain message) so
// callers can classify failures with errors.Is without string matching.
package faults

import (
	"errors"
	"fmt"
)

// Kind is a sentinel value identifying a class of failure.
type Kind struct{ name string }

func (k *Kind) Error() string { return k.name }

var (
	// KindValidation marks blank or malformed input, weak passwords and
	// mismatched confirmations.
	KindValidation = &Kind{"validation error"}
	// KindDuplicate marks an id/name collision declined by the caller.
	KindDuplicate = &Kind{"duplicate record"}
	// KindNotFound marks a missing registry, ledger or credential file or record.
	KindNotFound = &Kind{"not found"}
	// KindDevice marks an unavailable camera or a frame-read failure.
	KindDevice = &Kind{"device error"}
	// KindModel marks training without samples, predicting without a loaded
	// model, or a corrupt artifact.
	KindModel = &Kind{"model error"}
	// KindIO marks a file read/write failure not otherwise classified.
	KindIO = &Kind{"io error"}
)

type fault struct {
	kind *Kind
	err  error
}

func (f *fault) Error() string { return f.kind.name + ": " + f.err.Error() }

func (f *fault) Unwrap() []error { return []error{f.kind, f.err} }

func newf(kind *Kind, format string, args ...any) error {
	return &fault{kind: kind, err: fmt.Errorf(format, args...)}
}

// Validation builds a validation error.
func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }

// Duplicate builds a duplicate-record error.
func Duplicate(format string, args ...any) error { return newf(KindDuplicate, format, args...) }

// NotFound builds a not-found error.
func NotFound(format string, args ...any) error { return newf(KindNotFound, format, args...) }

// Device builds a device error.
func Device(format string, args ...any) error { return newf(KindDevice, format, args...) }

// Model builds a model error.
func Model(format string, args ...any) error { return newf(KindModel, format, args...) }

// IO wraps an underlying file error.
func IO(format string, args ...any) error { return newf(KindIO, format, args...) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, KindValidation) }

// IsDuplicate reports whether err is a duplicate-record error.
func IsDuplicate(err error) bool { return errors.Is(err, KindDuplicate) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, KindNotFound) }

// IsDevice reports whether err is a device error.
func IsDevice(err error) bool { return errors.Is(err, KindDevice) }

// IsModel reports whether err is a model error.
func IsModel(err error) bool { return errors.Is(err, KindModel) }

// IsIO reports whether err is an io error.
func IsIO(err error) bool { return errors.Is(err, KindIO) }
