package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyDocument     = errors.New("no extractable text in documents")
	ErrNoIndex           = errors.New("vector index has not been built")
	ErrNotReady          = errors.New("documents have not been processed yet")
	ErrPersistence       = errors.New("vector index storage failure")
	ErrIncompatibleIndex = errors.New("vector index was built with a different embedding model")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidInput      = errors.New("invalid input")

	ErrRateLimited      = errors.New("generation rate limited")
	ErrModelUnavailable = errors.New("generation model unavailable")
	ErrGeneration       = errors.New("generation failed")
)

type GenerationFailure int

const (
	FailureOther GenerationFailure = iota
	FailureRateLimited
	FailureModelUnavailable
)

func (f GenerationFailure) String() string {
	switch f {
	case FailureRateLimited:
		return "rate_limited"
	case FailureModelUnavailable:
		return "model_unavailable"
	default:
		return "other"
	}
}

// GenerationError is returned by the generation capability. It matches
// ErrGeneration and, depending on Kind, ErrRateLimited or
// ErrModelUnavailable under errors.Is.
type GenerationError struct {
	Kind GenerationFailure
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool {
	switch target {
	case ErrGeneration:
		return true
	case ErrRateLimited:
		return e.Kind == FailureRateLimited
	case ErrModelUnavailable:
		return e.Kind == FailureModelUnavailable
	}
	return false
}
