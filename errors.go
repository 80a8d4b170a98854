package batchgen

import (
	"errors"
	"fmt"
)

// Package-level error values returned by the batchgen package.
var (
	// ErrMissingModel is returned when Generate is called without a
	// loaded Model.
	ErrMissingModel = errors.New("batchgen: missing Model")

	// ErrMissingLoader is wrapped in a ModelLoadError when LoadModel is
	// called without a ModelLoader.
	ErrMissingLoader = errors.New("batchgen: missing ModelLoader")

	// ErrEmptyModelID is wrapped in a ModelLoadError when LoadModel is
	// called with an empty identifier.
	ErrEmptyModelID = errors.New("batchgen: empty model identifier")

	// ErrInvalidSampling is returned when Generate receives a zero
	// SamplingConfig instead of one built by NewSamplingConfig.
	ErrInvalidSampling = errors.New("batchgen: sampling config was not built with NewSamplingConfig")
)

// InvalidConfigurationError indicates that a sampling parameter is out
// of its valid range. It is detected before any model work starts.
type InvalidConfigurationError struct {
	// Parameter is the name of the invalid parameter.
	Parameter string
	// Value is the offending value.
	Value any
	// Message describes why the value is considered invalid.
	Message string
}

func (e *InvalidConfigurationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("batchgen: invalid configuration for parameter %s (%v): %s", e.Parameter, e.Value, e.Message)
}

// ModelLoadError indicates that a model identifier could not be
// resolved or loaded. It is fatal; nothing retries it.
type ModelLoadError struct {
	// Identifier is the model identifier that was requested.
	Identifier string
	// Err is the underlying cause.
	Err error
}

func (e *ModelLoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("batchgen: loading model %q: %v", e.Identifier, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// GenerationError indicates that the engine failed while decoding a
// batch. The whole batch fails; no partial results are returned.
type GenerationError struct {
	// Model is the identifier of the model that was generating.
	Model string
	// Prompts is the size of the failed batch.
	Prompts int
	// Err is the underlying cause.
	Err error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("batchgen: generating %d prompts with %q: %v", e.Prompts, e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
