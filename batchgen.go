// Package batchgen is a minimal batch text-generation client.
//
// It validates sampling parameters, resolves a model through an
// external generation service, submits an ordered list of prompts as a
// single batch and renders the first completion of each prompt. Model
// loading, batching, KV-cache management and sampling all live behind
// the provider.ModelLoader and provider.BatchModel interfaces.
//
// A typical run is strictly linear:
//
//	cfg, err := batchgen.NewSamplingConfig(0.8, 0.95)
//	model, err := batchgen.LoadModel(ctx, loader, "facebook/opt-125m")
//	results, err := batchgen.Generate(ctx, model, prompts, cfg)
//	err = batchgen.Render(os.Stdout, results)
//
// Run performs the same sequence in one call.
package batchgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/google/uuid"

	"github.com/ncecere/batchgen/provider"
)

// Aliases to provider-level types so callers can work through the
// batchgen package while backends implement the shared interfaces.
type (
	// ModelLoader resolves model identifiers into loaded models.
	ModelLoader = provider.ModelLoader
	// BatchModel is a provider-agnostic batch generation model.
	BatchModel = provider.BatchModel
	// Completion is one generated continuation of a prompt.
	Completion = provider.Completion
)

// Model is a loaded model handle. It is owned by the caller that
// loaded it and passed explicitly to Generate.
type Model struct {
	id      string
	backend provider.BatchModel
}

// ID returns the identifier the model was loaded under.
func (m *Model) ID() string {
	if m == nil {
		return ""
	}
	return m.id
}

// Close releases resources held by the backend, if it holds any.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	if c, ok := m.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewModel wraps an already resolved backend in a Model handle.
// Most callers use LoadModel instead.
func NewModel(id string, backend provider.BatchModel) *Model {
	return &Model{id: id, backend: backend}
}

// Result is the generation output for one prompt.
type Result struct {
	// Prompt is the original prompt text.
	Prompt string
	// Completions holds at least one generated continuation.
	Completions []Completion
}

// Text returns the first completion's text, or "" if there is none.
func (r Result) Text() string {
	if len(r.Completions) == 0 {
		return ""
	}
	return r.Completions[0].Text
}

// LoadModel resolves identifier through loader and returns an owned
// model handle. It may block for a long time.
//
// Errors:
//   - *ModelLoadError wrapping ErrMissingLoader if loader is nil.
//   - *ModelLoadError wrapping ErrEmptyModelID if identifier is empty.
//   - *ModelLoadError wrapping whatever the loader returned.
func LoadModel(ctx context.Context, loader provider.ModelLoader, identifier string) (*Model, error) {
	if loader == nil {
		return nil, &ModelLoadError{Identifier: identifier, Err: ErrMissingLoader}
	}
	if identifier == "" {
		return nil, &ModelLoadError{Identifier: identifier, Err: ErrEmptyModelID}
	}

	backend, err := loader.Load(ctx, identifier)
	if err != nil {
		return nil, &ModelLoadError{Identifier: identifier, Err: err}
	}
	if backend == nil {
		return nil, &ModelLoadError{Identifier: identifier, Err: errors.New("loader returned no model")}
	}
	return &Model{id: identifier, backend: backend}, nil
}

// Generate submits all prompts to the model as one batch and blocks
// until every completion is produced. results[i] always corresponds to
// prompts[i]. An empty prompt list yields an empty result without
// contacting the model.
//
// Errors:
//   - ErrMissingModel if model is nil.
//   - ErrInvalidSampling if cfg is the zero value.
//   - *GenerationError for any backend failure or malformed backend
//     output. No partial results are returned.
func Generate(ctx context.Context, model *Model, prompts []string, cfg SamplingConfig) ([]Result, error) {
	if model == nil || model.backend == nil {
		return nil, ErrMissingModel
	}
	if cfg.IsZero() {
		return nil, ErrInvalidSampling
	}
	if len(prompts) == 0 {
		return []Result{}, nil
	}

	req := &provider.BatchRequest{
		Model:       model.id,
		Prompts:     slices.Clone(prompts),
		Temperature: cfg.Temperature(),
		TopP:        cfg.TopP(),
		N:           cfg.N(),
		Stop:        cfg.Stop(),
		RequestID:   uuid.NewString(),
	}
	if mt := cfg.MaxTokens(); mt > 0 {
		req.MaxTokens = &mt
	}
	if seed, ok := cfg.Seed(); ok {
		req.Seed = &seed
	}

	fail := func(err error) ([]Result, error) {
		return nil, &GenerationError{Model: model.id, Prompts: len(prompts), Err: err}
	}

	res, err := model.backend.Generate(ctx, req)
	if err != nil {
		return fail(err)
	}
	if res == nil || len(res.Outputs) != len(prompts) {
		got := 0
		if res != nil {
			got = len(res.Outputs)
		}
		return fail(fmt.Errorf("expected %d results, got %d", len(prompts), got))
	}

	results := make([]Result, len(prompts))
	for i, out := range res.Outputs {
		if out.Prompt != prompts[i] {
			return fail(fmt.Errorf("result %d is for prompt %q, want %q", i, out.Prompt, prompts[i]))
		}
		if len(out.Completions) == 0 {
			return fail(fmt.Errorf("result %d has no completions", i))
		}
		results[i] = Result{
			Prompt:      prompts[i],
			Completions: slices.Clone(out.Completions),
		}
	}
	return results, nil
}
