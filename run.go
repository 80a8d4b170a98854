package batchgen

import (
	"context"
	"io"
)

// RunRequest describes a complete one-shot batch run.
type RunRequest struct {
	// Loader resolves ModelID.
	Loader ModelLoader
	// ModelID identifies the model to load, e.g. "facebook/opt-125m".
	ModelID string
	// Prompts is the ordered batch.
	Prompts []string
	// Temperature and TopP are validated by NewSamplingConfig.
	Temperature float64
	TopP        float64
	// Options carries the optional sampling parameters.
	Options []SamplingOption
}

// Run configures sampling, loads the model, generates the batch and
// renders it to w, in that order. The first failure aborts the run;
// nothing is written to w unless loading and generation both succeed.
func Run(ctx context.Context, req RunRequest, w io.Writer) error {
	cfg, err := NewSamplingConfig(req.Temperature, req.TopP, req.Options...)
	if err != nil {
		return err
	}

	model, err := LoadModel(ctx, req.Loader, req.ModelID)
	if err != nil {
		return err
	}
	defer model.Close()

	results, err := Generate(ctx, model, req.Prompts, cfg)
	if err != nil {
		return err
	}

	return Render(w, results)
}
