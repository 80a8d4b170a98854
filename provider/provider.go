package provider

import (
	"context"
	"net/http"
	"time"
)

// HTTPClient is the minimal interface required from an HTTP client.
// It matches the Do method on *http.Client and allows callers to
// substitute custom clients or middleware.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOptions are shared options for HTTP-backed generation services.
// Providers typically accept these options in their constructors.
type ClientOptions struct {
	// BaseURL is the root URL of the inference server API.
	BaseURL string
	// APIKey is the bearer token used for authentication. Many
	// self-hosted servers run without one.
	APIKey string
	// HTTPClient is the underlying HTTP client. If nil, a default
	// client should be used by the provider.
	HTTPClient HTTPClient
	// Headers contains additional HTTP headers that providers should
	// attach to every outbound request. Provider implementations
	// decide how these interact with their own required headers.
	Headers http.Header
	// ModelListTTL controls how long a provider may reuse the list of
	// served models when resolving identifiers. Zero means provider default.
	ModelListTTL time.Duration
}

// ModelLoader resolves a model identifier (for example a registry path
// such as "facebook/opt-125m") into a model ready for generation.
//
// Load may block for a long time while weights are fetched or the
// server warms up.
type ModelLoader interface {
	Load(ctx context.Context, id string) (BatchModel, error)
}

// BatchModel is the low-level provider-facing interface for batch
// text generation. Implementations must return exactly one Output per
// prompt, in prompt order, or an error for the whole batch.
type BatchModel interface {
	Generate(ctx context.Context, req *BatchRequest) (*BatchResponse, error)
}

// BatchRequest is a provider-level request structure close to the wire
// format used by completion APIs.
type BatchRequest struct {
	Model       string
	Prompts     []string
	Temperature float64
	TopP        float64
	// MaxTokens limits each completion. Nil means engine default.
	MaxTokens *int
	// N is the number of completions per prompt.
	N int
	// Seed makes sampling reproducible when set.
	Seed *int64
	Stop []string
	// RequestID correlates the batch across client and server logs.
	RequestID string
}

// BatchResponse holds one Output per prompt of the request.
type BatchResponse struct {
	Outputs []Output
}

// Output is the generation result for a single prompt.
type Output struct {
	Prompt      string
	Completions []Completion
}

// Completion is one generated continuation.
type Completion struct {
	Text         string
	FinishReason string
}
