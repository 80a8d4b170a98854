package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/ncecere/batchgen/provider"
	"github.com/ncecere/batchgen/providerutil"
)

// DefaultBaseURL is where a locally started vLLM OpenAI-compatible
// server listens.
const DefaultBaseURL = "http://localhost:8000"

// defaultModelListTTL bounds how long a /v1/models listing is reused.
const defaultModelListTTL = 30 * time.Second

// modelListKey is the single key of the model listing cache.
const modelListKey = "models"

// Client talks to an OpenAI-compatible inference server such as vLLM.
// It resolves model identifiers against the server's model listing and
// submits batches to the legacy /v1/completions endpoint.
//
// It can be configured explicitly via ClientOptions or implicitly via
// environment variables. See NewClient for configuration details.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient provider.HTTPClient
	headers    http.Header
	models     *ttlcache.Cache[string, []string]
}

// Ensure Client implements provider.ModelLoader.
var _ provider.ModelLoader = (*Client)(nil)

func (c *Client) modelsURL() string {
	if strings.HasSuffix(c.baseURL, "/v1") {
		return c.baseURL + "/models"
	}
	return c.baseURL + "/v1/models"
}

// NewClient creates a new client for an OpenAI-compatible server.
//
// Environment variables:
//   - OPENAI_API_KEY (optional; self-hosted servers usually need none)
//   - OPENAI_BASE_URL (optional, defaults to http://localhost:8000)
func NewClient(opts provider.ClientOptions) (*Client, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
		if baseURL == "" {
			baseURL = DefaultBaseURL
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("openai: base URL %q must start with http:// or https://", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = providerutil.DefaultHTTPClient()
	}

	ttl := opts.ModelListTTL
	if ttl <= 0 {
		ttl = defaultModelListTTL
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: hc,
		headers:    opts.Headers,
		models: ttlcache.New[string, []string](
			ttlcache.WithTTL[string, []string](ttl),
			ttlcache.WithDisableTouchOnHit[string, []string](),
		),
	}, nil
}

// ModelNotFoundError is returned by Load when the server does not serve
// the requested model.
type ModelNotFoundError struct {
	// ID is the requested model identifier.
	ID string
	// Served lists the model identifiers the server reported.
	Served []string
}

func (e *ModelNotFoundError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("openai: model %q is not served (available: %s)", e.ID, strings.Join(e.Served, ", "))
}

type openAIModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Load implements provider.ModelLoader. The server owns the weights, so
// loading a model means confirming the server serves it.
func (c *Client) Load(ctx context.Context, id string) (provider.BatchModel, error) {
	served, err := c.servedModels(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range served {
		if s == id {
			return c.BatchModel(id), nil
		}
	}
	return nil, &ModelNotFoundError{ID: id, Served: served}
}

// BatchModel returns a BatchModel for the given model ID without
// checking that the server serves it.
func (c *Client) BatchModel(model string) provider.BatchModel {
	return &batchModel{client: c, model: model}
}

// servedModels returns the server's model listing, reusing a cached
// copy while it is fresh.
func (c *Client) servedModels(ctx context.Context) ([]string, error) {
	if item := c.models.Get(modelListKey); item != nil {
		return item.Value(), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelsURL(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var out openAIModelList
	if err := providerutil.ReadJSON(resp, &out); err != nil {
		return nil, err
	}

	served := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		served = append(served, m.ID)
	}
	c.models.Set(modelListKey, served, ttlcache.DefaultTTL)
	return served, nil
}

// setHeaders attaches custom headers first, then enforces required ones.
func (c *Client) setHeaders(req *http.Request) {
	for k, vs := range c.headers {
		for _, v := range vs {
			if v == "" {
				continue
			}
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

// WithHTTPTimeout returns an HTTP client whose requests fail after d.
func WithHTTPTimeout(d time.Duration) provider.HTTPClient {
	return &http.Client{Timeout: d}
}
