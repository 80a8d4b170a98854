package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ncecere/batchgen/provider"
	"github.com/ncecere/batchgen/providerutil"
)

// batchModel implements provider.BatchModel for the OpenAI
// /v1/completions endpoint, which accepts a list of prompts.
type batchModel struct {
	client *Client
	model  string
}

type openAICompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      []string `json:"prompt"`
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	N           int      `json:"n,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type openAICompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

type openAICompletionResponse struct {
	ID      string                   `json:"id"`
	Model   string                   `json:"model"`
	Choices []openAICompletionChoice `json:"choices"`
}

func (c *Client) completionsURL() string {
	if strings.HasSuffix(c.baseURL, "/v1") {
		return c.baseURL + "/completions"
	}
	return c.baseURL + "/v1/completions"
}

func (m *batchModel) Generate(ctx context.Context, req *provider.BatchRequest) (*provider.BatchResponse, error) {
	n := req.N
	if n <= 0 {
		n = 1
	}

	body := openAICompletionRequest{
		Model:       m.model,
		Prompt:      req.Prompts,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		N:           n,
		MaxTokens:   req.MaxTokens,
		Seed:        req.Seed,
		Stop:        req.Stop,
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.client.completionsURL(), bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	m.client.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-Id", req.RequestID)
	}

	resp, err := m.client.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	var out openAICompletionResponse
	if err := providerutil.ReadJSON(resp, &out); err != nil {
		return nil, err
	}

	return groupChoices(req.Prompts, n, out.Choices)
}

// groupChoices maps the flat choice list back onto prompts. The server
// numbers choices prompt-major: index = prompt*n + completion.
func groupChoices(prompts []string, n int, choices []openAICompletionChoice) (*provider.BatchResponse, error) {
	want := len(prompts) * n
	if len(choices) != want {
		return nil, fmt.Errorf("openai: expected %d choices for %d prompts, got %d", want, len(prompts), len(choices))
	}

	outputs := make([]provider.Output, len(prompts))
	for i, p := range prompts {
		outputs[i] = provider.Output{
			Prompt:      p,
			Completions: make([]provider.Completion, n),
		}
	}

	seen := make([]bool, want)
	for _, ch := range choices {
		if ch.Index < 0 || ch.Index >= want {
			return nil, fmt.Errorf("openai: choice index %d out of range [0, %d)", ch.Index, want)
		}
		if seen[ch.Index] {
			return nil, fmt.Errorf("openai: duplicate choice index %d", ch.Index)
		}
		seen[ch.Index] = true
		outputs[ch.Index/n].Completions[ch.Index%n] = provider.Completion{
			Text:         ch.Text,
			FinishReason: ch.FinishReason,
		}
	}

	return &provider.BatchResponse{Outputs: outputs}, nil
}
