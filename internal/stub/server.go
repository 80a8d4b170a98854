package stub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/batchgen/provider"
	"github.com/ncecere/batchgen/registry"
)

// Request limits enforced by the completions endpoint.
const (
	// MaxModelLen is the context length of the served models; max_tokens
	// may not exceed it.
	MaxModelLen = 2048
	// MaxN caps the number of completions per prompt.
	MaxN = 128
)

// errorEnvelope mirrors the error body vLLM's OpenAI-compatible server
// returns.
type errorEnvelope struct {
	Object  string `json:"object"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type modelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string      `json:"object"`
	Data   []modelCard `json:"data"`
}

type completionRequest struct {
	Model       string          `json:"model"`
	Prompt      json.RawMessage `json:"prompt"`
	Temperature *float64        `json:"temperature"`
	TopP        *float64        `json:"top_p"`
	N           int             `json:"n"`
	MaxTokens   *int            `json:"max_tokens"`
	Seed        *int64          `json:"seed"`
	Stop        json.RawMessage `json:"stop"`
}

type completionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

type completionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   completionUsage    `json:"usage"`
}

// NewServer returns a Fiber app exposing the models in reg through
// OpenAI-compatible /v1/models and /v1/completions endpoints.
func NewServer(reg registry.Registry) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "batchgen-stub",
		DisableStartupMessage: true,
	})

	v1 := app.Group("/v1")
	v1.Get("/models", func(c *fiber.Ctx) error {
		list := modelList{Object: "list", Data: []modelCard{}}
		for _, id := range reg.Names() {
			list.Data = append(list.Data, modelCard{ID: id, Object: "model", OwnedBy: "batchgen-stub"})
		}
		return c.JSON(list)
	})
	v1.Post("/completions", func(c *fiber.Ctx) error {
		return handleCompletions(c, reg)
	})

	return app
}

func handleCompletions(c *fiber.Ctx, reg registry.Registry) error {
	if id := c.Get("X-Request-Id"); id != "" {
		c.Set("X-Request-Id", id)
	}

	var req completionRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "BadRequestError", "invalid JSON body: "+err.Error())
	}

	model, err := reg.Model(req.Model)
	if err != nil {
		var nsm *registry.NoSuchModelError
		if errors.As(err, &nsm) {
			return writeError(c, fiber.StatusNotFound, "NotFoundError", fmt.Sprintf("The model `%s` does not exist.", req.Model))
		}
		return writeError(c, fiber.StatusInternalServerError, "InternalServerError", err.Error())
	}

	prompts, err := stringOrList(req.Prompt)
	if err != nil || len(prompts) == 0 {
		return writeError(c, fiber.StatusBadRequest, "BadRequestError", "prompt must be a string or a non-empty list of strings")
	}
	var stop []string
	if len(req.Stop) > 0 {
		if stop, err = stringOrList(req.Stop); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BadRequestError", "stop must be a string or a list of strings")
		}
	}

	// vLLM defaults for unset sampling fields.
	batch := &provider.BatchRequest{
		Model:       req.Model,
		Prompts:     prompts,
		Temperature: 1,
		TopP:        1,
		N:           req.N,
		MaxTokens:   req.MaxTokens,
		Seed:        req.Seed,
		Stop:        stop,
		RequestID:   c.Get("X-Request-Id"),
	}
	if req.Temperature != nil {
		batch.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		batch.TopP = *req.TopP
	}
	if batch.N < 0 || batch.N > MaxN {
		return writeError(c, fiber.StatusBadRequest, "BadRequestError", fmt.Sprintf("n must be between 1 and %d, got %d", MaxN, batch.N))
	}
	if batch.N == 0 {
		batch.N = 1
	}
	if mt := batch.MaxTokens; mt != nil && (*mt < 1 || *mt > MaxModelLen) {
		return writeError(c, fiber.StatusBadRequest, "BadRequestError", fmt.Sprintf("max_tokens must be between 1 and %d, got %d", MaxModelLen, *mt))
	}
	if batch.Temperature < 0 {
		return writeError(c, fiber.StatusBadRequest, "BadRequestError", "temperature must be non-negative")
	}
	if batch.TopP <= 0 || batch.TopP > 1 {
		return writeError(c, fiber.StatusBadRequest, "BadRequestError", "top_p must be in (0, 1]")
	}

	res, err := model.Generate(c.UserContext(), batch)
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "InternalServerError", err.Error())
	}

	out := completionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
	}
	for i, o := range res.Outputs {
		out.Usage.PromptTokens += len(strings.Fields(o.Prompt))
		for j, comp := range o.Completions {
			out.Choices = append(out.Choices, completionChoice{
				Index:        i*batch.N + j,
				Text:         comp.Text,
				FinishReason: comp.FinishReason,
			})
			out.Usage.CompletionTokens += len(strings.Fields(comp.Text))
		}
	}
	out.Usage.TotalTokens = out.Usage.PromptTokens + out.Usage.CompletionTokens

	return c.JSON(out)
}

func writeError(c *fiber.Ctx, status int, typ, msg string) error {
	return c.Status(status).JSON(errorEnvelope{
		Object:  "error",
		Message: msg,
		Type:    typ,
		Code:    status,
	})
}

// stringOrList decodes a JSON value that is either a string or a list
// of strings, as the completions API allows for prompt and stop.
func stringOrList(raw json.RawMessage) ([]string, error) {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}
