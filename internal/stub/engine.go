// Package stub provides a deterministic stand-in for an inference
// engine, both in-process and behind an OpenAI-compatible HTTP server.
//
// Completions are strings of words picked from a fixed vocabulary by a
// PRNG keyed on the prompt. They carry no meaning; they exist so the
// client can be exercised end to end without accelerators.
package stub

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"github.com/ncecere/batchgen/provider"
	"github.com/ncecere/batchgen/registry"
)

// DefaultMaxTokens matches the completion length vLLM uses when a
// request does not set max_tokens.
const DefaultMaxTokens = 16

// ErrBatchTooLarge is returned when a batch exceeds Engine.MaxBatch.
var ErrBatchTooLarge = errors.New("stub: batch exceeds engine capacity")

var vocabulary = []string{
	"the", "a", "blue", "ocean", "city", "river", "quiet", "name",
	"is", "was", "and", "of", "large", "small", "bright", "morning",
	"Paris", "Pacific", "Alice", "north", "light", "stone", "over", "near",
}

// Engine is a deterministic provider.BatchModel.
//
// With temperature 0 the output depends only on the prompt, so repeated
// calls return identical completions. With a positive temperature the
// output also depends on the seed and on the completion index; without
// a seed it is random.
type Engine struct {
	// MaxBatch caps the number of sequences per batch, counting each
	// of the N completions of every prompt. Zero means no cap. Larger
	// batches fail as a whole, mimicking an out-of-memory engine.
	MaxBatch int
}

// Ensure Engine implements provider.BatchModel.
var _ provider.BatchModel = (*Engine)(nil)

// Generate implements provider.BatchModel.
func (e *Engine) Generate(ctx context.Context, req *provider.BatchRequest) (*provider.BatchResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Temperature < 0 {
		return nil, fmt.Errorf("stub: temperature %g must be >= 0", req.Temperature)
	}
	if req.TopP <= 0 || req.TopP > 1 {
		return nil, fmt.Errorf("stub: top_p %g must be in (0, 1]", req.TopP)
	}

	n := req.N
	if n <= 0 {
		n = 1
	}
	if e.MaxBatch > 0 && len(req.Prompts) > 0 && n > e.MaxBatch/len(req.Prompts) {
		return nil, fmt.Errorf("%w: %d prompts x %d completions, capacity %d",
			ErrBatchTooLarge, len(req.Prompts), n, e.MaxBatch)
	}
	maxTokens := DefaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	outputs := make([]provider.Output, len(req.Prompts))
	for i, prompt := range req.Prompts {
		completions := make([]provider.Completion, n)
		for j := range completions {
			text := complete(newSource(prompt, j, req), maxTokens)
			completions[j] = truncate(text, req.Stop)
		}
		outputs[i] = provider.Output{Prompt: prompt, Completions: completions}
	}
	return &provider.BatchResponse{Outputs: outputs}, nil
}

// newSource picks the PRNG for one completion. Greedy decoding ignores
// the seed and the completion index.
func newSource(prompt string, index int, req *provider.BatchRequest) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(prompt))
	key := h.Sum64()

	if req.Temperature == 0 {
		return rand.New(rand.NewPCG(key, 0))
	}
	if req.Seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(key^uint64(*req.Seed), uint64(index)))
}

func complete(rng *rand.Rand, maxTokens int) string {
	var b strings.Builder
	for range maxTokens {
		b.WriteByte(' ')
		b.WriteString(vocabulary[rng.IntN(len(vocabulary))])
	}
	return b.String()
}

// truncate cuts text at the earliest stop sequence.
func truncate(text string, stop []string) provider.Completion {
	cut := -1
	for _, s := range stop {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut < 0 {
		return provider.Completion{Text: text, FinishReason: "length"}
	}
	return provider.Completion{Text: text[:cut], FinishReason: "stop"}
}

// NewLoader returns a registry serving one stub Engine per model ID.
func NewLoader(engine *Engine, ids ...string) *registry.InMemoryRegistry {
	reg := registry.NewInMemoryRegistry()
	for _, id := range ids {
		reg.Register(id, engine)
	}
	return reg
}
