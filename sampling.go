package batchgen

import (
	"fmt"
	"math"
	"slices"
)

// SamplingConfig holds the generation-control parameters shared by every
// prompt of a batch. It is immutable once constructed: build it with
// NewSamplingConfig and read it through its accessors.
type SamplingConfig struct {
	temperature float64
	topP        float64
	maxTokens   int
	n           int
	seed        *int64
	stop        []string
}

// SamplingOption sets an optional sampling parameter.
type SamplingOption func(*SamplingConfig) error

// WithMaxTokens limits the length of each completion. Without it the
// engine's own default applies.
func WithMaxTokens(n int) SamplingOption {
	return func(c *SamplingConfig) error {
		if n <= 0 {
			return &InvalidConfigurationError{Parameter: "maxTokens", Value: n, Message: "must be greater than 0"}
		}
		c.maxTokens = n
		return nil
	}
}

// WithN requests n completions per prompt. The default is 1.
func WithN(n int) SamplingOption {
	return func(c *SamplingConfig) error {
		if n < 1 {
			return &InvalidConfigurationError{Parameter: "n", Value: n, Message: "must be at least 1"}
		}
		c.n = n
		return nil
	}
}

// WithSeed makes sampling reproducible on engines that support seeding.
func WithSeed(seed int64) SamplingOption {
	return func(c *SamplingConfig) error {
		c.seed = &seed
		return nil
	}
}

// WithStop sets stop sequences that truncate a completion.
func WithStop(stop ...string) SamplingOption {
	return func(c *SamplingConfig) error {
		for _, s := range stop {
			if s == "" {
				return &InvalidConfigurationError{Parameter: "stop", Value: stop, Message: "must not contain empty sequences"}
			}
		}
		c.stop = slices.Clone(stop)
		return nil
	}
}

// NewSamplingConfig validates the sampling parameters and returns an
// immutable SamplingConfig. Temperature must be >= 0 (0 means greedy,
// deterministic decoding) and topP must lie in (0, 1].
//
// It returns an *InvalidConfigurationError for the first parameter
// found out of range. It has no side effects.
func NewSamplingConfig(temperature, topP float64, opts ...SamplingOption) (SamplingConfig, error) {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) || temperature < 0 {
		return SamplingConfig{}, &InvalidConfigurationError{
			Parameter: "temperature",
			Value:     temperature,
			Message:   "must be a finite value >= 0",
		}
	}
	if math.IsNaN(topP) || topP <= 0 || topP > 1 {
		return SamplingConfig{}, &InvalidConfigurationError{
			Parameter: "topP",
			Value:     topP,
			Message:   "must be in the range (0, 1]",
		}
	}

	cfg := SamplingConfig{
		temperature: temperature,
		topP:        topP,
		n:           1,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return SamplingConfig{}, err
		}
	}
	return cfg, nil
}

// MustNewSamplingConfig constructs a SamplingConfig and panics if
// validation fails. It is intended for configuration that is fixed at
// compile time, not for user input.
func MustNewSamplingConfig(temperature, topP float64, opts ...SamplingOption) SamplingConfig {
	cfg, err := NewSamplingConfig(temperature, topP, opts...)
	if err != nil {
		panic(fmt.Sprintf("batchgen: invalid sampling config: %v", err))
	}
	return cfg
}

// Temperature returns the sampling temperature.
func (c SamplingConfig) Temperature() float64 { return c.temperature }

// TopP returns the nucleus-sampling cutoff.
func (c SamplingConfig) TopP() float64 { return c.topP }

// MaxTokens returns the per-completion token limit, or 0 for the engine default.
func (c SamplingConfig) MaxTokens() int { return c.maxTokens }

// N returns the number of completions requested per prompt.
func (c SamplingConfig) N() int {
	if c.n < 1 {
		return 1
	}
	return c.n
}

// Seed returns the sampling seed and whether one was set.
func (c SamplingConfig) Seed() (int64, bool) {
	if c.seed == nil {
		return 0, false
	}
	return *c.seed, true
}

// Stop returns a copy of the stop sequences.
func (c SamplingConfig) Stop() []string { return slices.Clone(c.stop) }

// IsZero reports whether c was never initialised by NewSamplingConfig.
// A valid config always has a positive top-p.
func (c SamplingConfig) IsZero() bool { return c.topP == 0 }

func (c SamplingConfig) String() string {
	return fmt.Sprintf("temperature=%g top_p=%g n=%d", c.temperature, c.topP, c.N())
}
