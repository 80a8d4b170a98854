// Package config loads batchgen's TOML configuration and resolves
// environment overrides.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ncecere/batchgen"
)

// Supported backends.
const (
	BackendOpenAI = "openai"
	BackendStub   = "stub"
)

//go:embed default.toml
var defaultTOML string

// Config is the full client configuration.
type Config struct {
	Backend  string         `toml:"backend"`
	Model    string         `toml:"model"`
	Prompts  []string       `toml:"prompts"`
	Server   ServerConfig   `toml:"server"`
	Sampling SamplingConfig `toml:"sampling"`
	Stub     StubConfig     `toml:"stub"`
}

// ServerConfig locates the OpenAI-compatible inference server.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`

	// Timeout bounds each HTTP request; zero leaves requests unbounded
	// so that only cancellation stops a long batch.
	Timeout time.Duration `toml:"timeout"`
}

// StubConfig describes the in-process stub engine used when Backend is
// "stub". Models lists the identifiers it serves; any other identifier
// fails to load, as it would against a real server.
type StubConfig struct {
	Models   []string `toml:"models"`
	MaxBatch int      `toml:"max_batch"`
}

// SamplingConfig mirrors batchgen.SamplingConfig in file form.
// Temperature and TopP are pointers because 0 is a meaningful value.
type SamplingConfig struct {
	Temperature *float64 `toml:"temperature"`
	TopP        *float64 `toml:"top_p"`
	MaxTokens   int      `toml:"max_tokens"`
	N           int      `toml:"n"`
	Seed        *int64   `toml:"seed"`
	Stop        []string `toml:"stop"`
}

// Default returns the configuration from the embedded default.toml.
func Default() *Config {
	var cfg Config
	if _, err := toml.Decode(defaultTOML, &cfg); err != nil {
		panic("config: invalid embedded default.toml: " + err.Error())
	}
	return &cfg
}

// Load reads the config file at path. An empty path or a missing file
// yields the defaults; fields missing from the file take their default
// values. Unknown keys are rejected so typos do not pass silently.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults(Default())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults(d *Config) {
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if len(c.Prompts) == 0 {
		c.Prompts = d.Prompts
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = d.Server.BaseURL
	}
	if len(c.Stub.Models) == 0 {
		c.Stub.Models = d.Stub.Models
	}
	if c.Sampling.Temperature == nil {
		c.Sampling.Temperature = d.Sampling.Temperature
	}
	if c.Sampling.TopP == nil {
		c.Sampling.TopP = d.Sampling.TopP
	}
}

// Validate checks settings that are not sampling parameters; those are
// validated by batchgen.NewSamplingConfig.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOpenAI, BackendStub:
	default:
		return fmt.Errorf("config: unknown backend %q (want %q or %q)", c.Backend, BackendOpenAI, BackendStub)
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("config: server.timeout %s must not be negative", c.Server.Timeout)
	}
	if c.Stub.MaxBatch < 0 {
		return fmt.Errorf("config: stub.max_batch %d must not be negative", c.Stub.MaxBatch)
	}
	for _, id := range c.Stub.Models {
		if id == "" {
			return errors.New("config: stub.models must not contain empty identifiers")
		}
	}
	return nil
}

// Temperature returns the configured temperature.
func (c *Config) Temperature() float64 {
	if c.Sampling.Temperature == nil {
		return 0
	}
	return *c.Sampling.Temperature
}

// TopP returns the configured top-p; an unset value is reported as 0 so
// that sampling validation rejects it.
func (c *Config) TopP() float64 {
	if c.Sampling.TopP == nil {
		return 0
	}
	return *c.Sampling.TopP
}

// SamplingOptions converts the optional sampling settings into
// batchgen options. Zero values are left to the engine defaults.
func (c *Config) SamplingOptions() []batchgen.SamplingOption {
	var opts []batchgen.SamplingOption
	s := c.Sampling
	if s.MaxTokens != 0 {
		opts = append(opts, batchgen.WithMaxTokens(s.MaxTokens))
	}
	if s.N != 0 {
		opts = append(opts, batchgen.WithN(s.N))
	}
	if s.Seed != nil {
		opts = append(opts, batchgen.WithSeed(*s.Seed))
	}
	if len(s.Stop) > 0 {
		opts = append(opts, batchgen.WithStop(s.Stop...))
	}
	return opts
}

// ResolveModel returns the model identifier.
// Priority: $BATCHGEN_MODEL env > config value.
func ResolveModel(cfg *Config) string {
	if model := os.Getenv("BATCHGEN_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Model
	}
	return ""
}

// ResolveBaseURL returns the inference server base URL.
// Priority: $BATCHGEN_BASE_URL env > config value.
func ResolveBaseURL(cfg *Config) string {
	if url := os.Getenv("BATCHGEN_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Server.BaseURL
	}
	return ""
}

// ResolveAPIKey returns the inference server API key.
// Priority: $BATCHGEN_API_KEY env > config value.
func ResolveAPIKey(cfg *Config) string {
	if key := os.Getenv("BATCHGEN_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Server.APIKey
	}
	return ""
}
