package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/batchgen"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batchgen.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_MatchesSampleRun(t *testing.T) {
	cfg := Default()

	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, "facebook/opt-125m", cfg.Model)
	assert.Equal(t, []string{"Hello, my name is", "The capital of France is", "The largest ocean is"}, cfg.Prompts)
	assert.Equal(t, 0.8, cfg.Temperature())
	assert.Equal(t, 0.95, cfg.TopP())
	assert.Empty(t, cfg.SamplingOptions())
	assert.Equal(t, []string{"facebook/opt-125m"}, cfg.Stub.Models)
	assert.Zero(t, cfg.Server.Timeout)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
model = "gpt2"

[sampling]
temperature = 0.0
max_tokens = 32
n = 2
seed = 7
stop = ["\n"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt2", cfg.Model)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Len(t, cfg.Prompts, 3)
	assert.Equal(t, 0.0, cfg.Temperature(), "explicit zero temperature must survive defaults")
	assert.Equal(t, 0.95, cfg.TopP())

	sc, err := batchgen.NewSamplingConfig(cfg.Temperature(), cfg.TopP(), cfg.SamplingOptions()...)
	require.NoError(t, err)
	assert.Equal(t, 32, sc.MaxTokens())
	assert.Equal(t, 2, sc.N())
	seed, ok := sc.Seed()
	assert.True(t, ok)
	assert.Equal(t, int64(7), seed)
	assert.Equal(t, []string{"\n"}, sc.Stop())
}

func TestLoad_ServerAndStubSections(t *testing.T) {
	path := writeConfig(t, `
backend = "stub"

[server]
timeout = "90s"

[stub]
models = ["gpt2", "facebook/opt-125m"]
max_batch = 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendStub, cfg.Backend)
	assert.Equal(t, 90*time.Second, cfg.Server.Timeout)
	assert.Equal(t, []string{"gpt2", "facebook/opt-125m"}, cfg.Stub.Models)
	assert.Equal(t, 8, cfg.Stub.MaxBatch)
	assert.Equal(t, "http://localhost:8000/v1", cfg.Server.BaseURL)
}

func TestLoad_StubModelsDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `backend = "stub"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"facebook/opt-125m"}, cfg.Stub.Models)
}

func TestLoad_RejectsInvalidServerAndStubValues(t *testing.T) {
	cases := map[string]string{
		"negative timeout":   "[server]\ntimeout = \"-1s\"\n",
		"negative max_batch": "[stub]\nmax_batch = -1\n",
		"empty model id":     "[stub]\nmodels = [\"\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[sampling]
temprature = 0.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sampling.temprature")
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, `backend = "tensorrt"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestLoad_RejectsMalformedTOML(t *testing.T) {
	_, err := Load(writeConfig(t, `model = `))
	assert.Error(t, err)
}

func TestResolve_EnvBeatsFile(t *testing.T) {
	cfg := Default()
	cfg.Server.APIKey = "from-file"

	t.Setenv("BATCHGEN_MODEL", "")
	t.Setenv("BATCHGEN_BASE_URL", "")
	t.Setenv("BATCHGEN_API_KEY", "")
	assert.Equal(t, "facebook/opt-125m", ResolveModel(cfg))
	assert.Equal(t, "http://localhost:8000/v1", ResolveBaseURL(cfg))
	assert.Equal(t, "from-file", ResolveAPIKey(cfg))

	t.Setenv("BATCHGEN_MODEL", "gpt2")
	t.Setenv("BATCHGEN_BASE_URL", "http://gpu-box:8000/v1")
	t.Setenv("BATCHGEN_API_KEY", "from-env")
	assert.Equal(t, "gpt2", ResolveModel(cfg))
	assert.Equal(t, "http://gpu-box:8000/v1", ResolveBaseURL(cfg))
	assert.Equal(t, "from-env", ResolveAPIKey(cfg))

	assert.Equal(t, "gpt2", ResolveModel(nil))
}
