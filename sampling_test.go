package batchgen

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSamplingConfig_ValidPreservesValues(t *testing.T) {
	cases := []struct{ temperature, topP float64 }{
		{0, 1},
		{0.8, 0.95},
		{1, 0.5},
		{2.5, 1e-9},
		{100, 1},
	}
	for _, tc := range cases {
		cfg, err := NewSamplingConfig(tc.temperature, tc.topP)
		require.NoError(t, err, "temperature=%v topP=%v", tc.temperature, tc.topP)
		assert.Equal(t, tc.temperature, cfg.Temperature())
		assert.Equal(t, tc.topP, cfg.TopP())
		assert.Equal(t, 1, cfg.N())
		assert.Equal(t, 0, cfg.MaxTokens())
		_, ok := cfg.Seed()
		assert.False(t, ok)
		assert.False(t, cfg.IsZero())
	}
}

func TestNewSamplingConfig_InvalidIsRejected(t *testing.T) {
	cases := []struct {
		name              string
		temperature, topP float64
		wantParameter     string
	}{
		{"negative temperature", -1, 0.95, "temperature"},
		{"NaN temperature", math.NaN(), 0.95, "temperature"},
		{"zero top_p", 0.8, 0, "topP"},
		{"top_p above one", 0.8, 1.5, "topP"},
		{"negative top_p", 0.8, -0.1, "topP"},
		{"NaN top_p", 0.8, math.NaN(), "topP"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewSamplingConfig(tc.temperature, tc.topP)
			require.Error(t, err)
			assert.True(t, cfg.IsZero())

			var ice *InvalidConfigurationError
			require.True(t, errors.As(err, &ice))
			assert.Equal(t, tc.wantParameter, ice.Parameter)
		})
	}
}

func TestNewSamplingConfig_Options(t *testing.T) {
	cfg, err := NewSamplingConfig(0.8, 0.95, WithMaxTokens(32), WithN(3), WithSeed(42), WithStop("\n", "."))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.MaxTokens())
	assert.Equal(t, 3, cfg.N())
	seed, ok := cfg.Seed()
	assert.True(t, ok)
	assert.Equal(t, int64(42), seed)

	stop := cfg.Stop()
	assert.Equal(t, []string{"\n", "."}, stop)
	stop[0] = "mutated"
	assert.Equal(t, []string{"\n", "."}, cfg.Stop(), "Stop must return a copy")
}

func TestNewSamplingConfig_InvalidOptions(t *testing.T) {
	for name, opt := range map[string]SamplingOption{
		"maxTokens": WithMaxTokens(0),
		"n":         WithN(0),
		"stop":      WithStop("ok", ""),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewSamplingConfig(0.8, 0.95, opt)
			var ice *InvalidConfigurationError
			require.True(t, errors.As(err, &ice))
			assert.Equal(t, name, ice.Parameter)
		})
	}
}

func TestMustNewSamplingConfig_Panics(t *testing.T) {
	assert.NotPanics(t, func() { MustNewSamplingConfig(0.8, 0.95) })
	assert.Panics(t, func() { MustNewSamplingConfig(-1, 0.95) })
}
