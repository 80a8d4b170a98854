// Command batchgen loads a model through an OpenAI-compatible inference
// server, generates completions for a fixed batch of prompts and prints
// one line per prompt.
//
// Run without flags it loads facebook/opt-125m from a vLLM server at
// http://localhost:8000/v1 and completes three sample prompts with
// temperature 0.8 and top-p 0.95.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ncecere/batchgen"
	"github.com/ncecere/batchgen/internal/config"
	"github.com/ncecere/batchgen/internal/stub"
	"github.com/ncecere/batchgen/middleware"
	"github.com/ncecere/batchgen/openai"
	"github.com/ncecere/batchgen/provider"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults apply when unset or missing)")
	verbose := flag.Bool("verbose", false, "log request metadata to stderr")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("batchgen", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger, os.Stdout); err != nil {
		slog.Error("batch generation failed", "error", err)
		os.Exit(1)
	}
}

// run executes one batch as configured at configPath and writes the
// rendered results to stdout.
func run(configPath string, logger *slog.Logger, stdout io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	loader, err := newLoader(cfg)
	if err != nil {
		return err
	}
	loader = middleware.WrapLoader(loader,
		middleware.LoggingBatchModel(middleware.LoggingOptions{Logger: logger}),
		middleware.TelemetryBatchModel(middleware.TelemetryHooks{
			OnBatchCall: func(ctx context.Context, info middleware.BatchCallInfo) {
				if info.Err != nil {
					return
				}
				logger.InfoContext(ctx, "batch complete",
					"model", info.Model,
					"prompts", info.Prompts,
					"completions", info.Completions,
					"duration", info.Duration(),
				)
			},
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	modelID := config.ResolveModel(cfg)
	logger.Info("loading model", "model", modelID, "backend", cfg.Backend)

	return batchgen.Run(ctx, batchgen.RunRequest{
		Loader:      loader,
		ModelID:     modelID,
		Prompts:     cfg.Prompts,
		Temperature: cfg.Temperature(),
		TopP:        cfg.TopP(),
		Options:     cfg.SamplingOptions(),
	}, stdout)
}

func newLoader(cfg *config.Config) (provider.ModelLoader, error) {
	switch cfg.Backend {
	case config.BackendStub:
		return stub.NewLoader(&stub.Engine{MaxBatch: cfg.Stub.MaxBatch}, cfg.Stub.Models...), nil
	default:
		opts := provider.ClientOptions{
			BaseURL: config.ResolveBaseURL(cfg),
			APIKey:  config.ResolveAPIKey(cfg),
		}
		if cfg.Server.Timeout > 0 {
			opts.HTTPClient = openai.WithHTTPTimeout(cfg.Server.Timeout)
		}
		client, err := openai.NewClient(opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
