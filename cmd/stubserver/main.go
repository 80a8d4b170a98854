// Command stubserver serves the deterministic stub engine behind an
// OpenAI-compatible API, so batchgen can run without an accelerator.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ncecere/batchgen/internal/stub"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	models := flag.String("model", "facebook/opt-125m", "comma-separated model IDs to serve")
	maxBatch := flag.Int("max-batch", 0, "reject batches with more sequences (prompts x n) than this (0 = unlimited)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var ids []string
	for _, id := range strings.Split(*models, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		slog.Error("no model IDs given")
		os.Exit(1)
	}

	app := stub.NewServer(stub.NewLoader(&stub.Engine{MaxBatch: *maxBatch}, ids...))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("serving stub engine", "addr", *addr, "models", ids)
	if err := app.Listen(*addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
