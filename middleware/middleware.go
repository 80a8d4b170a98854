package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/ncecere/batchgen/provider"
)

// BatchModelMiddleware wraps a provider.BatchModel with additional
// behavior such as logging or telemetry.
type BatchModelMiddleware func(provider.BatchModel) provider.BatchModel

// WrapBatchModel applies the provided middlewares around the base
// model. Middlewares are applied in the order provided, so the first
// middleware becomes the outermost wrapper.
func WrapBatchModel(base provider.BatchModel, mws ...BatchModelMiddleware) provider.BatchModel {
	wrapped := base
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// ErrNilModel is returned by a wrapped loader whose underlying loader
// reported neither a model nor an error.
var ErrNilModel = errors.New("middleware: loader returned no model")

// WrapLoader returns a ModelLoader whose loaded models are wrapped
// with mws.
func WrapLoader(base provider.ModelLoader, mws ...BatchModelMiddleware) provider.ModelLoader {
	return &wrappedLoader{next: base, mws: mws}
}

type wrappedLoader struct {
	next provider.ModelLoader
	mws  []BatchModelMiddleware
}

func (w *wrappedLoader) Load(ctx context.Context, id string) (provider.BatchModel, error) {
	model, err := w.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, ErrNilModel
	}
	return WrapBatchModel(model, w.mws...), nil
}

// closeNext closes next if it holds resources. Wrappers forward Close
// so that a wrapped model can still be released by its owner.
func closeNext(next provider.BatchModel) error {
	if c, ok := next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// LoggingOptions controls which aspects of a batch call are logged by
// the logging middleware.
type LoggingOptions struct {
	// Logger is the destination for log output. If nil, slog.Default() is used.
	Logger *slog.Logger
	// LogRequest controls whether request metadata is logged before the call.
	LogRequest bool
	// LogResponse controls whether successful responses are logged.
	LogResponse bool
	// LogErrors controls whether errors are logged.
	LogErrors bool
}

func defaultLoggingOptions(opts LoggingOptions) LoggingOptions {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !opts.LogRequest && !opts.LogResponse && !opts.LogErrors {
		opts.LogRequest = true
		opts.LogResponse = true
		opts.LogErrors = true
	}
	return opts
}

// LoggingBatchModel returns a BatchModelMiddleware that logs Generate
// calls. Logs carry metadata only (model, batch size, request ID,
// duration), never prompt or completion text. Requests and responses
// are logged at Debug, errors at Error.
func LoggingBatchModel(opts LoggingOptions) BatchModelMiddleware {
	opts = defaultLoggingOptions(opts)

	return func(next provider.BatchModel) provider.BatchModel {
		return &loggingBatchModel{next: next, opts: opts}
	}
}

type loggingBatchModel struct {
	next provider.BatchModel
	opts LoggingOptions
}

func (l *loggingBatchModel) Generate(ctx context.Context, req *provider.BatchRequest) (*provider.BatchResponse, error) {
	log := l.opts.Logger.With("model", req.Model, "prompts", len(req.Prompts), "request_id", req.RequestID)

	start := time.Now()
	if l.opts.LogRequest {
		log.DebugContext(ctx, "batch.generate start", "temperature", req.Temperature, "top_p", req.TopP, "n", req.N)
	}

	res, err := l.next.Generate(ctx, req)
	dur := time.Since(start)

	if err != nil {
		if l.opts.LogErrors {
			log.ErrorContext(ctx, "batch.generate error", "duration", dur, "error", err)
		}
		return nil, err
	}

	if l.opts.LogResponse {
		log.DebugContext(ctx, "batch.generate done", "duration", dur, "outputs", len(res.Outputs))
	}
	return res, nil
}

func (l *loggingBatchModel) Close() error { return closeNext(l.next) }

// BatchCallInfo contains high-level metadata about a batch call that
// can be used for metrics or tracing.
type BatchCallInfo struct {
	Model       string
	RequestID   string
	Prompts     int
	Completions int
	StartTime   time.Time
	EndTime     time.Time
	Err         error
}

// Duration returns how long the call took.
func (i BatchCallInfo) Duration() time.Duration {
	return i.EndTime.Sub(i.StartTime)
}

// TelemetryHooks defines callbacks that are invoked around batch calls.
// They are generic so callers can feed metrics or tracing systems
// without this package depending on them.
type TelemetryHooks struct {
	OnBatchCall func(ctx context.Context, info BatchCallInfo)
}

// TelemetryBatchModel returns a BatchModelMiddleware that invokes the
// provided telemetry hooks after every Generate call.
func TelemetryBatchModel(hooks TelemetryHooks) BatchModelMiddleware {
	return func(next provider.BatchModel) provider.BatchModel {
		return &telemetryBatchModel{next: next, hooks: hooks}
	}
}

type telemetryBatchModel struct {
	next  provider.BatchModel
	hooks TelemetryHooks
}

func (t *telemetryBatchModel) Generate(ctx context.Context, req *provider.BatchRequest) (*provider.BatchResponse, error) {
	start := time.Now()
	res, err := t.next.Generate(ctx, req)
	if t.hooks.OnBatchCall != nil {
		info := BatchCallInfo{
			Model:     req.Model,
			RequestID: req.RequestID,
			Prompts:   len(req.Prompts),
			StartTime: start,
			EndTime:   time.Now(),
			Err:       err,
		}
		if res != nil {
			for _, out := range res.Outputs {
				info.Completions += len(out.Completions)
			}
		}
		t.hooks.OnBatchCall(ctx, info)
	}
	return res, err
}

func (t *telemetryBatchModel) Close() error { return closeNext(t.next) }
