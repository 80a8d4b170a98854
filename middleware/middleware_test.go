package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/batchgen"
	"github.com/ncecere/batchgen/provider"
	"github.com/ncecere/batchgen/registry"
)

type echoModel struct {
	err error
}

func (m echoModel) Generate(_ context.Context, req *provider.BatchRequest) (*provider.BatchResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	res := &provider.BatchResponse{}
	for _, p := range req.Prompts {
		res.Outputs = append(res.Outputs, provider.Output{
			Prompt:      p,
			Completions: []provider.Completion{{Text: p}},
		})
	}
	return res, nil
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLoggingBatchModel_LogsMetadataOnly(t *testing.T) {
	var buf bytes.Buffer
	model := WrapBatchModel(echoModel{}, LoggingBatchModel(LoggingOptions{Logger: newLogger(&buf)}))

	_, err := model.Generate(context.Background(), &provider.BatchRequest{
		Model:     "m",
		Prompts:   []string{"secret prompt"},
		RequestID: "req-1",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "batch.generate start")
	assert.Contains(t, out, "batch.generate done")
	assert.Contains(t, out, "request_id=req-1")
	assert.NotContains(t, out, "secret prompt")
}

func TestLoggingBatchModel_LogsErrors(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("out of memory")
	model := WrapBatchModel(echoModel{err: boom}, LoggingBatchModel(LoggingOptions{
		Logger:    newLogger(&buf),
		LogErrors: true,
	}))

	_, err := model.Generate(context.Background(), &provider.BatchRequest{Model: "m", Prompts: []string{"a"}})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.NotContains(t, buf.String(), "batch.generate start")
}

func TestTelemetryBatchModel_ReportsCall(t *testing.T) {
	var got BatchCallInfo
	model := WrapBatchModel(echoModel{}, TelemetryBatchModel(TelemetryHooks{
		OnBatchCall: func(_ context.Context, info BatchCallInfo) { got = info },
	}))

	_, err := model.Generate(context.Background(), &provider.BatchRequest{
		Model:     "m",
		Prompts:   []string{"a", "b"},
		RequestID: "req-2",
	})
	require.NoError(t, err)

	assert.Equal(t, "m", got.Model)
	assert.Equal(t, "req-2", got.RequestID)
	assert.Equal(t, 2, got.Prompts)
	assert.Equal(t, 2, got.Completions)
	assert.NoError(t, got.Err)
	assert.GreaterOrEqual(t, got.Duration().Nanoseconds(), int64(0))
}

func TestWrapBatchModel_OrdersOutermostFirst(t *testing.T) {
	var order []string
	mark := func(name string) BatchModelMiddleware {
		return func(next provider.BatchModel) provider.BatchModel {
			return TelemetryBatchModel(TelemetryHooks{
				OnBatchCall: func(context.Context, BatchCallInfo) { order = append(order, name) },
			})(next)
		}
	}

	model := WrapBatchModel(echoModel{}, mark("outer"), mark("inner"))
	_, err := model.Generate(context.Background(), &provider.BatchRequest{})
	require.NoError(t, err)

	// Hooks fire on the way out, so the inner wrapper reports first.
	assert.Equal(t, []string{"inner", "outer"}, order)
}

func TestWrapLoader_WrapsLoadedModels(t *testing.T) {
	reg := registry.NewInMemoryRegistry()
	reg.Register("m", echoModel{})

	calls := 0
	loader := WrapLoader(reg, TelemetryBatchModel(TelemetryHooks{
		OnBatchCall: func(context.Context, BatchCallInfo) { calls++ },
	}))

	model, err := loader.Load(context.Background(), "m")
	require.NoError(t, err)
	_, err = model.Generate(context.Background(), &provider.BatchRequest{Prompts: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = loader.Load(context.Background(), "missing")
	assert.Error(t, err)
}

type loaderFunc func(ctx context.Context, id string) (provider.BatchModel, error)

func (f loaderFunc) Load(ctx context.Context, id string) (provider.BatchModel, error) {
	return f(ctx, id)
}

func TestWrapLoader_RejectsNilModel(t *testing.T) {
	loader := WrapLoader(loaderFunc(func(context.Context, string) (provider.BatchModel, error) {
		return nil, nil
	}), LoggingBatchModel(LoggingOptions{}))

	model, err := loader.Load(context.Background(), "m")
	assert.ErrorIs(t, err, ErrNilModel)
	assert.Nil(t, model)

	_, err = batchgen.LoadModel(context.Background(), loader, "m")
	var loadErr *batchgen.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.ErrorIs(t, err, ErrNilModel)
}

type closingModel struct {
	echoModel
	closed *int
}

func (m closingModel) Close() error {
	*m.closed++
	return nil
}

func TestWrapLoader_ForwardsClose(t *testing.T) {
	closed := 0
	reg := registry.NewInMemoryRegistry()
	reg.Register("m", closingModel{closed: &closed})

	loader := WrapLoader(reg,
		LoggingBatchModel(LoggingOptions{Logger: newLogger(&bytes.Buffer{})}),
		TelemetryBatchModel(TelemetryHooks{}),
	)

	model, err := batchgen.LoadModel(context.Background(), loader, "m")
	require.NoError(t, err)
	require.NoError(t, model.Close())
	assert.Equal(t, 1, closed)
}

func TestWrapBatchModel_CloseWithoutCloser(t *testing.T) {
	model := WrapBatchModel(echoModel{}, TelemetryBatchModel(TelemetryHooks{}))
	c, ok := model.(io.Closer)
	require.True(t, ok)
	assert.NoError(t, c.Close())
}
