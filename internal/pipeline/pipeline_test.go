package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-forecast-service/internal/domain"
	"github.com/couchcryptid/hazard-forecast-service/internal/observability"
	"github.com/couchcryptid/hazard-forecast-service/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
	failN   int // fail this many calls before serving batches
	calls   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	n := m.calls.Add(1)
	if int(n) <= m.failN {
		return nil, errors.New("broker unreachable")
	}
	m.mu.Lock()
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()
	// Block until cancelled to simulate an idle topic.
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawRequest(id string, commit func(context.Context) error) domain.RawEvent {
	return domain.RawEvent{
		Key:    []byte(id),
		Value:  []byte(`{"request_id":"` + id + `"}`),
		Topic:  "forecast-requests",
		Commit: commit,
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawRequest("req-1", nil), rawRequest("req-2", nil)}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 2, ldr.count())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 1e-9)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 1e-9)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, ldr.count())
}

func TestPipeline_NotReadyBeforeBrokerReached(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10)

	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_ReadyOnIdleTopic(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawEvent{{}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int64
	commit := func(context.Context) error { commits.Add(1); return nil }
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawRequest("bad", commit)}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("not json")}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 0, ldr.count())
	assert.Equal(t, int64(1), commits.Load(), "poison messages are committed so they are not redelivered")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 1e-9)
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int64
	commit := func(context.Context) error { commits.Add(1); return nil }
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawRequest("req-5", commit)}}}

	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(1), commits.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var commits atomic.Int64
	commit := func(context.Context) error { commits.Add(1); return nil }
	ext := &mockExtractor{batches: [][]domain.RawEvent{{rawRequest("req-6", commit)}}}
	ldr := &mockLoader{err: errors.New("leader not available")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int64(0), commits.Load())
}

func TestPipeline_Run_BacksOffOnExtractError(t *testing.T) {
	ext := &mockExtractor{failN: 1, batches: [][]domain.RawEvent{{rawRequest("req-7", nil)}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, ldr.count(), "recovers after the first backoff")
	assert.GreaterOrEqual(t, ext.calls.Load(), int64(2))
}
