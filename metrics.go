package transcache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/ZaguanLabs/transcache"

type pipelineMetrics struct {
	requests       metric.Int64Counter
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheFaults    metric.Int64Counter
	batches        metric.Int64Counter
	batchFailures  metric.Int64Counter
	retries        metric.Int64Counter
	batchLatencyMs metric.Float64Histogram
}

func newPipelineMetrics(m metric.Meter) *pipelineMetrics {
	if m == nil {
		m = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	requests, _ := m.Int64Counter("transcache.requests", metric.WithDescription("Translation requests handled, by outcome"))
	hits, _ := m.Int64Counter("transcache.cache.hits", metric.WithDescription("Items served from the cache"))
	misses, _ := m.Int64Counter("transcache.cache.misses", metric.WithDescription("Items not found in the cache"))
	faults, _ := m.Int64Counter("transcache.cache.faults", metric.WithDescription("Cache lookups or writes that failed, by operation"))
	batches, _ := m.Int64Counter("transcache.engine.batches", metric.WithDescription("Batches submitted to the translation engine"))
	failures, _ := m.Int64Counter("transcache.engine.batch_failures", metric.WithDescription("Batches the translation engine failed"))
	retries, _ := m.Int64Counter("transcache.engine.retries", metric.WithDescription("Engine batch attempts retried after a transient failure"))
	latency, _ := m.Float64Histogram("transcache.engine.batch_duration", metric.WithDescription("Engine batch latency"), metric.WithUnit("ms"))
	return &pipelineMetrics{
		requests:       requests,
		cacheHits:      hits,
		cacheMisses:    misses,
		cacheFaults:    faults,
		batches:        batches,
		batchFailures:  failures,
		retries:        retries,
		batchLatencyMs: latency,
	}
}

func (m *pipelineMetrics) recordRequest(ctx context.Context, outcome string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *pipelineMetrics) recordLookup(ctx context.Context, hits, misses int) {
	if m == nil {
		return
	}
	if m.cacheHits != nil && hits > 0 {
		m.cacheHits.Add(ctx, int64(hits))
	}
	if m.cacheMisses != nil && misses > 0 {
		m.cacheMisses.Add(ctx, int64(misses))
	}
}

func (m *pipelineMetrics) recordCacheFault(ctx context.Context, op string) {
	if m == nil || m.cacheFaults == nil {
		return
	}
	m.cacheFaults.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *pipelineMetrics) recordBatch(ctx context.Context, durationMs float64, failed bool) {
	if m == nil {
		return
	}
	if m.batches != nil {
		m.batches.Add(ctx, 1)
	}
	if failed && m.batchFailures != nil {
		m.batchFailures.Add(ctx, 1)
	}
	if m.batchLatencyMs != nil {
		m.batchLatencyMs.Record(ctx, durationMs, metric.WithAttributes(attribute.Bool("failed", failed)))
	}
}

func (m *pipelineMetrics) recordRetry(ctx context.Context) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1)
}
