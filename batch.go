package transcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DispatchConfig controls how cache misses are sent to the engine.
type DispatchConfig struct {
	BatchSize      int           // Texts per engine call, capped at MaxBatchSize
	EngineTimeout  time.Duration // Bound on a single engine call
	MaxConcurrency int           // Engine calls in flight across all requests (0 = unbounded)
	Retry          RetryConfig
}

// DefaultDispatchConfig returns the dispatch settings used when none are given.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		BatchSize:      MaxBatchSize,
		EngineTimeout:  DefaultEngineTimeout,
		MaxConcurrency: 4,
		Retry:          DefaultRetryConfig(),
	}
}

// Partition splits items into contiguous batches of at most size items,
// preserving order. A non-positive or oversized size is clamped to MaxBatchSize.
func Partition(items []Item, size int) [][]Item {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	if len(items) == 0 {
		return nil
	}

	batches := make([][]Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// Dispatcher sends items to the engine in bounded batches.
// A Dispatcher is safe for concurrent use; its concurrency limit is shared by
// every request that goes through it.
type Dispatcher struct {
	engine  Engine
	cfg     DispatchConfig
	sem     *semaphore.Weighted
	logger  *zap.Logger
	metrics *pipelineMetrics
}

// NewDispatcher creates a Dispatcher for the given engine.
func NewDispatcher(engine Engine, cfg DispatchConfig) *Dispatcher {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = DefaultEngineTimeout
	}

	d := &Dispatcher{
		engine:  engine,
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: newPipelineMetrics(nil),
	}
	if cfg.MaxConcurrency > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	}
	return d
}

// BatchSize returns the effective batch size.
func (d *Dispatcher) BatchSize() int {
	return d.cfg.BatchSize
}

// Dispatch translates items, returning one Translation per item in input order.
//
// Batches run concurrently. When any batch fails the returned error is a
// *PartialTranslationError, or an *EngineUnavailableError when every batch
// failed because the engine could not be reached. In the partial case the
// returned slice still holds the translations of the batches that succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item, locales LocalePair) ([]Translation, error) {
	batches := Partition(items, d.cfg.BatchSize)
	if len(batches) == 0 {
		return nil, nil
	}

	results := make([][]string, len(batches))
	errs := make([]error, len(batches))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []Item) {
			defer wg.Done()
			results[i], errs[i] = d.runBatch(ctx, batch, locales)
		}(i, batch)
	}
	wg.Wait()

	// Reassemble in submission order; offsets map batch-local positions back to items.
	translations := make([]Translation, 0, len(items))
	var failed []*BatchError
	offset := 0
	for i, batch := range batches {
		if errs[i] != nil {
			failed = append(failed, &BatchError{Index: i, Offset: offset, Size: len(batch), Cause: errs[i]})
		} else {
			for j, item := range batch {
				translations = append(translations, Translation{ID: item.ID, Text: results[i][j]})
			}
		}
		offset += len(batch)
	}

	if len(failed) == 0 {
		return translations, nil
	}

	for _, f := range failed {
		d.logger.Error("engine batch failed",
			zap.Int("batch", f.Index),
			zap.Int("offset", f.Offset),
			zap.Int("size", f.Size),
			zap.Error(f.Cause),
		)
	}

	if len(failed) == len(batches) && allUnavailable(failed) {
		return nil, &EngineUnavailableError{Cause: failed[0].Cause}
	}
	return translations, &PartialTranslationError{Batches: len(batches), Failed: failed}
}

// runBatch submits one batch, retrying retryable failures. Each attempt is
// bounded by the engine timeout.
func (d *Dispatcher) runBatch(ctx context.Context, batch []Item, locales LocalePair) ([]string, error) {
	if d.sem != nil {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer d.sem.Release(1)
	}

	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.Text
	}
	req := TranslateRequest{
		Texts:      texts,
		SourceLang: locales.Source,
		TargetLang: locales.Target,
	}

	retry := d.cfg.Retry
	notify := retry.OnRetry
	retry.OnRetry = func(n int, err error, delay time.Duration) {
		d.metrics.recordRetry(ctx)
		d.logger.Warn("retrying engine batch",
			zap.Int("retry", n),
			zap.Int("size", len(batch)),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if notify != nil {
			notify(n, err, delay)
		}
	}

	start := time.Now()
	out, err := WithRetry(ctx, retry, func() ([]string, error) {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.EngineTimeout)
		defer cancel()

		out, err := d.engine.Translate(callCtx, req)
		if err != nil {
			if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, &ProviderError{Message: "engine call timed out", Cause: err}
			}
			return nil, err
		}
		if len(out) != len(texts) {
			return nil, &CountMismatchError{Expected: len(texts), Got: len(out)}
		}
		return out, nil
	})
	d.metrics.recordBatch(ctx, float64(time.Since(start).Microseconds())/1000.0, err != nil)

	return out, err
}

func allUnavailable(failed []*BatchError) bool {
	for _, f := range failed {
		if !IsUnavailable(f.Cause) {
			return false
		}
	}
	return true
}
