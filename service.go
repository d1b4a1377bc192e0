package transcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Engine is the interface for translation backends.
//
// Translate returns exactly one output per input text, in input order, or
// fails the whole call. Implementations must be safe for concurrent use and
// must not retry internally.
type Engine interface {
	Translate(ctx context.Context, req TranslateRequest) ([]string, error)
}

// HealthChecker is implemented by engines and caches that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// TranslateRequest contains the parameters for one engine call.
type TranslateRequest struct {
	Texts      []string
	SourceLang string
	TargetLang string
}

// TranslationCache is the interface for the translation store.
//
// GetMany omits keys that are not present; a missing key is never an error.
// SetMany writes every entry with the same TTL and reports keys that could
// not be written. Implementations must be safe for concurrent use.
type TranslationCache interface {
	GetMany(ctx context.Context, keys []string) (map[string]string, error)
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
}

// Service coordinates cache lookups, engine dispatch and cache write-back
// for translation requests. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	engine       Engine
	cache        TranslationCache
	cacheTTL     time.Duration
	cacheTimeout time.Duration
	dispatchCfg  DispatchConfig
	dispatcher   *Dispatcher
	modelName    string
	logger       *zap.Logger
	tracer       trace.Tracer
	metrics      *pipelineMetrics
	engineReady  atomic.Bool
}

// Option is a functional option for configuring the Service.
type Option func(*Service)

// WithCache sets the translation cache. Without one every item goes to the engine.
func WithCache(cache TranslationCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithCacheTTL sets how long written translations live in the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithCacheTimeout bounds each cache round trip.
func WithCacheTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.cacheTimeout = d
	}
}

// WithDispatchConfig sets batching, timeout, concurrency and retry behavior.
func WithDispatchConfig(cfg DispatchConfig) Option {
	return func(s *Service) {
		s.dispatchCfg = cfg
	}
}

// WithModelName sets the engine model identifier reported by Status.
func WithModelName(name string) Option {
	return func(s *Service) {
		s.modelName = name
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

// WithMeter registers pipeline metrics on the given meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newPipelineMetrics(m)
	}
}

// NewService creates a Service around the given engine.
func NewService(engine Engine, opts ...Option) *Service {
	s := &Service{
		engine:       engine,
		cacheTTL:     DefaultCacheTTL,
		cacheTimeout: 2 * time.Second,
		dispatchCfg:  DefaultDispatchConfig(),
		logger:       zap.NewNop(),
		tracer:       nooptrace.NewTracerProvider().Tracer(instrumentationName),
		metrics:      newPipelineMetrics(nil),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = NewDispatcher(engine, s.dispatchCfg)
	s.dispatcher.logger = s.logger
	s.dispatcher.metrics = s.metrics
	s.engineReady.Store(true)

	return s
}

// Handle translates every item of req, serving what it can from the cache.
//
// The returned Response maps every input identifier exactly once. If any
// engine batch fails the whole request fails; translations from batches that
// did succeed are still written to the cache.
func (s *Service) Handle(ctx context.Context, req Request) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Handle", trace.WithAttributes(
		attribute.Int("translation.items", len(req.Items)),
		attribute.String("translation.source", req.Locales.Source),
		attribute.String("translation.target", req.Locales.Target),
	))
	defer span.End()

	logger := s.logger.With(zap.String("request_id", RequestIDFromContext(ctx)))

	if err := validateRequest(req); err != nil {
		s.metrics.recordRequest(ctx, "invalid")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Source == target needs no translation.
	if req.Locales.Source == req.Locales.Target {
		resp := &Response{Translations: make(map[string]string, len(req.Items))}
		for _, item := range req.Items {
			resp.Translations[item.ID] = item.Text
		}
		resp.TranslatedCount = len(req.Items)
		s.metrics.recordRequest(ctx, "passthrough")
		return resp, nil
	}

	keys := make([]string, len(req.Items))
	var uniqueKeys []string
	seen := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		keys[i] = CacheKey(item.Text, req.Locales.Source, req.Locales.Target)
		if !seen[keys[i]] {
			seen[keys[i]] = true
			uniqueKeys = append(uniqueKeys, keys[i])
		}
	}

	cached := s.lookup(ctx, logger, uniqueKeys)

	// Cache misses, deduplicated by key, in original relative order.
	var misses []Item
	queued := make(map[string]bool)
	for i, item := range req.Items {
		if _, ok := cached[keys[i]]; ok {
			continue
		}
		if !queued[keys[i]] {
			queued[keys[i]] = true
			misses = append(misses, Item{ID: keys[i], Text: item.Text})
		}
	}
	s.metrics.recordLookup(ctx, len(uniqueKeys)-len(misses), len(misses))

	fresh := make(map[string]string, len(misses))
	if len(misses) > 0 {
		results, err := s.dispatcher.Dispatch(ctx, misses, req.Locales)
		for _, r := range results {
			fresh[r.ID] = r.Text
		}
		s.writeBack(ctx, logger, fresh)

		if err != nil {
			if _, ok := err.(*EngineUnavailableError); ok {
				s.engineReady.Store(false)
				s.metrics.recordRequest(ctx, "engine_unavailable")
			} else {
				s.metrics.recordRequest(ctx, "partial_failure")
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("translation request failed",
				zap.Int("items", len(req.Items)),
				zap.Int("misses", len(misses)),
				zap.Error(err),
			)
			return nil, err
		}
		s.engineReady.Store(true)
	}

	resp := &Response{Translations: make(map[string]string, len(req.Items))}
	for i, item := range req.Items {
		if text, ok := cached[keys[i]]; ok {
			resp.Translations[item.ID] = text
			resp.CachedCount++
			continue
		}
		text, ok := fresh[keys[i]]
		if !ok {
			err := fmt.Errorf("no translation produced for item %q", item.ID)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		resp.Translations[item.ID] = text
		resp.TranslatedCount++
	}

	span.SetAttributes(
		attribute.Int("translation.cached", resp.CachedCount),
		attribute.Int("translation.translated", resp.TranslatedCount),
	)
	s.metrics.recordRequest(ctx, "ok")
	logger.Debug("translation request handled",
		zap.Int("items", len(req.Items)),
		zap.Int("cached", resp.CachedCount),
		zap.Int("translated", resp.TranslatedCount),
	)

	return resp, nil
}

// lookup fetches cached translations. Store faults degrade to "no cache".
func (s *Service) lookup(ctx context.Context, logger *zap.Logger, keys []string) map[string]string {
	if s.cache == nil || len(keys) == 0 {
		return map[string]string{}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	found, err := s.cache.GetMany(lookupCtx, keys)
	if err != nil {
		s.metrics.recordCacheFault(ctx, "get")
		logger.Warn("cache lookup failed, treating all items as misses",
			zap.Int("keys", len(keys)),
			zap.Error(&CacheError{Op: "get", Message: "lookup failed", Cause: err}),
		)
		return map[string]string{}
	}
	if found == nil {
		return map[string]string{}
	}
	return found
}

// writeBack persists new translations. Failures are logged, never returned.
func (s *Service) writeBack(ctx context.Context, logger *zap.Logger, entries map[string]string) {
	if s.cache == nil || len(entries) == 0 {
		return
	}

	// The caller may go away once the response is sent; the write should not.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cacheTimeout)
	defer cancel()

	if err := s.cache.SetMany(writeCtx, entries, s.cacheTTL); err != nil {
		s.metrics.recordCacheFault(ctx, "set")
		logger.Warn("cache write-back failed",
			zap.Int("entries", len(entries)),
			zap.Error(&CacheError{Op: "set", Message: "write-back failed", Cause: err}),
		)
	}
}

// Status reports engine readiness, cache reachability and the supported locales.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{
		Service:            Name,
		Version:            FullVersion(),
		ModelName:          s.modelName,
		SupportedLanguages: append([]string(nil), SupportedLanguages...),
	}

	if hc, ok := s.engine.(HealthChecker); ok {
		err := hc.Ping(ctx)
		s.engineReady.Store(err == nil)
		if err != nil {
			s.logger.Warn("engine readiness check failed", zap.Error(err))
		}
	}
	st.ModelLoaded = s.engine != nil && s.engineReady.Load()
	st.Healthy = st.ModelLoaded

	switch {
	case s.cache == nil:
		st.Cache = CacheNotInitialized
	default:
		st.Cache = CacheConnected
		if hc, ok := s.cache.(HealthChecker); ok {
			if err := hc.Ping(ctx); err != nil {
				st.Cache = CacheDisconnected
			}
		}
	}

	return st
}

// CacheTTL returns the TTL applied to new cache entries.
func (s *Service) CacheTTL() time.Duration {
	return s.cacheTTL
}

// Dispatcher returns the dispatcher used for cache misses.
func (s *Service) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func validateRequest(req Request) error {
	if err := ValidateLocales(req.Locales); err != nil {
		return err
	}

	if len(req.Items) == 0 {
		return &ValidationError{Field: "texts", Message: "must contain at least one item"}
	}

	ids := make(map[string]bool, len(req.Items))
	for i, item := range req.Items {
		if ids[item.ID] {
			return &ValidationError{Field: "value_ids", Message: fmt.Sprintf("duplicate identifier %q at position %d", item.ID, i)}
		}
		ids[item.ID] = true

		if item.Text == "" {
			return &ValidationError{Field: "texts", Message: fmt.Sprintf("text at position %d is empty", i)}
		}
	}

	return nil
}

type requestIDKey struct{}

// ContextWithRequestID returns a context carrying the request identifier used in logs.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request identifier, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
