// Command transcache runs the translation service or translates texts from the command line.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ZaguanLabs/transcache"
	"github.com/ZaguanLabs/transcache/cache"
	"github.com/ZaguanLabs/transcache/engine"
	"github.com/ZaguanLabs/transcache/internal/config"
	"github.com/ZaguanLabs/transcache/internal/server"
	"github.com/ZaguanLabs/transcache/internal/telemetry"
	"go.uber.org/zap"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = transcache.Version
	commit    = transcache.GitCommit
	buildDate = transcache.BuildDate
)

const shutdownTimeout = 10 * time.Second

const usage = `usage: transcache <command> [flags]

commands:
  serve       run the HTTP translation service
  translate   translate texts given as arguments or on stdin, one per line
  version     print version information
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("a command is required")
	}

	switch args[0] {
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, stderr)
	case "translate":
		return runTranslate(args[1:], stdin, stdout, stderr)
	case "version", "--version", "-version":
		printVersion(stdout)
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", transcache.Name, version)
	if commit != "unknown" && commit != "" {
		fmt.Fprintf(w, "  commit:  %s\n", commit)
	}
	if buildDate != "unknown" && buildDate != "" {
		fmt.Fprintf(w, "  built:   %s\n", buildDate)
	}
}

// runServe starts the HTTP service and blocks until ctx is cancelled.
func runServe(ctx context.Context, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	inst, shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:    transcache.Name,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
		LogFormat:      cfg.LogFormat,
		TracesExporter: cfg.TracesExporter,
		TraceOutput:    stderr,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	logger := inst.Logger

	a, err := newApp(ctx, cfg, inst)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("version", transcache.FullVersion()),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// app is the wired service: engine, cache, pipeline and router.
type app struct {
	svc     *transcache.Service
	handler http.Handler
	logger  *zap.Logger
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, inst *telemetry.Instruments) (*app, error) {
	logger := inst.Logger
	a := &app{logger: logger}

	eng, modelName := newEngine(cfg)

	store, err := newStore(ctx, cfg, logger, a)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := []transcache.Option{
		transcache.WithCacheTTL(cfg.Cache.TTL()),
		transcache.WithCacheTimeout(cfg.Cache.Timeout),
		transcache.WithDispatchConfig(dispatchConfig(cfg)),
		transcache.WithModelName(modelName),
		transcache.WithLogger(logger),
		transcache.WithTracer(inst.Tracer("github.com/ZaguanLabs/transcache")),
		transcache.WithMeter(inst.Meter("github.com/ZaguanLabs/transcache")),
	}
	if store != nil {
		opts = append(opts, transcache.WithCache(store))
	}

	a.svc = transcache.NewService(eng, opts...)
	a.handler = server.New(a.svc, server.Options{
		ServiceName: transcache.Name,
		Logger:      logger,
	})

	logger.Info("translation pipeline ready",
		zap.String("engine", cfg.Engine.Provider),
		zap.String("model", modelName),
		zap.String("cache", cfg.Cache.Backend),
		zap.Int("batch_size", a.svc.Dispatcher().BatchSize()),
		zap.Duration("cache_ttl", a.svc.CacheTTL()),
	)
	if cfg.Model.CacheDir != "" {
		logger.Debug("model cache directory is managed by the engine server", zap.String("dir", cfg.Model.CacheDir))
	}

	return a, nil
}

func dispatchConfig(cfg *config.Config) transcache.DispatchConfig {
	dc := transcache.DefaultDispatchConfig()
	dc.BatchSize = cfg.BatchSize
	dc.EngineTimeout = cfg.Engine.Timeout
	dc.MaxConcurrency = cfg.Engine.MaxConcurrency
	dc.Retry.MaxRetries = cfg.Engine.MaxRetries
	return dc
}

func newEngine(cfg *config.Config) (transcache.Engine, string) {
	var eng transcache.Engine
	modelName := cfg.Model.Name

	switch cfg.Engine.Provider {
	case config.ProviderMock:
		eng = engine.NewMockEngine()
		modelName = "mock"
	default:
		eng = engine.NewOpenAIEngine(engine.OpenAIConfig{
			APIKey:      cfg.Engine.APIKey,
			Model:       cfg.Model.Name,
			Temperature: cfg.Engine.Temperature,
			BaseURL:     cfg.Engine.BaseURL,
		})
	}

	if cfg.Engine.RequestsPerMinute > 0 {
		eng = transcache.NewRateLimitedEngine(eng, transcache.RateLimitConfig{
			RequestsPerMinute: cfg.Engine.RequestsPerMinute,
		})
	}
	return eng, modelName
}

// newStore builds the configured cache backend and registers its cleanup on a.
// A nil store means caching is disabled.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, a *app) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		rc := cache.NewRedisCache(cache.RedisConfig{
			Host:        cfg.Cache.RedisHost,
			Port:        cfg.Cache.RedisPort,
			DB:          cfg.Cache.RedisDB,
			Password:    cfg.Cache.RedisPassword,
			KeyPrefix:   cfg.Cache.KeyPrefix,
			DialTimeout: cfg.Cache.Timeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Cache.Timeout)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, continuing without cache hits until it recovers",
				zap.String("addr", cfg.Cache.RedisAddr()),
				zap.Error(err),
			)
		} else {
			logger.Info("connected to redis", zap.String("addr", cfg.Cache.RedisAddr()))
		}
		a.closers = append(a.closers, func() {
			if err := rc.Close(); err != nil {
				logger.Warn("closing redis client", zap.Error(err))
			}
		})
		return rc, nil

	case config.BackendMemory:
		mc := cache.NewInMemoryCache()
		if path := cfg.Cache.SnapshotPath; path != "" {
			res, err := mc.LoadSnapshot(path)
			if err != nil {
				return nil, fmt.Errorf("loading cache snapshot: %w", err)
			}
			logger.Info("loaded cache snapshot",
				zap.String("path", path),
				zap.Int("imported", res.Imported),
				zap.Int("expired", res.Expired),
			)
			a.closers = append(a.closers, func() {
				meta := map[string]string{"service": transcache.Name, "version": version}
				if err := mc.SaveSnapshot(path, meta); err != nil {
					logger.Error("saving cache snapshot", zap.String("path", path), zap.Error(err))
					return
				}
				logger.Info("saved cache snapshot", zap.String("path", path), zap.Int("entries", mc.Len()))
			})
		}
		return mc, nil

	default:
		return nil, nil
	}
}

// JSONOutput represents the JSON output format of the translate command.
type JSONOutput struct {
	Translations    []string `json:"translations"`
	CachedCount     int      `json:"cached_count"`
	TranslatedCount int      `json:"translated_count"`
	ElapsedMs       int64    `json:"elapsed_ms"`
}

// runTranslate translates texts once, optionally persisting results to a snapshot file.
func runTranslate(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	sourceLang := fs.String("source", "en", "Source locale code")
	targetLang := fs.String("target", "", "Target locale code (e.g., es, ja)")
	provider := fs.String("engine", "", "Engine provider: openai or mock (default: ENGINE_PROVIDER env)")
	baseURL := fs.String("base-url", "", "Engine base URL (default: ENGINE_BASE_URL env)")
	apiKey := fs.String("api-key", "", "Engine API key (default: ENGINE_API_KEY env)")
	cacheFile := fs.String("cache-file", "", "Cache snapshot to read before and write after translating")
	jsonOutput := fs.Bool("json", false, "Output result as JSON")
	quiet := fs.Bool("quiet", false, "Suppress progress output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *targetLang == "" {
		fs.Usage()
		return fmt.Errorf("-target is required")
	}

	texts := fs.Args()
	if len(texts) == 0 {
		lines, err := readLines(stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		texts = lines
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *provider != "" {
		cfg.Engine.Provider = *provider
	}
	if *baseURL != "" {
		cfg.Engine.BaseURL = *baseURL
	}
	if *apiKey != "" {
		cfg.Engine.APIKey = *apiKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	eng, modelName := newEngine(cfg)

	mc := cache.NewInMemoryCache()
	if *cacheFile != "" {
		if _, err := mc.LoadSnapshot(*cacheFile); err != nil {
			return fmt.Errorf("loading cache file: %w", err)
		}
	}

	svc := transcache.NewService(eng,
		transcache.WithCache(mc),
		transcache.WithCacheTTL(cfg.Cache.TTL()),
		transcache.WithDispatchConfig(dispatchConfig(cfg)),
		transcache.WithModelName(modelName),
	)

	items := make([]transcache.Item, len(texts))
	for i, text := range texts {
		items[i] = transcache.Item{ID: strconv.Itoa(i), Text: text}
	}

	if !*quiet && !*jsonOutput {
		fmt.Fprintf(stderr, "Translating %d texts from %s to %s...\n", len(items), *sourceLang, *targetLang)
	}

	start := time.Now()
	resp, err := svc.Handle(context.Background(), transcache.Request{
		Items:   items,
		Locales: transcache.LocalePair{Source: *sourceLang, Target: *targetLang},
	})
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	elapsed := time.Since(start)

	if *cacheFile != "" {
		if err := mc.SaveSnapshot(*cacheFile, map[string]string{"service": transcache.Name, "version": version}); err != nil {
			return fmt.Errorf("saving cache file: %w", err)
		}
	}

	ordered := make([]string, len(items))
	for i, item := range items {
		ordered[i] = resp.Translations[item.ID]
	}

	if *jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(JSONOutput{
			Translations:    ordered,
			CachedCount:     resp.CachedCount,
			TranslatedCount: resp.TranslatedCount,
			ElapsedMs:       elapsed.Milliseconds(),
		})
	}

	for _, text := range ordered {
		fmt.Fprintln(stdout, text)
	}

	if !*quiet {
		fmt.Fprintf(stderr, "\nDone in %v\n", elapsed.Round(time.Millisecond))
		fmt.Fprintf(stderr, "  Translated:   %d\n", resp.TranslatedCount)
		fmt.Fprintf(stderr, "  From cache:   %d\n", resp.CachedCount)
	}

	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
