package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"centscape-preview/internal/config"
	"centscape-preview/internal/infra/extractor"
	"centscape-preview/internal/infra/fetcher"
	"centscape-preview/internal/observability/logging"
	"centscape-preview/internal/observability/tracing"
	"centscape-preview/internal/resilience/circuitbreaker"
	"centscape-preview/internal/resilience/retry"

	previewUC "centscape-preview/internal/usecase/preview"

	hhttp "centscape-preview/internal/handler/http"
	"centscape-preview/internal/handler/http/middleware"
	hpreview "centscape-preview/internal/handler/http/preview"
	"centscape-preview/internal/handler/http/requestid"

	_ "centscape-preview/docs" // swagger docs
)

// @title           Centscape Preview API
// @version         1.0
// @description     ウィッシュリスト向けリンクプレビュー API
// @description     商品ページを安全に取得し、タイトル・画像・価格・通貨・サイト名を抽出します。

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:4000
// @BasePath  /

func main() {
	cfg, err := config.Load()
	if err != nil {
		// ロガー設定前なのでデフォルトのロガーで出力
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	shutdownTracing := tracing.Init(cfg.Tracing.SampleRatio)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	version := getVersion()
	components, err := setupServer(logger, cfg, version)
	if err != nil {
		logger.Error("failed to set up server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := runServer(logger, cfg, components, version); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// initLogger builds the process logger and installs it as the slog default.
func initLogger(cfg config.LogConfig) *slog.Logger {
	logger := logging.New(os.Stdout, cfg.Format, logging.ParseLevel(cfg.Level))
	slog.SetDefault(logger)
	return logger
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
	Draining    *atomic.Bool
}

// setupServer wires the preview use case, routes and middleware.
func setupServer(logger *slog.Logger, cfg config.Config, version string) (*ServerComponents, error) {
	if !cfg.Fetch.DenyPrivateIPs {
		logger.Warn("private destination blocking is DISABLED - never run this way in production")
	}

	breakers := circuitbreaker.NewRegistry(cfg.Breaker.MaxHosts, func(host string) circuitbreaker.Config {
		return cfg.Breaker.Apply(previewUC.BreakerConfig(host))
	})

	retryCfg := retry.PreviewFetchConfig()
	retryCfg.MaxAttempts = cfg.Preview.RetryMaxAttempts

	svc := &previewUC.Service{
		Fetcher:      fetcher.NewBoundedFetcher(cfg.Fetch, nil),
		Extractor:    extractor.New(),
		Breakers:     breakers,
		Retry:        retryCfg,
		Limiter:      semaphore.NewWeighted(int64(cfg.Preview.MaxConcurrentFetches)),
		AllowRawHTML: cfg.Preview.AllowRawHTML,
	}

	logger.Info("preview service initialized",
		slog.Duration("fetch_timeout", cfg.Fetch.Timeout),
		slog.Int64("max_body_size", cfg.Fetch.MaxBodySize),
		slog.Int("max_redirects", cfg.Fetch.MaxRedirects),
		slog.Bool("resolve_hostnames", cfg.Fetch.ResolveHostnames),
		slog.Bool("allow_raw_html", cfg.Preview.AllowRawHTML),
		slog.Int("retry_max_attempts", cfg.Preview.RetryMaxAttempts),
		slog.Int("max_concurrent_fetches", cfg.Preview.MaxConcurrentFetches))

	ipExtractor, err := newIPExtractor(logger, cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, ipExtractor)
	logger.Info("rate limiting initialized",
		slog.Int("requests", cfg.RateLimit.Requests),
		slog.Duration("window", cfg.RateLimit.Window))

	draining := &atomic.Bool{}
	mux := setupRoutes(svc, breakers, rateLimiter, draining, version)

	handler, err := applyMiddleware(logger, cfg, mux, rateLimiter)
	if err != nil {
		return nil, err
	}

	return &ServerComponents{
		Handler:     handler,
		RateLimiter: rateLimiter,
		Draining:    draining,
	}, nil
}

// newIPExtractor returns the extractor used to key the rate limiter.
func newIPExtractor(logger *slog.Logger, cfg config.RateLimitConfig) (middleware.IPExtractor, error) {
	if !cfg.TrustProxy {
		logger.Info("rate limiting: using RemoteAddr (secure mode, proxy headers ignored)")
		return &middleware.RemoteAddrExtractor{}, nil
	}

	prefixes, err := cfg.ProxyPrefixes()
	if err != nil {
		return nil, err
	}
	logger.Info("rate limiting: trusted proxy mode enabled",
		slog.Int("trusted_proxies_count", len(prefixes)))
	return middleware.NewTrustedProxyExtractor(middleware.TrustedProxyConfig{
		Enabled:      true,
		AllowedCIDRs: prefixes,
	}), nil
}

// setupRoutes registers all HTTP routes.
func setupRoutes(
	svc hpreview.Previewer,
	breakers *circuitbreaker.Registry,
	rateLimiter *middleware.RateLimiter,
	draining *atomic.Bool,
	version string,
) *http.ServeMux {
	mux := http.NewServeMux()
	hpreview.Register(mux, svc)

	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, tracing.Route(h))
	}

	// ヘルスチェックエンドポイント
	handle("GET /health", &hhttp.HealthHandler{
		Version:     version,
		Draining:    draining,
		Breakers:    breakers,
		RateLimiter: rateLimiter,
	})
	handle("GET /ready", &hhttp.ReadyHandler{Draining: draining})
	handle("GET /live", &hhttp.LiveHandler{})
	handle("GET /metrics", hhttp.MetricsHandler())

	// Swagger UI
	handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// applyMiddleware wraps the handler with the middleware chain.
// Order (outer → inner): CORS → Request ID → Tracing → IP Rate Limit →
// Recovery → Logging → Body Limit → Metrics → Request Timeout
func applyMiddleware(logger *slog.Logger, cfg config.Config, handler http.Handler, rateLimiter *middleware.RateLimiter) (http.Handler, error) {
	origins, err := cfg.CORS.Origins()
	if err != nil {
		return nil, err
	}
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = origins
	corsConfig.Logger = logger

	logger.Info("CORS enabled",
		slog.Any("allowed_origins", corsConfig.AllowedOrigins),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Int("max_age", corsConfig.MaxAge))

	// 内側から外側の順に適用
	chain := handler
	chain = hhttp.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = hhttp.MetricsMiddleware(chain)
	chain = hhttp.LimitRequestBody(cfg.Server.MaxBodyBytes)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = rateLimiter.Middleware(chain)
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)
	chain = middleware.CORS(corsConfig)(chain)

	return chain, nil
}

// runServer serves until SIGINT/SIGTERM, then drains and shuts down.
func runServer(logger *slog.Logger, cfg config.Config, components *ServerComponents, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return hhttp.StartRateLimitCleanup(gctx, components.RateLimiter, cfg.RateLimit.CleanupSchedule, logger)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		components.Draining.Store(true)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.Any("error", err))
			return err
		}
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
