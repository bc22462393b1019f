package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/chatdesk/cmd/mainconfig"
	"github.com/wolfman30/chatdesk/internal/api/router"
	"github.com/wolfman30/chatdesk/internal/app/bootstrap"
	"github.com/wolfman30/chatdesk/internal/chat"
	appconfig "github.com/wolfman30/chatdesk/internal/config"
	"github.com/wolfman30/chatdesk/internal/dashboard"
	httpmiddleware "github.com/wolfman30/chatdesk/internal/http/middleware"
	"github.com/wolfman30/chatdesk/internal/intent"
	"github.com/wolfman30/chatdesk/internal/notify"
	"github.com/wolfman30/chatdesk/internal/observability/metrics"
	"github.com/wolfman30/chatdesk/internal/operator"
	"github.com/wolfman30/chatdesk/internal/responder"
	"github.com/wolfman30/chatdesk/internal/session"
	"github.com/wolfman30/chatdesk/internal/webchat"
	"github.com/wolfman30/chatdesk/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting chatdesk API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// app is everything main wires together, split out so tests can build it
// without listening on a port.
type app struct {
	handler  http.Handler
	cache    *session.MemoryCache
	sessions session.Cache
	metrics  *metrics.ChatMetrics
	limiter  *httpmiddleware.RateLimiter
	worker   *notify.Worker
	closers  []func()
	interval time.Duration
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	a, err := buildApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	bgCtx, cancelBG := context.WithCancel(context.Background())
	defer cancelBG()
	if a.cache != nil {
		go a.cache.Run(bgCtx, a.interval)
	}
	if a.sessions != nil {
		go a.metrics.TrackCacheEntries(bgCtx, a.sessions.Len, time.Minute)
	}
	go a.limiter.Run(bgCtx.Done())
	if a.worker != nil {
		a.worker.Start(bgCtx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// Stop background loops after in-flight requests have finished so queued
	// handoff notices from those requests are still picked up.
	cancelBG()
	if a.worker != nil {
		a.worker.Wait()
	}
	return nil
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{interval: cfg.SessionSweepInterval}

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	chatMetrics := metrics.NewChatMetrics(reg)
	a.metrics = chatMetrics

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		awsCfg = &loaded
	}

	readyChecks := map[string]router.HealthCheck{}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		readyChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	db, err := bootstrap.BuildDatabase(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
		readyChecks["postgres"] = db.Pool.Ping
	}

	operators := bootstrap.BuildOperatorStore(cfg, redisClient, db, logger)
	transcripts := bootstrap.BuildTranscriptStore(cfg, db, logger)
	cache, sweeper := bootstrap.BuildSessionCache(cfg, redisClient, logger)
	a.cache = sweeper
	a.sessions = cache

	llm, err := bootstrap.BuildCompletionClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if closer, ok := llm.(interface{ Close() error }); ok {
		a.closers = append(a.closers, func() { _ = closer.Close() })
	}

	email := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	notifier, worker, err := bootstrap.BuildNotifier(cfg, email, awsCfg, chatMetrics, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.worker = worker

	deps := chat.Deps{
		Operators:    operators,
		Transcripts:  transcripts,
		Cache:        cache,
		Classifier:   intent.NewKeywordClassifier(nil),
		SMS:          bootstrap.BuildSMSSender(cfg, logger),
		Notifier:     notifier,
		Metrics:      chatMetrics,
		Logger:       logger,
		HistoryLimit: cfg.SessionHistoryLimit,
		Weather:      bootstrap.BuildWeatherClient(cfg, logger),
	}
	deps.Replier = responder.New(llm,
		responder.WithTimeout(cfg.LLMTimeout),
		responder.WithMetrics(chatMetrics),
		responder.WithLogger(logger),
	)
	if archiver := bootstrap.BuildArchiver(cfg, awsCfg, logger); archiver != nil {
		deps.Archiver = archiver
	}
	svc, err := chat.New(deps)
	if err != nil {
		a.close()
		return nil, err
	}

	a.limiter = httpmiddleware.NewRateLimiter(cfg.ChatRateLimitRPS, cfg.ChatRateLimitBurst)
	a.handler = router.New(&router.Config{
		Logger:             logger,
		Webchat:            webchat.NewHandler(svc, nil, logger),
		Dashboard:          dashboard.NewHandler(svc, logger),
		Operators:          operator.NewHandler(operators, logger),
		ChatLimiter:        a.limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ReadyChecks:        readyChecks,
	})
	return a, nil
}

// needsAWS reports whether any configured component talks to AWS.
func needsAWS(cfg *appconfig.Config) bool {
	return cfg.LLMProvider == "bedrock" ||
		cfg.LLMFallbackProvider == "bedrock" ||
		cfg.EmailProvider == "ses" ||
		cfg.NotifyMode == "sqs" ||
		cfg.ArchiveBucket != ""
}
