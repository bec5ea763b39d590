package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"legalease/internal/analysis"
	"legalease/internal/config"
	"legalease/internal/extract"
	handlers "legalease/internal/http/handler"
	"legalease/internal/http/middleware"
	"legalease/internal/logging"
	"legalease/internal/oracle"
	"legalease/internal/otel"
	"legalease/internal/repository/memory"
	"legalease/internal/service"
	"legalease/internal/whatsapp"
)

const shutdownTimeout = 10 * time.Second

// @title LegalEase API
// @version 1.0
// @BasePath /
func main() {
	if err := run(); err != nil {
		logging.New(logging.Config{}, os.Stderr).Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from defaults, CONFIG_FILE and environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Document store and its sweeper
	store := memory.NewDocumentMemory(cfg.Store.SessionTimeout, memory.WithLogger(log))
	if err := store.RegisterMetrics(reg); err != nil {
		return err
	}
	janitor := memory.NewJanitor(store, cfg.Store.SweepInterval, cfg.Store.SweepRetry,
		memory.WithJanitorLogger(log),
		memory.WithJanitorMetrics(reg),
	)

	extractor := extract.New(
		extract.WithMaxPages(cfg.Extraction.MaxPages),
		extract.WithMinTextLength(cfg.Extraction.MinTextLength),
		extract.WithLogger(log),
	)

	// No API key means offline analysis
	var gen oracle.Generator
	if !cfg.OfflineMode() {
		client, err := oracle.NewClient(oracle.Config{
			APIKey:          cfg.Oracle.APIKey,
			BaseURL:         cfg.Oracle.BaseURL,
			Model:           cfg.Oracle.Model,
			Timeout:         cfg.Oracle.Timeout,
			BreakerFailures: cfg.Oracle.BreakerFailures,
			BreakerCooldown: cfg.Oracle.BreakerCooldown,
		}, oracle.WithLogger(log))
		if err != nil {
			return err
		}
		gen = client
		log.Info("oracle configured", "model", client.Model())
	} else {
		log.Warn("no GEMINI_API_KEY set, running in offline mode")
	}
	engine := analysis.New(gen,
		analysis.WithMaxPromptChars(cfg.Oracle.MaxPromptChars),
		analysis.WithLogger(log),
		analysis.WithMetrics(reg),
	)

	docSvc := service.NewDocumentService(extractor, store, engine, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(cfg.Upload.MaxFileSize),
		// multipart framing needs headroom over the file itself
		BodyLimit: int(cfg.Upload.MaxFileSize) + 1<<20,
	})

	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(prom.Handler())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Security())
	app.Use(middleware.CORS(cfg.CORS.AllowOrigins))

	handlers.RegisterRoutes(app, docSvc, handlers.Options{
		Upload:    cfg.Upload,
		RateLimit: cfg.RateLimit,
		Gatherer:  reg,
		Offline:   engine.Offline(),
	})

	sessions := whatsapp.NewSessions(cfg.Store.SessionTimeout)
	media := whatsapp.NewHTTPMediaFetcher(whatsapp.MediaConfig{
		AccountSID: cfg.WhatsApp.AccountSID,
		AuthToken:  cfg.WhatsApp.AuthToken,
		Timeout:    cfg.WhatsApp.MediaTimeout,
		MaxSize:    cfg.Upload.MaxFileSize,
	}, whatsapp.WithMediaLogger(log))
	whatsapp.NewWebhook(docSvc, media, sessions, whatsapp.Config{
		MaxFileSize:       cfg.Upload.MaxFileSize,
		MaxQuestionLength: cfg.Upload.MaxQuestionLength,
	}, whatsapp.WithLogger(log)).Register(
		app.Group("/whatsapp"),
		middleware.RateLimit(cfg.RateLimit.Webhook, cfg.RateLimit.Window, handlers.RateLimited()),
	)
	sessionJanitor := memory.NewJanitor(sessions, cfg.Store.SweepInterval, cfg.Store.SweepRetry,
		memory.WithJanitorLogger(log.With("sweeper", "whatsapp_sessions")),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return janitor.Run(gctx) })
	g.Go(func() error { return sessionJanitor.Run(gctx) })
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("server starting", "addr", addr, "env", cfg.Env, "offline", engine.Offline())
		return app.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	err = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if terr := shutdownTracing(flushCtx); terr != nil {
		log.Error("tracer shutdown failed", "error", terr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
