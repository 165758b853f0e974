package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medverify/internal/credential"
	"medverify/internal/doctor"
	"medverify/internal/platform/config"
	"medverify/internal/platform/health"
	"medverify/internal/platform/httpserver"
	"medverify/internal/platform/logger"
	"medverify/internal/platform/middleware"
	"medverify/internal/ratelimit"
	"medverify/internal/registry"
	"medverify/internal/registry/browser"
	"medverify/internal/verification"
	"medverify/internal/verification/handler"
	"medverify/internal/verification/ledger"
	"medverify/internal/verification/metrics"
	"medverify/pkg/platform/audit/publisher"
	"medverify/pkg/platform/circuit"
)

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("medverify exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	auditor := publisher.NewPublisher(deps.auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer func() {
		if err := auditor.Close(); err != nil {
			log.Warn("audit publisher close failed", "error", err)
		}
	}()

	m := metrics.New()
	loc := cfg.Registry.Location()
	breaker := circuit.New("registry",
		circuit.WithFailureThreshold(cfg.Registry.BreakerFailures),
		circuit.WithCooldown(cfg.Registry.BreakerCooldown),
	)
	launcher := browser.NewLauncher(browser.Config{
		BaseURL:  cfg.Registry.BaseURL,
		Headless: cfg.Registry.Headless,
		ExecPath: cfg.Registry.ChromePath,
	}, log)
	registryClient := registry.NewClient(launcher,
		registry.WithLogger(log),
		registry.WithObserver(m),
		registry.WithBreaker(breaker),
		registry.WithExtractor(registry.NewExtractor(registry.DefaultSelectors(), loc)),
		registry.WithTimeouts(cfg.Registry.NavigationTimeout, cfg.Registry.ResultTimeout, cfg.Registry.DetailTimeout),
		registry.WithNavigationRetries(cfg.Registry.NavigationRetries),
	)

	ledgerSvc := ledger.NewService(deps.ledgerStore, ledger.WithLogger(log))
	engine := verification.NewService(registryClient, ledgerSvc,
		verification.WithLogger(log),
		verification.WithMetrics(m),
		verification.WithAuditPublisher(auditor),
		verification.WithGuard(deps.guard),
		verification.WithMaxConcurrent(cfg.Registry.MaxConcurrent),
		verification.WithLookupHashKey([]byte(cfg.Privacy.LookupHashKey)),
		verification.WithLocation(loc),
	)
	doctors := doctor.NewService(deps.doctorStore,
		doctor.WithLogger(log),
		doctor.WithAuditPublisher(auditor),
	)
	issuer := credential.NewIssuer(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience,
		credential.WithTTL(cfg.Auth.AccessTokenTTL),
		credential.WithAuditPublisher(auditor),
		credential.WithLogger(log),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.AccessLog(log))
	r.Get("/health", health.Handler(deps.checks, 3*time.Second))
	r.Handle("/metrics", promhttp.Handler())

	limiter := ratelimit.New(deps.rateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window, log)
	api := handler.New(engine, ledgerSvc, doctors, issuer, middleware.RequireAuth(issuer, auditor, log), log,
		handler.WithTimeout(cfg.Registry.AttemptBudget()),
	)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		api.Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, r, api.Timeout())
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting medverify",
			"addr", cfg.Server.Addr,
			"ledger_backend", cfg.Storage.Backend,
			"registry", cfg.Registry.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// In-flight verify requests must finish before the publisher and the
	// stores close behind them.
	log.Info("shutting down", "drain_timeout", srv.WriteTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
