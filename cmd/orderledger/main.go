package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/orderledger/internal/config"
	"github.com/efreitasn/orderledger/internal/domain"
	"github.com/efreitasn/orderledger/internal/handler"
	"github.com/efreitasn/orderledger/internal/metrics"
	"github.com/efreitasn/orderledger/internal/persist"
	"github.com/efreitasn/orderledger/internal/registry"
	"github.com/efreitasn/orderledger/internal/session"
	"github.com/efreitasn/orderledger/internal/sink"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Registry with Prometheus instrumentation.
	m := metrics.New()
	reg := registry.New(logger)
	reg.SetMetrics(m)

	// Restore state from the last snapshot. A missing file means a
	// fresh start; anything else is fatal.
	if err := reg.Load(cfg.SnapshotPath); err != nil {
		var perr *domain.PersistenceError
		if errors.As(err, &perr) && errors.Is(perr.Err, os.ErrNotExist) {
			logger.Info("no snapshot found, starting empty",
				slog.String("path", cfg.SnapshotPath))
		} else {
			logger.Error("failed to load snapshot", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Durable audit trail (optional).
	var auditDB *sink.SQLiteSink
	if cfg.AuditDBPath != "" {
		auditDB, err = sink.NewSQLiteSink(cfg.AuditDBPath)
		if err != nil {
			logger.Error("failed to open audit db", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer auditDB.Close()
		reg.RegisterAuditSink(auditDB)
	}

	// Live event feed.
	hub := handler.NewHub(logger, cfg.WSSendBuffer)
	defer hub.Close()
	reg.RegisterAuditSink(hub)

	// Built-in quantity limit when configured.
	if cfg.MaxOrderQuantity > 0 {
		limit := cfg.MaxOrderQuantity
		reg.RegisterRiskCheck("max-quantity", func(o *domain.Order) (bool, string) {
			if o.Quantity > limit {
				return false, fmt.Sprintf("quantity %g exceeds limit %g", o.Quantity, limit)
			}
			return true, ""
		})
	}

	// Trading session gate.
	cal, err := session.NewCalendar(cfg.SessionTimezone)
	if err != nil {
		logger.Error("failed to load session timezone", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Router.
	router := handler.NewRouter(reg, handler.Options{
		Calendar:       cal,
		EnforceSession: cfg.EnforceSession,
		SnapshotPath:   cfg.SnapshotPath,
		Hub:            hub,
		Metrics:        m,
	}, logger)

	// Start autosave goroutine with cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	persist.NewAutosaver(cfg.AutosaveInterval, cfg.SnapshotPath, reg, logger).Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops autosave),
	// then write a final snapshot.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	if err := reg.Save(cfg.SnapshotPath); err != nil {
		logger.Error("final snapshot failed", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
