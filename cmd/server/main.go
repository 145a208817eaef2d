package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"usos/internal/app"
	"usos/internal/config"
	"usos/internal/handlers"
	"usos/internal/log"
	"usos/internal/notify"
	"usos/internal/security"
)

const (
	eventQueueSize = 256
	// eventBinding receives every family's events
	eventBinding = "family.#"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logger := log.New(log.Config{Level: cfg.LogLevel, Component: log.ComponentApp, Output: os.Stdout})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Database connection established", "type", cfg.DatabaseType)

	subscribers, err := a.Subscribers(ctx)
	if err != nil {
		return err
	}
	broker := notify.NewBroker()
	local := append(notify.Multi{broker}, subscribers...)

	g, ctx := errgroup.WithContext(ctx)

	// With a broker every instance consumes the shared stream, so changes
	// made by other instances or usos-admin reach local subscribers too.
	if a.AMQP != nil {
		a.Wire(notify.Nop)
		g.Go(func() error {
			return a.AMQP.Consume(ctx, "", eventBinding, local.Notify)
		})
		logger.Info("Publishing events to AMQP", "exchange", cfg.AMQPExchange)
	} else {
		queue := notify.NewQueue(local, eventQueueSize, logger.WithComponent(log.ComponentNotify))
		a.Wire(queue)
		g.Go(func() error {
			return queue.Run(ctx)
		})
	}

	limiter := security.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	g.Go(func() error {
		limiter.Run(ctx, time.Minute)
		return nil
	})

	middleware := handlers.NewMiddleware(a.Tokens, a.Profiles, limiter, cfg.AdminPasswordHash,
		logger.WithComponent(log.ComponentHTTP))
	router := handlers.NewRouter(handlers.Handlers{
		Profile: handlers.NewProfileHandler(a.Profiles, a.Pairing),
		Family:  handlers.NewFamilyHandler(a.Pairing),
		Ledger:  handlers.NewLedgerHandler(a.Ledger, a.Pairing),
		Events:  handlers.NewEventsHandler(broker, 0),
		Admin:   handlers.NewAdminHandler(a.Admin, a.Pairing, a.Ledger, a.Backup, logger.WithComponent(log.ComponentAdmin)),
	}, middleware)

	if cfg.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, /admin accepts admin tokens only")
	}

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
