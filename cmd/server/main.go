package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/archive"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/config"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/httpapi"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/hub"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/logging"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/telemetry"
	"github.com/DoyleJ11/carbon-ledger-backend/internal/ws"
)

const serviceName = "carbon-ledger"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(2)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}

	var archiver archive.Archiver = archive.Nop{}
	if cfg.DatabaseURL != "" {
		store, err := archive.Open(cfg.DatabaseURL)
		if err != nil {
			return multierr.Append(err, shutdownTracing(context.Background()))
		}
		archiver = store
		log.Info("archiving finished sessions to postgres")
	}

	rules := engine.DefaultRules()
	rules.MinPlayers = cfg.MinPlayers

	// Rooms outlive the signal context so in-flight sessions can finish
	// while the listener drains.
	h := hub.NewHub(context.Background(),
		hub.WithLogger(log),
		hub.WithRules(rules),
		hub.WithCodeGenerator(hub.NumericCodes(cfg.CodeDigits)),
		hub.WithArchiver(archiver),
	)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, log, ws.Options{
			OutboxSize:     cfg.OutboxSize,
			WriteTimeout:   cfg.WriteTimeout,
			PingInterval:   cfg.PingInterval,
			OriginPatterns: cfg.AllowedOrigins,
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		// Shutdown does not wait for hijacked websocket connections; stopping
		// the hub ends their rooms.
		err := srv.Shutdown(sctx)
		h.Shutdown()
		return multierr.Combine(err, shutdownTracing(sctx))
	})

	err = g.Wait()
	return multierr.Append(err, archiver.Close())
}
