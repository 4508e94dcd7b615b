package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infodancer/smtpsend/internal/config"
	"github.com/infodancer/smtpsend/internal/logging"
	"github.com/infodancer/smtpsend/internal/metrics"
	"github.com/infodancer/smtpsend/internal/sink"
)

func runSink() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	collector, metricsServer, _ := metrics.New(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Address: cfg.Metrics.Address,
		Path:    cfg.Metrics.Path,
	})
	if cfg.Metrics.Enabled {
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	backend := sink.NewBackend(sink.BackendConfig{
		Collector:     collector,
		MaxRecipients: cfg.Sink.MaxRecipients,
		Keep:          cfg.Sink.Keep,
		RejectDomains: cfg.Sink.RejectDomains,
		Logger:        logger,
	})

	srv := sink.NewServer(sink.ServerConfig{
		Backend:        backend,
		Address:        cfg.Sink.Listen,
		Domain:         cfg.Sink.Domain,
		ReadTimeout:    cfg.Timeouts.CommandTimeout(),
		WriteTimeout:   cfg.Timeouts.CommandTimeout(),
		MaxMessageSize: cfg.Sink.MaxMessageSize,
		Logger:         logger,
	})

	logger.Info("starting sink",
		"listen", cfg.Sink.Listen,
		"domain", cfg.Sink.Domain,
		"metrics", cfg.Metrics.Enabled)

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "sink error: %v\n", err)
		os.Exit(1)
	}
}
