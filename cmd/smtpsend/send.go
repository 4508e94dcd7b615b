package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/infodancer/smtpsend/internal/config"
	"github.com/infodancer/smtpsend/internal/dkim"
	"github.com/infodancer/smtpsend/internal/journal"
	"github.com/infodancer/smtpsend/internal/logging"
	"github.com/infodancer/smtpsend/internal/metrics"
	"github.com/infodancer/smtpsend/internal/smtp"
)

func runSend() {
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

	file, err := config.ResolveEnvelope(flags, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading envelope: %v\n", err)
		os.Exit(1)
	}

	env := smtp.Envelope{
		Dest:      file.Dest,
		Sender:    file.Sender,
		Recipient: file.Recipient,
		Message:   file.Message,
	}
	if err := env.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid envelope: %v\nusage: smtpsend send -server host -from addr -to addr (-message text | -message-file path)\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newSender(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing: %v\n", err)
		os.Exit(1)
	}

	err = s.send(ctx, env)
	if cerr := s.close(); cerr != nil {
		logger.Warn("error closing journal", slog.String("error", cerr.Error()))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
		os.Exit(1)
	}
}

// sender carries everything one send needs beyond the envelope.
type sender struct {
	cfg       config.Config
	logger    *slog.Logger
	collector metrics.Collector
	registry  *prometheus.Registry
	signer    *dkim.Signer
	journal   journal.Recorder
}

func newSender(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sender, error) {
	// A single send reports through the Pushgateway; the HTTP server is
	// never started here.
	collector, _, registry := metrics.New(metrics.Config{
		Enabled: cfg.Metrics.Enabled || cfg.Metrics.PushURL != "",
		Address: cfg.Metrics.Address,
		Path:    cfg.Metrics.Path,
	})

	s := &sender{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		registry:  registry,
		journal:   journal.NoopRecorder{},
	}

	if cfg.DKIM.Enabled() {
		signer, err := dkim.LoadSigner(dkim.Config{
			Domain:     cfg.DKIM.Domain,
			Selector:   cfg.DKIM.Selector,
			HeaderKeys: cfg.DKIM.HeaderKeys,
		}, cfg.DKIM.KeyFile)
		if err != nil {
			return nil, err
		}
		s.signer = signer
		logger.Debug("dkim signing enabled",
			slog.String("domain", cfg.DKIM.Domain),
			slog.String("selector", cfg.DKIM.Selector))
	}

	if cfg.Journal.Enabled() {
		rec, err := journal.NewRedisRecorder(ctx, journal.Config{
			Addr:       cfg.Journal.RedisAddr,
			Password:   cfg.Journal.Password,
			DB:         cfg.Journal.DB,
			Key:        cfg.Journal.Key,
			MaxEntries: cfg.Journal.MaxEntries,
		})
		if err != nil {
			return nil, err
		}
		s.journal = rec
	}

	return s, nil
}

// send signs env if configured, delivers it, and records the outcome in the
// journal and metrics. Journal and push failures are logged, not returned.
func (s *sender) send(ctx context.Context, env smtp.Envelope) error {
	logger := logging.WithSession(s.logger, env.Dest)

	if s.signer != nil {
		signed, err := s.signer.Sign(env.Message)
		if err != nil {
			return err
		}
		env.Message = signed
	}

	opts := smtp.Options{
		Dial: smtp.DialConfig{
			Port:           s.cfg.Port,
			ConnectTimeout: s.cfg.Timeouts.ConnectTimeout(),
			CommandTimeout: s.cfg.Timeouts.CommandTimeout(),
			LogTransaction: s.cfg.LogTransaction,
			Logger:         logger,
		},
		Session: smtp.SessionConfig{
			LocalName: s.cfg.Hostname,
			Collector: s.collector,
			Logger:    logger,
		},
	}

	start := time.Now()
	err := smtp.SendMail(ctx, env, opts)

	entry := journal.Entry{
		Time:         start.UTC(),
		Dest:         env.Dest,
		Sender:       env.Sender,
		SenderDomain: env.SenderDomain(),
		Recipient:    env.Recipient,
		Size:         len(env.Message),
		Result:       journal.ResultSent,
	}
	if err != nil {
		entry.Result = journal.ResultFailed
		entry.ErrorKind = smtp.FailureKind(err)
		entry.Error = err.Error()
		logger.Error("send failed",
			slog.String("kind", entry.ErrorKind),
			slog.String("error", err.Error()))
	} else {
		logger.Info("message sent",
			slog.String("recipient_domain", env.RecipientDomain()),
			slog.Int("size", len(env.Message)),
			slog.Duration("elapsed", time.Since(start)))
	}

	if jerr := s.journal.Record(ctx, entry); jerr != nil {
		logger.Warn("error writing journal", slog.String("error", jerr.Error()))
	}

	if s.registry != nil {
		if perr := metrics.Push(ctx, s.cfg.Metrics.PushURL, s.cfg.Metrics.Job, s.registry); perr != nil {
			logger.Warn("error pushing metrics", slog.String("error", perr.Error()))
		}
	}

	return err
}

func (s *sender) close() error {
	return s.journal.Close()
}
