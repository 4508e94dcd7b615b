package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/infodancer/smtpsend/internal/logging"
)

// Server runs a go-smtp server in front of a capture Backend.
type Server struct {
	server  *gosmtp.Server
	backend *Backend
	logger  *slog.Logger
}

// ServerConfig holds configuration for creating a Server.
type ServerConfig struct {
	Backend        *Backend
	Address        string
	Domain         string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int
	Logger         *slog.Logger
}

// NewServer creates a Server. It does not start listening. The recipient
// limit is enforced by the Backend, not by go-smtp.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := gosmtp.NewServer(cfg.Backend)
	s.Addr = cfg.Address
	s.Domain = cfg.Domain
	s.ReadTimeout = cfg.ReadTimeout
	s.WriteTimeout = cfg.WriteTimeout
	s.MaxMessageBytes = int64(cfg.MaxMessageSize)

	return &Server{
		server:  s,
		backend: cfg.Backend,
		logger:  logging.WithListener(logger, cfg.Address),
	}
}

// Backend returns the capture backend.
func (s *Server) Backend() *Backend {
	return s.backend
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("sink %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the
// server down gracefully. It returns ctx.Err() after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.server.Serve(ln)
	}()

	s.logger.Info("sink listening", slog.String("address", ln.Addr().String()))

	select {
	case err := <-errChan:
		return fmt.Errorf("sink %s: %w", ln.Addr(), err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down sink")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error shutting down sink", slog.String("error", err.Error()))
	}

	if err := <-errChan; err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
		s.logger.Error("sink error", slog.String("error", err.Error()))
	}

	s.logger.Info("sink stopped")
	return ctx.Err()
}
