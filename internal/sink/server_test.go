package sink

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/infodancer/smtpsend/internal/logging"
	"github.com/infodancer/smtpsend/internal/metrics"
)

// startSink serves a sink on a free loopback port until the test ends.
func startSink(t *testing.T, bcfg BackendConfig, maxSize int) (*Server, string) {
	t.Helper()

	logger := logging.NewLoggerTo(io.Discard, "debug")
	bcfg.Logger = logger

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}

	srv := NewServer(ServerConfig{
		Backend:        NewBackend(bcfg),
		Address:        ln.Addr().String(),
		Domain:         "sink.test",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		MaxMessageSize: maxSize,
		Logger:         logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("sink did not stop in time")
		}
	})

	return srv, ln.Addr().String()
}

// deliver runs one transaction with the go-smtp client.
func deliver(addr, from string, to []string, body string) error {
	c, err := gosmtp.Dial(addr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Hello("client.test"); err != nil {
		return err
	}
	if err := c.Mail(from, nil); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func TestServerCapturesMessage(t *testing.T) {
	srv, addr := startSink(t, BackendConfig{Keep: 10}, 1<<20)

	body := "Subject: hello\r\n\r\nHello\r\n"
	if err := deliver(addr, "a@x.com", []string{"b@y.com", "c@z.com"}, body); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	msgs := srv.Backend().Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 captured message, got %d", len(msgs))
	}

	m := msgs[0]
	if m.From != "a@x.com" {
		t.Errorf("from = %q, want a@x.com", m.From)
	}
	if strings.Join(m.Recipients, ",") != "b@y.com,c@z.com" {
		t.Errorf("recipients = %v", m.Recipients)
	}
	if m.Helo != "client.test" {
		t.Errorf("helo = %q, want client.test", m.Helo)
	}
	if m.ClientIP != "127.0.0.1" {
		t.Errorf("client ip = %q, want 127.0.0.1", m.ClientIP)
	}
	if string(m.Data) != body {
		t.Errorf("data = %q, want %q", m.Data, body)
	}
	if m.Received.IsZero() {
		t.Error("received time not set")
	}
}

func TestServerRejectsConfiguredDomain(t *testing.T) {
	srv, addr := startSink(t, BackendConfig{RejectDomains: []string{"blocked.example"}}, 1<<20)

	err := deliver(addr, "a@x.com", []string{"b@blocked.example"}, "Hello\r\n")

	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 550 {
		t.Fatalf("deliver error = %v, want 550", err)
	}
	if n := len(srv.Backend().Messages()); n != 0 {
		t.Errorf("expected no captured messages, got %d", n)
	}
}

func TestServerRejectsOversizedMessage(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, addr := startSink(t, BackendConfig{Collector: metrics.NewPrometheusCollector(reg)}, 64)

	err := deliver(addr, "a@x.com", []string{"b@y.com"}, strings.Repeat("x", 1024)+"\r\n")
	if err == nil {
		t.Fatal("expected oversized message to be rejected")
	}
	if n := len(srv.Backend().Messages()); n != 0 {
		t.Errorf("expected no captured messages, got %d", n)
	}

	expected := `
# HELP smtpsend_sink_messages_rejected_total Total number of messages rejected by the sink.
# TYPE smtpsend_sink_messages_rejected_total counter
smtpsend_sink_messages_rejected_total{reason="too_large",recipient_domain="y.com"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "smtpsend_sink_messages_rejected_total"); err != nil {
		t.Error(err)
	}
}

func TestServerTooManyRecipients(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, addr := startSink(t, BackendConfig{
		Collector:     metrics.NewPrometheusCollector(reg),
		MaxRecipients: 1,
	}, 1<<20)

	err := deliver(addr, "a@x.com", []string{"b@y.com", "c@y.com"}, "Hello\r\n")

	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 452 {
		t.Fatalf("deliver error = %v, want 452", err)
	}
	if smtpErr.Message != "Too many recipients" {
		t.Errorf("reply message = %q, want the backend's rejection", smtpErr.Message)
	}

	expected := `
# HELP smtpsend_sink_messages_rejected_total Total number of messages rejected by the sink.
# TYPE smtpsend_sink_messages_rejected_total counter
smtpsend_sink_messages_rejected_total{reason="too_many_recipients",recipient_domain="y.com"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "smtpsend_sink_messages_rejected_total"); err != nil {
		t.Error(err)
	}
}

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, addr := startSink(t, BackendConfig{Collector: metrics.NewPrometheusCollector(reg)}, 1<<20)

	if err := deliver(addr, "a@x.com", []string{"b@y.com"}, "Hello\r\n"); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	expected := `
# HELP smtpsend_sink_connections_total Total number of connections accepted by the sink.
# TYPE smtpsend_sink_connections_total counter
smtpsend_sink_connections_total 1
# HELP smtpsend_sink_messages_total Total number of messages captured by the sink.
# TYPE smtpsend_sink_messages_total counter
smtpsend_sink_messages_total{recipient_domain="y.com"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"smtpsend_sink_connections_total",
		"smtpsend_sink_messages_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestServerRun(t *testing.T) {
	// Find available port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := NewServer(ServerConfig{
		Backend:        NewBackend(BackendConfig{}),
		Address:        addr,
		Domain:         "localhost",
		ReadTimeout:    5 * time.Minute,
		WriteTimeout:   5 * time.Minute,
		MaxMessageSize: 10485760,
		Logger:         logging.NewLoggerTo(io.Discard, "info"),
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("failed to connect to server: %v", err)
	}

	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("failed to read greeting: %v", err)
	}

	greeting := string(buf[:n])
	if len(greeting) < 4 || greeting[:3] != "220" {
		t.Errorf("expected 220 greeting, got %q", greeting)
	}

	_ = conn.Close()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServerRunAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	srv := NewServer(ServerConfig{
		Backend: NewBackend(BackendConfig{}),
		Address: ln.Addr().String(),
		Logger:  logging.NewLoggerTo(io.Discard, "info"),
	})

	if err := srv.Run(context.Background()); err == nil {
		t.Error("expected error when address is already in use")
	}
}
