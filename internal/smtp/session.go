// Package smtp implements a minimal SMTP client engine: it performs the
// greeting and HELO handshake, sends one MAIL FROM / RCPT TO / DATA
// transaction, and terminates the session with QUIT.
//
// Every exchange writes one CRLF-terminated command and reads exactly one
// reply line. Multi-line (continuation) replies are not supported.
package smtp

import (
	"errors"
	"log/slog"
	"os"

	"github.com/infodancer/smtpsend/internal/metrics"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig holds settings for a new Session.
type SessionConfig struct {
	LocalName string            // HELO argument; empty → OS hostname
	Collector metrics.Collector // nil → NoopCollector
	Logger    *slog.Logger      // nil → slog.Default()
}

func (c SessionConfig) collectorOrNoop() metrics.Collector {
	if c.Collector == nil {
		return &metrics.NoopCollector{}
	}
	return c.Collector
}

// Session drives one SMTP conversation over a Transport it owns.
// A Session is not safe for concurrent use.
type Session struct {
	transport Transport
	state     State
	localName string
	collector metrics.Collector
	logger    *slog.Logger
}

// NewSession takes ownership of t and performs the handshake: it reads the
// 220 greeting and sends HELO expecting 250. On failure the transport is
// released and the returned error is a *HandshakeError or *TransportError.
func NewSession(t Transport, cfg SessionConfig) (*Session, error) {
	s := newSession(t, cfg)
	if err := s.handshake(); err != nil {
		return nil, err
	}
	return s, nil
}

func (c SessionConfig) loggerOrDefault() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func newSession(t Transport, cfg SessionConfig) *Session {
	logger := cfg.loggerOrDefault()

	collector := cfg.collectorOrNoop()
	collector.SessionOpened()

	return &Session{
		transport: t,
		state:     StateDisconnected,
		localName: resolveLocalName(cfg.LocalName),
		collector: collector,
		logger:    logger,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) handshake() error {
	s.state = StateHandshaking

	if _, err := s.exchange("greeting", "", ReplyServiceReady); err != nil {
		return s.abort(err)
	}

	if _, err := s.exchange("HELO", "HELO "+s.localName, ReplyOK); err != nil {
		return s.abort(err)
	}

	s.state = StateReady
	s.logger.Debug("session ready", slog.String("local_name", s.localName))
	return nil
}

// abort ends a failed handshake: the session returns to Disconnected and
// the transport is released.
func (s *Session) abort(err error) error {
	s.state = StateDisconnected
	_ = s.release()

	var pe *ProtocolError
	if errors.As(err, &pe) {
		return &HandshakeError{ProtocolError: pe}
	}
	return err
}

// Send transmits env as a single mail transaction:
//
//	MAIL FROM:<sender>   → 250
//	RCPT TO:<recipient>  → 250
//	DATA                 → 354
//	<message> CRLF "."   → 250
//
// The first failing step aborts the sequence; later commands are not sent.
// A failed Send does not close the session.
func (s *Session) Send(env Envelope) error {
	switch s.state {
	case StateReady:
	case StateClosed:
		return ErrSessionClosed
	default:
		return ErrNotReady
	}

	steps := []struct {
		name   string
		line   string
		expect int
	}{
		{"MAIL FROM", "MAIL FROM:<" + env.Sender + ">", ReplyOK},
		{"RCPT TO", "RCPT TO:<" + env.Recipient + ">", ReplyOK},
		{"DATA", "DATA", ReplyStartMailInput},
		{"message", env.Message + "\r\n.", ReplyOK},
	}

	for _, step := range steps {
		if _, err := s.exchange(step.name, step.line, step.expect); err != nil {
			return err
		}
	}

	s.collector.MessageSent(env.RecipientDomain(), int64(len(env.Message)))
	s.logger.Debug("message accepted",
		slog.String("recipient_domain", env.RecipientDomain()),
		slog.Int("size", len(env.Message)))
	return nil
}

// Close sends QUIT (expecting 221) if the session is Ready, then releases
// the transport. A failed QUIT is logged and otherwise ignored; the session
// is Closed either way. Close on a Closed session is a no-op. The returned
// error only reports a failure to release the transport.
func (s *Session) Close() error {
	switch s.state {
	case StateClosed:
		return nil
	case StateReady:
		if _, err := s.exchange("QUIT", "QUIT", ReplyServiceClosing); err != nil {
			s.logger.Warn("QUIT failed, closing anyway", slog.String("error", err.Error()))
		}
	}

	s.state = StateClosed
	return s.release()
}

// exchange is the command/reply primitive. It writes line followed by CRLF
// (nothing when line is empty, as for the greeting), reads exactly one reply
// line, and checks its code against expect.
func (s *Session) exchange(name, line string, expect int) (Reply, error) {
	if line != "" {
		if _, err := s.transport.Write([]byte(line + "\r\n")); err != nil {
			s.collector.ExchangeFailed(name, "transport")
			return Reply{}, &TransportError{Op: "write", Err: err}
		}
		s.collector.CommandSent(name)
		s.logger.Debug("command sent", slog.String("command", name))
	}

	raw, err := s.transport.ReadLine()
	if err != nil {
		s.collector.ExchangeFailed(name, "transport")
		return Reply{}, &TransportError{Op: "read", Err: err}
	}

	reply, err := ParseReply(raw)
	if err != nil {
		s.collector.ExchangeFailed(name, "malformed")
		return Reply{}, &ProtocolError{Command: name, Expected: expect, Reply: raw, Err: err}
	}

	s.collector.ReplyReceived(reply.Code)
	s.logger.Debug("reply received",
		slog.String("command", name),
		slog.Int("code", reply.Code))

	if reply.Code != expect {
		s.collector.ExchangeFailed(name, "mismatch")
		return reply, &ProtocolError{Command: name, Expected: expect, Code: reply.Code, Reply: raw}
	}

	return reply, nil
}

// release closes the transport once.
func (s *Session) release() error {
	if s.transport == nil {
		return nil
	}

	t := s.transport
	s.transport = nil
	s.collector.SessionClosed()

	if err := t.Close(); err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// resolveLocalName returns the name sent with HELO.
func resolveLocalName(configured string) string {
	if configured != "" {
		return configured
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "localhost"
}
