// Package sink implements a capture-only SMTP server. It accepts every
// transaction that fits its limits, holds the most recent messages in memory,
// and never relays or stores mail anywhere else. It is the local target for
// smtpsend during development and in end-to-end tests.
package sink

import (
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/infodancer/smtpsend/internal/logging"
	"github.com/infodancer/smtpsend/internal/metrics"
)

// Message is one captured mail transaction.
type Message struct {
	Helo       string
	ClientIP   string
	From       string
	Recipients []string
	Data       []byte
	Received   time.Time
}

// Backend implements the go-smtp Backend interface.
// It creates new sessions for each connection and stores what they capture.
type Backend struct {
	collector     metrics.Collector
	maxRecipients int
	keep          int
	rejectDomains map[string]bool
	logger        *slog.Logger

	mu       sync.Mutex
	messages []Message
}

// BackendConfig holds configuration for creating a Backend.
type BackendConfig struct {
	Collector     metrics.Collector // nil → NoopCollector
	MaxRecipients int               // 0 → unlimited
	Keep          int               // captured messages retained; 0 → unlimited
	RejectDomains []string          // recipient domains answered with 550
	Logger        *slog.Logger
}

// NewBackend creates a new Backend with the given configuration.
func NewBackend(cfg BackendConfig) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := cfg.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	reject := make(map[string]bool, len(cfg.RejectDomains))
	for _, d := range cfg.RejectDomains {
		reject[strings.ToLower(d)] = true
	}

	return &Backend{
		collector:     collector,
		maxRecipients: cfg.MaxRecipients,
		keep:          cfg.Keep,
		rejectDomains: reject,
		logger:        logger,
	}
}

// NewSession is called for each new connection.
// It implements the smtp.Backend interface.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	b.collector.ConnectionAccepted()

	var remote string
	if nc := c.Conn(); nc != nil && nc.RemoteAddr() != nil {
		remote = nc.RemoteAddr().String()
	}

	return &Session{
		backend:  b,
		helo:     c.Hostname(),
		clientIP: extractIPFromConn(c.Conn()),
		logger:   logging.WithConnection(b.logger, remote),
	}, nil
}

// Messages returns a copy of the captured messages, oldest first.
func (b *Backend) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Clear discards all captured messages.
func (b *Backend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

func (b *Backend) capture(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append(b.messages, m)
	if b.keep > 0 && len(b.messages) > b.keep {
		b.messages = append([]Message(nil), b.messages[len(b.messages)-b.keep:]...)
	}
}

func (b *Backend) rejects(recipient string) bool {
	return b.rejectDomains[strings.ToLower(metrics.DomainLabel(recipient))]
}

// extractIPFromConn extracts the IP address string from a net.Conn.
func extractIPFromConn(conn net.Conn) string {
	if conn == nil {
		return ""
	}

	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}

	switch v := addr.(type) {
	case *net.TCPAddr:
		return v.IP.String()
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return addr.String()
		}
		return host
	}
}
