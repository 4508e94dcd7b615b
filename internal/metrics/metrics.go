// Package metrics provides interfaces and implementations for collecting
// SMTP client and sink metrics. This package defines the Collector interface
// for recording metrics and the Server interface for exposing them.
package metrics

import (
	"context"
	"strings"
)

// DomainLabel returns the domain part of addr for use as a label value,
// or "unknown" when addr has none.
func DomainLabel(addr string) string {
	if idx := strings.LastIndex(addr, "@"); idx >= 0 && idx < len(addr)-1 {
		return addr[idx+1:]
	}
	return "unknown"
}

// Collector defines the interface for recording smtpsend metrics.
type Collector interface {
	// Client session metrics
	SessionOpened()
	SessionClosed()

	// Exchange metrics (command names, not full command lines)
	CommandSent(command string)
	ReplyReceived(code int)
	// kind is "transport", "malformed", or "mismatch"
	ExchangeFailed(command string, kind string)

	// Message metrics (recipient domain first)
	MessageSent(recipientDomain string, sizeBytes int64)

	// Sink metrics
	ConnectionAccepted()
	ConnectionClosed()
	MessageCaptured(recipientDomain string, sizeBytes int64)
	MessageRejected(recipientDomain string, reason string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
