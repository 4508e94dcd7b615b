package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// SessionOpened is a no-op.
func (n *NoopCollector) SessionOpened() {}

// SessionClosed is a no-op.
func (n *NoopCollector) SessionClosed() {}

// CommandSent is a no-op.
func (n *NoopCollector) CommandSent(command string) {}

// ReplyReceived is a no-op.
func (n *NoopCollector) ReplyReceived(code int) {}

// ExchangeFailed is a no-op.
func (n *NoopCollector) ExchangeFailed(command string, kind string) {}

// MessageSent is a no-op.
func (n *NoopCollector) MessageSent(recipientDomain string, sizeBytes int64) {}

// ConnectionAccepted is a no-op.
func (n *NoopCollector) ConnectionAccepted() {}

// ConnectionClosed is a no-op.
func (n *NoopCollector) ConnectionClosed() {}

// MessageCaptured is a no-op.
func (n *NoopCollector) MessageCaptured(recipientDomain string, sizeBytes int64) {}

// MessageRejected is a no-op.
func (n *NoopCollector) MessageRejected(recipientDomain string, reason string) {}
