package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var messageSizeBuckets = []float64{1024, 10240, 102400, 1048576, 10485760, 26214400, 52428800}

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Session metrics
	sessionsTotal  prometheus.Counter
	sessionsActive prometheus.Gauge

	// Exchange metrics
	commandsTotal        *prometheus.CounterVec
	repliesTotal         *prometheus.CounterVec
	exchangeFailureTotal *prometheus.CounterVec

	// Message metrics
	messagesSentTotal *prometheus.CounterVec
	messagesSizeBytes prometheus.Histogram

	// Sink metrics
	sinkConnectionsTotal      prometheus.Counter
	sinkConnectionsActive     prometheus.Gauge
	sinkMessagesTotal         *prometheus.CounterVec
	sinkMessagesSizeBytes     prometheus.Histogram
	sinkMessagesRejectedTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtpsend_sessions_total",
			Help: "Total number of SMTP client sessions opened.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtpsend_sessions_active",
			Help: "Number of SMTP client sessions holding a transport.",
		}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpsend_commands_total",
			Help: "Total number of SMTP commands written.",
		}, []string{"command"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpsend_replies_total",
			Help: "Total number of parsed server replies by code.",
		}, []string{"code"}),
		exchangeFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpsend_exchange_failures_total",
			Help: "Total number of failed command/reply exchanges.",
		}, []string{"command", "kind"}),

		messagesSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpsend_messages_sent_total",
			Help: "Total number of messages accepted by the server.",
		}, []string{"recipient_domain"}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smtpsend_messages_size_bytes",
			Help:    "Size of sent messages in bytes.",
			Buckets: messageSizeBuckets,
		}),

		sinkConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smtpsend_sink_connections_total",
			Help: "Total number of connections accepted by the sink.",
		}),
		sinkConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smtpsend_sink_connections_active",
			Help: "Number of currently open sink connections.",
		}),
		sinkMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpsend_sink_messages_total",
			Help: "Total number of messages captured by the sink.",
		}, []string{"recipient_domain"}),
		sinkMessagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smtpsend_sink_messages_size_bytes",
			Help:    "Size of captured messages in bytes.",
			Buckets: messageSizeBuckets,
		}),
		sinkMessagesRejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpsend_sink_messages_rejected_total",
			Help: "Total number of messages rejected by the sink.",
		}, []string{"recipient_domain", "reason"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.sessionsTotal,
		c.sessionsActive,
		c.commandsTotal,
		c.repliesTotal,
		c.exchangeFailureTotal,
		c.messagesSentTotal,
		c.messagesSizeBytes,
		c.sinkConnectionsTotal,
		c.sinkConnectionsActive,
		c.sinkMessagesTotal,
		c.sinkMessagesSizeBytes,
		c.sinkMessagesRejectedTotal,
	)

	return c
}

// SessionOpened increments the session counter and active gauge.
func (c *PrometheusCollector) SessionOpened() {
	c.sessionsTotal.Inc()
	c.sessionsActive.Inc()
}

// SessionClosed decrements the active sessions gauge.
func (c *PrometheusCollector) SessionClosed() {
	c.sessionsActive.Dec()
}

// CommandSent increments the command counter.
func (c *PrometheusCollector) CommandSent(command string) {
	c.commandsTotal.WithLabelValues(command).Inc()
}

// ReplyReceived increments the reply counter for code.
func (c *PrometheusCollector) ReplyReceived(code int) {
	c.repliesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ExchangeFailed increments the exchange failure counter.
func (c *PrometheusCollector) ExchangeFailed(command string, kind string) {
	c.exchangeFailureTotal.WithLabelValues(command, kind).Inc()
}

// MessageSent increments the sent counter and observes message size.
func (c *PrometheusCollector) MessageSent(recipientDomain string, sizeBytes int64) {
	c.messagesSentTotal.WithLabelValues(recipientDomain).Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

// ConnectionAccepted increments the sink connection counter and active gauge.
func (c *PrometheusCollector) ConnectionAccepted() {
	c.sinkConnectionsTotal.Inc()
	c.sinkConnectionsActive.Inc()
}

// ConnectionClosed decrements the active sink connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.sinkConnectionsActive.Dec()
}

// MessageCaptured increments the captured counter and observes message size.
func (c *PrometheusCollector) MessageCaptured(recipientDomain string, sizeBytes int64) {
	c.sinkMessagesTotal.WithLabelValues(recipientDomain).Inc()
	c.sinkMessagesSizeBytes.Observe(float64(sizeBytes))
}

// MessageRejected increments the sink rejection counter.
func (c *PrometheusCollector) MessageRejected(recipientDomain string, reason string) {
	c.sinkMessagesRejectedTotal.WithLabelValues(recipientDomain, reason).Inc()
}
