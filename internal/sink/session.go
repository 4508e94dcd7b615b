package sink

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/infodancer/smtpsend/internal/metrics"
)

// Session implements the go-smtp Session interface.
type Session struct {
	backend    *Backend
	helo       string
	clientIP   string
	from       string
	recipients []string
	logger     *slog.Logger
}

// Mail handles the MAIL FROM command.
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	s.logger.Debug("MAIL FROM", slog.String("from", from))
	return nil
}

// Rcpt handles the RCPT TO command.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	if s.backend.maxRecipients > 0 && len(s.recipients) >= s.backend.maxRecipients {
		s.backend.collector.MessageRejected(metrics.DomainLabel(to), "too_many_recipients")
		return &smtp.SMTPError{
			Code:         452,
			EnhancedCode: smtp.EnhancedCode{4, 5, 3},
			Message:      "Too many recipients",
		}
	}

	if s.backend.rejects(to) {
		s.backend.collector.MessageRejected(metrics.DomainLabel(to), "rejected_domain")
		s.logger.Debug("recipient rejected", slog.String("to", to))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Mailbox unavailable",
		}
	}

	s.recipients = append(s.recipients, to)
	s.logger.Debug("RCPT TO", slog.String("to", to))
	return nil
}

// Data reads the message and captures it.
func (s *Session) Data(r io.Reader) error {
	domain := recipientDomain(s.recipients)

	data, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, smtp.ErrDataTooLarge) {
			s.backend.collector.MessageRejected(domain, "too_large")
			return smtp.ErrDataTooLarge
		}
		s.backend.collector.MessageRejected(domain, "read_error")
		s.logger.Debug("failed to read message data", slog.String("error", err.Error()))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Error reading message",
		}
	}

	s.backend.capture(Message{
		Helo:       s.helo,
		ClientIP:   s.clientIP,
		From:       s.from,
		Recipients: append([]string(nil), s.recipients...),
		Data:       data,
		Received:   time.Now(),
	})
	s.backend.collector.MessageCaptured(domain, int64(len(data)))

	s.logger.Info("message captured",
		slog.String("from", s.from),
		slog.Int("recipients", len(s.recipients)),
		slog.Int("size", len(data)))
	return nil
}

// Reset is called when the client sends RSET.
func (s *Session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout is called when the client quits or the connection closes.
func (s *Session) Logout() error {
	s.backend.collector.ConnectionClosed()
	s.logger.Debug("session logout")
	return nil
}

// recipientDomain returns the domain of the first recipient.
func recipientDomain(recipients []string) string {
	if len(recipients) == 0 {
		return "unknown"
	}
	return metrics.DomainLabel(recipients[0])
}

