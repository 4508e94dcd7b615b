package smtp

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/infodancer/smtpsend/internal/metrics"
)

// Envelope is the caller-supplied description of one mail transaction.
// Sender, Recipient, and Message are sent verbatim; the engine does not
// rewrite, quote, or dot-stuff them.
type Envelope struct {
	// Dest is the host the transport connects to. It may carry an explicit
	// port ("mail.example.com:2525"); otherwise the dial port is used.
	Dest      string
	Sender    string
	Recipient string
	Message   string
}

// Validate reports whether the envelope can be sent: every field but the
// message must be present, and both addresses must be bare RFC 5322
// addr-specs that cannot break the command line they are embedded in.
func (e Envelope) Validate() error {
	if e.Dest == "" {
		return errors.New("destination is required")
	}
	if err := validateAddress("sender", e.Sender); err != nil {
		return err
	}
	return validateAddress("recipient", e.Recipient)
}

func validateAddress(role, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", role)
	}
	if strings.ContainsAny(addr, "\r\n<>") {
		return fmt.Errorf("%s must not contain line breaks or angle brackets", role)
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid %s address %q: %w", role, addr, err)
	}
	if parsed.Address != addr || parsed.Name != "" {
		return fmt.Errorf("%s must be a bare address, got %q", role, addr)
	}
	return nil
}

// RecipientDomain returns the domain part of the recipient, or "unknown".
func (e Envelope) RecipientDomain() string {
	return metrics.DomainLabel(e.Recipient)
}

// SenderDomain returns the domain part of the sender, or "unknown".
func (e Envelope) SenderDomain() string {
	return metrics.DomainLabel(e.Sender)
}
