package smtp

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReply is wrapped by ProtocolError when a reply line has no
	// numeric reply code.
	ErrMalformedReply = errors.New("malformed reply")

	// ErrNotReady is returned by Send when the handshake has not completed.
	ErrNotReady = errors.New("smtp: session not ready")

	// ErrSessionClosed is returned by Send after Close.
	ErrSessionClosed = errors.New("smtp: session closed")
)

// TransportError reports a failure of the underlying connection: dialing,
// reading a reply line, writing a command, or releasing the connection.
type TransportError struct {
	Op  string // "dial", "read", "write", or "close"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("smtp: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a reply that did not carry the code the issued
// command requires. Parse failures and code mismatches are both reported as
// ProtocolError; Malformed distinguishes them.
type ProtocolError struct {
	// Command names the exchange: "greeting", "HELO", "MAIL FROM",
	// "RCPT TO", "DATA", "message", or "QUIT".
	Command  string
	Expected int
	// Code is the parsed reply code, zero when the reply was malformed.
	Code int
	// Reply is the literal line received from the server.
	Reply string
	// Err is non-nil only for malformed replies and wraps ErrMalformedReply.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("smtp: %s: malformed reply %q (want %d)", e.Command, e.Reply, e.Expected)
	}
	return fmt.Sprintf("smtp: %s: unexpected reply %q (want %d)", e.Command, e.Reply, e.Expected)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Malformed reports whether the reply could not be parsed at all.
func (e *ProtocolError) Malformed() bool {
	return errors.Is(e.Err, ErrMalformedReply)
}

// HandshakeError is a ProtocolError raised while opening a session, during
// the greeting or HELO exchange. The session is unusable afterwards.
type HandshakeError struct {
	*ProtocolError
}

func (e *HandshakeError) Error() string {
	return "handshake failed: " + e.ProtocolError.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.ProtocolError
}

// failureKind classifies an exchange error for metrics and journaling.
func failureKind(err error) string {
	var pe *ProtocolError
	var te *TransportError
	switch {
	case errors.As(err, &pe):
		if pe.Malformed() {
			return "malformed"
		}
		return "mismatch"
	case errors.As(err, &te):
		return "transport"
	default:
		return "other"
	}
}

// FailureKind classifies err as "transport", "malformed", "mismatch", or
// "other". It returns "" for a nil error.
func FailureKind(err error) string {
	if err == nil {
		return ""
	}
	return failureKind(err)
}
