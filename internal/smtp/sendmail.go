package smtp

import (
	"context"
	"log/slog"
)

// Options groups the transport and session settings used by Open and SendMail.
type Options struct {
	Dial    DialConfig
	Session SessionConfig
}

// Open dials env.Dest and performs the handshake. The caller must Close the
// returned Session.
func Open(ctx context.Context, env Envelope, opts Options) (*Session, error) {
	conn, err := Dial(ctx, env.Dest, opts.Dial)
	if err != nil {
		opts.Session.collectorOrNoop().ExchangeFailed("dial", "transport")
		return nil, err
	}

	opts.Session.loggerOrDefault().Debug("connected",
		slog.String("remote", conn.RemoteAddr().String()),
		slog.String("sender_domain", env.SenderDomain()))

	return NewSession(conn, opts.Session)
}

// SendMail opens a session to env.Dest, sends env, and closes the session on
// every path. An error from Close is returned only when Send succeeded.
func SendMail(ctx context.Context, env Envelope, opts Options) (err error) {
	s, err := Open(ctx, env, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return s.Send(env)
}
