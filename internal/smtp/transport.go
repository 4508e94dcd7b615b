package smtp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/infodancer/smtpsend/internal/logging"
)

// DefaultPort is the standard SMTP port.
const DefaultPort = 25

// Transport is the line-oriented byte stream a Session drives. ReadLine
// returns one reply line without its terminator; Write sends raw bytes.
// A Transport is owned by exactly one Session.
type Transport interface {
	io.WriteCloser
	ReadLine() (string, error)
}

// Conn is a Transport over a net.Conn with per-operation deadlines and
// optional transaction logging.
type Conn struct {
	conn    net.Conn
	reader  *bufio.Reader
	writer  io.Writer
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// DialConfig holds settings for opening a Conn.
type DialConfig struct {
	Port           int           // used when the destination has no port; 0 means DefaultPort
	ConnectTimeout time.Duration // 0 means no connect timeout beyond ctx
	CommandTimeout time.Duration // deadline applied to each read and write; 0 disables
	LogTransaction bool
	Logger         *slog.Logger
}

// Dial opens a TCP connection to dest and wraps it in a Conn.
func Dial(ctx context.Context, dest string, cfg DialConfig) (*Conn, error) {
	if dest == "" {
		return nil, &TransportError{Op: "dial", Err: errors.New("empty destination")}
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", hostPort(dest, cfg.Port))
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	return NewConn(nc, cfg), nil
}

// NewConn wraps an established connection.
func NewConn(nc net.Conn, cfg DialConfig) *Conn {
	var r io.Reader = nc
	var w io.Writer = nc

	if cfg.LogTransaction {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		r = logging.NewTransactionReader(nc, logger, "recv")
		w = logging.NewTransactionWriter(nc, logger, "send")
	}

	return &Conn{
		conn:    nc,
		reader:  bufio.NewReader(r),
		writer:  w,
		timeout: cfg.CommandTimeout,
	}
}

// ReadLine reads up to the next LF and strips the CRLF or LF terminator.
// A final unterminated line before EOF is returned as a line.
func (c *Conn) ReadLine() (string, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return "", err
		}
	}

	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Write sends p to the server.
func (c *Conn) Write(p []byte) (int, error) {
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}
	return c.writer.Write(p)
}

// Close releases the connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// RemoteAddr returns the address of the server.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// hostPort appends the dial port unless dest already names one.
func hostPort(dest string, port int) string {
	if port <= 0 {
		port = DefaultPort
	}
	if _, _, err := net.SplitHostPort(dest); err == nil {
		return dest
	}
	return net.JoinHostPort(strings.Trim(dest, "[]"), strconv.Itoa(port))
}
