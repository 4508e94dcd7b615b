package smtp

import (
	"fmt"
	"strconv"
	"strings"
)

// Reply codes this client expects from a server.
const (
	ReplyServiceReady   = 220
	ReplyServiceClosing = 221
	ReplyOK             = 250
	ReplyStartMailInput = 354
)

// Reply is a single server reply line.
type Reply struct {
	Code int
	Text string
}

// ParseReply extracts the reply code from a single reply line. The first
// whitespace-delimited token must be a base-10 integer; the remainder is kept
// as Text. Continuation lines ("250-...") are not supported and fail to parse.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Reply{}, fmt.Errorf("%w: empty line", ErrMalformedReply)
	}

	token := strings.Fields(line)[0]
	rest := strings.TrimSpace(line[len(token):])

	code, err := strconv.Atoi(token)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: reply code %q is not a number", ErrMalformedReply, token)
	}

	return Reply{Code: code, Text: rest}, nil
}

// String formats the reply the way it appeared on the wire.
func (r Reply) String() string {
	if r.Text == "" {
		return strconv.Itoa(r.Code)
	}
	return strconv.Itoa(r.Code) + " " + r.Text
}
