package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvelopeFile is the YAML form of a single mail transaction:
//
//	dest: mail.example.com
//	sender: a@x.com
//	recipient: b@y.com
//	message: |
//	  Subject: hello
//
//	  Hello
//
// message_file may be given instead of message; a relative path is resolved
// against the envelope file's directory.
type EnvelopeFile struct {
	Dest        string `yaml:"dest"`
	Sender      string `yaml:"sender"`
	Recipient   string `yaml:"recipient"`
	Message     string `yaml:"message"`
	MessageFile string `yaml:"message_file"`
}

// LoadEnvelope reads a YAML envelope file.
func LoadEnvelope(path string) (EnvelopeFile, error) {
	var env EnvelopeFile

	data, err := os.ReadFile(path)
	if err != nil {
		return env, fmt.Errorf("reading envelope file: %w", err)
	}

	if err := yaml.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("parsing envelope file: %w", err)
	}

	if env.Message != "" && env.MessageFile != "" {
		return env, errors.New("envelope file sets both message and message_file")
	}

	if env.MessageFile != "" && env.MessageFile != "-" && !filepath.IsAbs(env.MessageFile) {
		env.MessageFile = filepath.Join(filepath.Dir(path), env.MessageFile)
	}

	return env, nil
}

// ResolveEnvelope builds the envelope for the send command: the envelope
// file named by -envelope (if any), overridden by -server, -from, -to,
// -message, and -message-file. A message file of "-" is read from stdin.
// The message text is normalized to CRLF line endings with any trailing
// line break removed, since the end-of-data marker supplies it.
func ResolveEnvelope(f *Flags, stdin io.Reader) (EnvelopeFile, error) {
	var env EnvelopeFile

	if f.EnvelopePath != "" {
		loaded, err := LoadEnvelope(f.EnvelopePath)
		if err != nil {
			return env, err
		}
		env = loaded
	}

	if f.Server != "" {
		env.Dest = f.Server
	}
	if f.From != "" {
		env.Sender = f.From
	}
	if f.To != "" {
		env.Recipient = f.To
	}
	if f.Message != "" {
		env.Message = f.Message
		env.MessageFile = ""
	}
	if f.MessageFile != "" {
		env.Message = ""
		env.MessageFile = f.MessageFile
	}

	if env.MessageFile != "" {
		data, err := readMessageFile(env.MessageFile, stdin)
		if err != nil {
			return env, err
		}
		env.Message = string(data)
	}

	env.Message = normalizeMessage(env.Message)
	return env, nil
}

func readMessageFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading message from stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading message file: %w", err)
	}
	return data, nil
}

// normalizeMessage converts bare LF and CR line breaks to CRLF and drops
// trailing line breaks.
func normalizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.TrimRight(msg, "\n")
	return strings.ReplaceAll(msg, "\n", "\r\n")
}
