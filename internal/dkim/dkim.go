// Package dkim signs outgoing messages with a DKIM-Signature header.
package dkim

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

// Config identifies the signing domain and selector.
type Config struct {
	Domain   string
	Selector string
	// HeaderKeys lists the header fields to sign. Empty signs every header
	// present in the message.
	HeaderKeys []string
}

// Signer adds a DKIM-Signature header to messages.
type Signer struct {
	domain     string
	selector   string
	key        crypto.Signer
	headerKeys []string
}

// NewSigner returns a Signer for cfg using key.
func NewSigner(cfg Config, key crypto.Signer) (*Signer, error) {
	if cfg.Domain == "" || cfg.Selector == "" {
		return nil, errors.New("dkim: domain and selector are required")
	}
	if key == nil {
		return nil, errors.New("dkim: signing key is required")
	}

	return &Signer{
		domain:     cfg.Domain,
		selector:   cfg.Selector,
		key:        key,
		headerKeys: cfg.HeaderKeys,
	}, nil
}

// LoadSigner reads a PEM private key from keyFile and returns a Signer.
func LoadSigner(cfg Config, keyFile string) (*Signer, error) {
	key, err := LoadKey(keyFile)
	if err != nil {
		return nil, err
	}
	return NewSigner(cfg, key)
}

// Sign returns message with a DKIM-Signature header prepended. The message
// must be a complete RFC 5322 message with CRLF line endings.
func (s *Signer) Sign(message string) (string, error) {
	opts := &dkim.SignOptions{
		Domain:     s.domain,
		Selector:   s.selector,
		Signer:     s.key,
		HeaderKeys: s.headerKeys,
	}

	var buf bytes.Buffer
	buf.Grow(len(message) + 512)
	if err := dkim.Sign(&buf, strings.NewReader(message), opts); err != nil {
		return "", fmt.Errorf("dkim: signing message: %w", err)
	}
	return buf.String(), nil
}

// Domain returns the signing domain.
func (s *Signer) Domain() string {
	return s.domain
}

// LoadKey reads a PEM-encoded RSA or Ed25519 private key.
func LoadKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dkim: reading key file: %w", err)
	}
	return ParseKey(data)
}

// ParseKey decodes a PEM block holding a PKCS#8 (RSA or Ed25519) or PKCS#1
// RSA private key.
func ParseKey(data []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("dkim: no PEM block found in key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("dkim: parsing PKCS#1 key: %w", err)
		}
		return key, nil

	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("dkim: parsing PKCS#8 key: %w", err)
		}
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return k, nil
		case ed25519.PrivateKey:
			return k, nil
		default:
			return nil, fmt.Errorf("dkim: unsupported key type %T", key)
		}

	default:
		return nil, fmt.Errorf("dkim: unsupported PEM block %q", block.Type)
	}
}
