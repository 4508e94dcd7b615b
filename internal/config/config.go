// Package config provides configuration management for smtpsend.
package config

import (
	"errors"
	"fmt"
	"time"
)

// FileConfig is the top-level wrapper for the configuration file.
// This allows smtpsend to share a file with other infodancer tools.
type FileConfig struct {
	Smtpsend Config `toml:"smtpsend"`
}

// Config holds the complete smtpsend configuration.
type Config struct {
	// Hostname is sent with HELO. Empty means the OS hostname.
	Hostname       string         `toml:"hostname"`
	LogLevel       string         `toml:"log_level"`
	LogTransaction bool           `toml:"log_transaction"`
	Port           int            `toml:"port"`
	Timeouts       TimeoutsConfig `toml:"timeouts"`
	Metrics        MetricsConfig  `toml:"metrics"`
	DKIM           DKIMConfig     `toml:"dkim"`
	Journal        JournalConfig  `toml:"journal"`
	Sink           SinkConfig     `toml:"sink"`
}

// TimeoutsConfig defines timeout durations.
type TimeoutsConfig struct {
	Connect string `toml:"connect"`
	Command string `toml:"command"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
	PushURL string `toml:"push_url"`
	Job     string `toml:"job"`
}

// DKIMConfig enables DKIM signing of outgoing messages when all of
// Domain, Selector, and KeyFile are set.
type DKIMConfig struct {
	Domain     string   `toml:"domain"`
	Selector   string   `toml:"selector"`
	KeyFile    string   `toml:"key_file"`
	HeaderKeys []string `toml:"header_keys"`
}

// JournalConfig holds configuration for the Redis send journal.
type JournalConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	Key        string `toml:"key"`
	MaxEntries int    `toml:"max_entries"`
}

// SinkConfig holds configuration for the capture server.
type SinkConfig struct {
	Listen         string `toml:"listen"`
	Domain         string `toml:"domain"`
	MaxMessageSize int    `toml:"max_message_size"`
	MaxRecipients  int    `toml:"max_recipients"`
	// Keep bounds how many captured messages are held in memory.
	Keep int `toml:"keep"`
	// RejectDomains lists recipient domains the sink answers with 550.
	RejectDomains []string `toml:"reject_domains"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		LogLevel: "info",
		Port:     25,
		Timeouts: TimeoutsConfig{
			Connect: "30s",
			Command: "5m",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
			Job:     "smtpsend",
		},
		Journal: JournalConfig{
			Key:        "smtpsend:journal",
			MaxEntries: 1000,
		},
		Sink: SinkConfig{
			Listen:         "127.0.0.1:2525",
			Domain:         "localhost",
			MaxMessageSize: 26214400, // 25 MB
			MaxRecipients:  100,
			Keep:           100,
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 1-65535)", c.Port)
	}

	if c.Timeouts.Connect != "" {
		if _, err := time.ParseDuration(c.Timeouts.Connect); err != nil {
			return fmt.Errorf("invalid connect timeout: %w", err)
		}
	}

	if c.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	if c.DKIM.partial() {
		return errors.New("dkim requires domain, selector, and key_file together")
	}

	if c.Journal.MaxEntries < 0 {
		return errors.New("journal max_entries must not be negative")
	}

	if c.Sink.MaxMessageSize <= 0 {
		return errors.New("sink max_message_size must be positive")
	}

	if c.Sink.MaxRecipients <= 0 {
		return errors.New("sink max_recipients must be positive")
	}

	return nil
}

// Enabled reports whether DKIM signing is fully configured.
func (d *DKIMConfig) Enabled() bool {
	return d.Domain != "" && d.Selector != "" && d.KeyFile != ""
}

func (d *DKIMConfig) partial() bool {
	set := 0
	for _, v := range []string{d.Domain, d.Selector, d.KeyFile} {
		if v != "" {
			set++
		}
	}
	return set > 0 && set < 3
}

// Enabled reports whether a journal backend is configured.
func (j *JournalConfig) Enabled() bool {
	return j.RedisAddr != ""
}

// ConnectTimeout returns the connect timeout as a time.Duration.
// Returns 30 seconds if not configured or invalid.
func (c *TimeoutsConfig) ConnectTimeout() time.Duration {
	return parseDurationDefault(c.Connect, 30*time.Second)
}

// CommandTimeout returns the per-exchange timeout as a time.Duration.
// Returns 5 minutes if not configured or invalid. "0" disables it.
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	return parseDurationDefault(c.Command, 5*time.Minute)
}

func parseDurationDefault(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
