package config

import (
	"os"
	"strconv"
)

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over TOML config but are overridden by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("SMTPSEND_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("SMTPSEND_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SMTPSEND_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("SMTPSEND_DKIM_KEY_FILE"); v != "" {
		cfg.DKIM.KeyFile = v
	}
	if v := os.Getenv("SMTPSEND_METRICS_PUSH_URL"); v != "" {
		cfg.Metrics.PushURL = v
	}
	if v := os.Getenv("SMTPSEND_JOURNAL_REDIS_ADDR"); v != "" {
		cfg.Journal.RedisAddr = v
	}
	if v := os.Getenv("SMTPSEND_JOURNAL_PASSWORD"); v != "" {
		cfg.Journal.Password = v
	}
	if v := os.Getenv("SMTPSEND_SINK_LISTEN"); v != "" {
		cfg.Sink.Listen = v
	}

	return cfg
}
