package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Hostname != "" {
		t.Errorf("expected empty hostname, got %q", cfg.Hostname)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", cfg.LogLevel)
	}

	if cfg.Port != 25 {
		t.Errorf("expected port 25, got %d", cfg.Port)
	}

	if cfg.Timeouts.Connect != "30s" {
		t.Errorf("expected connect timeout '30s', got %q", cfg.Timeouts.Connect)
	}

	if cfg.Timeouts.Command != "5m" {
		t.Errorf("expected command timeout '5m', got %q", cfg.Timeouts.Command)
	}

	if cfg.Metrics.Job != "smtpsend" {
		t.Errorf("expected metrics job 'smtpsend', got %q", cfg.Metrics.Job)
	}

	if cfg.Journal.Enabled() {
		t.Error("expected journal disabled by default")
	}

	if cfg.DKIM.Enabled() {
		t.Error("expected dkim disabled by default")
	}

	if cfg.Sink.Listen != "127.0.0.1:2525" {
		t.Errorf("expected sink listen '127.0.0.1:2525', got %q", cfg.Sink.Listen)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "zero port",
			modify:  func(c *Config) { c.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid connect timeout",
			modify:  func(c *Config) { c.Timeouts.Connect = "soon" },
			wantErr: true,
		},
		{
			name:    "invalid command timeout",
			modify:  func(c *Config) { c.Timeouts.Command = "later" },
			wantErr: true,
		},
		{
			name:    "zero command timeout disables deadline",
			modify:  func(c *Config) { c.Timeouts.Command = "0" },
			wantErr: false,
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			wantErr: true,
		},
		{
			name: "metrics enabled without path",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Path = ""
			},
			wantErr: true,
		},
		{
			name:    "dkim domain only",
			modify:  func(c *Config) { c.DKIM.Domain = "example.com" },
			wantErr: true,
		},
		{
			name: "dkim fully configured",
			modify: func(c *Config) {
				c.DKIM = DKIMConfig{Domain: "example.com", Selector: "s1", KeyFile: "/etc/dkim.pem"}
			},
			wantErr: false,
		},
		{
			name:    "negative journal max entries",
			modify:  func(c *Config) { c.Journal.MaxEntries = -1 },
			wantErr: true,
		},
		{
			name:    "zero sink message size",
			modify:  func(c *Config) { c.Sink.MaxMessageSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero sink recipients",
			modify:  func(c *Config) { c.Sink.MaxRecipients = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDKIMEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  DKIMConfig
		want bool
	}{
		{"empty", DKIMConfig{}, false},
		{"missing key", DKIMConfig{Domain: "example.com", Selector: "s1"}, false},
		{"complete", DKIMConfig{Domain: "example.com", Selector: "s1", KeyFile: "k.pem"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnectTimeout(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1m", 1 * time.Minute},
		{"0", 0},
		{"", 30 * time.Second},        // default
		{"invalid", 30 * time.Second}, // invalid falls back to default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := TimeoutsConfig{Connect: tt.value}
			if got := cfg.ConnectTimeout(); got != tt.expected {
				t.Errorf("ConnectTimeout() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCommandTimeout(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"5m", 5 * time.Minute},
		{"30s", 30 * time.Second},
		{"0", 0},
		{"", 5 * time.Minute},        // default
		{"invalid", 5 * time.Minute}, // invalid falls back to default
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := TimeoutsConfig{Command: tt.value}
			if got := cfg.CommandTimeout(); got != tt.expected {
				t.Errorf("CommandTimeout() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SMTPSEND_HOSTNAME", "env.example.com")
	t.Setenv("SMTPSEND_LOG_LEVEL", "debug")
	t.Setenv("SMTPSEND_PORT", "2525")
	t.Setenv("SMTPSEND_JOURNAL_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("SMTPSEND_METRICS_PUSH_URL", "http://pushgateway:9091")

	cfg := ApplyEnv(Default())

	if cfg.Hostname != "env.example.com" {
		t.Errorf("hostname = %q, want 'env.example.com'", cfg.Hostname)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want 'debug'", cfg.LogLevel)
	}
	if cfg.Port != 2525 {
		t.Errorf("port = %d, want 2525", cfg.Port)
	}
	if cfg.Journal.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("journal.redis_addr = %q, want '127.0.0.1:6379'", cfg.Journal.RedisAddr)
	}
	if cfg.Metrics.PushURL != "http://pushgateway:9091" {
		t.Errorf("metrics.push_url = %q, want 'http://pushgateway:9091'", cfg.Metrics.PushURL)
	}
}

func TestApplyEnvIgnoresInvalidPort(t *testing.T) {
	t.Setenv("SMTPSEND_PORT", "twenty-five")

	cfg := ApplyEnv(Default())
	if cfg.Port != 25 {
		t.Errorf("port = %d, want default 25", cfg.Port)
	}
}
