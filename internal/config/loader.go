package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath     string
	Hostname       string
	LogLevel       string
	LogTransaction bool
	Port           int
	Listen         string

	// Envelope flags (send subcommand)
	Server       string
	From         string
	To           string
	Message      string
	MessageFile  string
	EnvelopePath string
}

// ParseFlags parses the process command line and returns a Flags struct.
func ParseFlags() *Flags {
	f, _ := ParseFlagSet(flag.CommandLine, os.Args[1:]) // CommandLine exits on error
	return f
}

// ParseFlagSet registers all smtpsend flags on fs and parses args.
func ParseFlagSet(fs *flag.FlagSet, args []string) (*Flags, error) {
	f := &Flags{}

	fs.StringVar(&f.ConfigPath, "config", "./smtpsend.toml", "Path to configuration file")
	fs.StringVar(&f.Hostname, "hostname", "", "Name sent with HELO (default: OS hostname)")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&f.LogTransaction, "log-transaction", false, "Log every byte exchanged with the server at debug level")
	fs.IntVar(&f.Port, "port", 0, "Server port when -server has none (default 25)")
	fs.StringVar(&f.Listen, "listen", "", "Sink listen address")

	fs.StringVar(&f.Server, "server", "", "Destination mail server host[:port]")
	fs.StringVar(&f.From, "from", "", "Envelope sender address")
	fs.StringVar(&f.To, "to", "", "Envelope recipient address")
	fs.StringVar(&f.Message, "message", "", "Message text")
	fs.StringVar(&f.MessageFile, "message-file", "", "Read message text from file (- for stdin)")
	fs.StringVar(&f.EnvelopePath, "envelope", "", "YAML envelope file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	// Merge file config into defaults
	cfg = mergeConfig(cfg, fileConfig.Smtpsend)

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.LogTransaction {
		cfg.LogTransaction = true
	}

	if f.Port > 0 {
		cfg.Port = f.Port
	}

	if f.Listen != "" {
		cfg.Sink.Listen = f.Listen
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies environment and flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(ApplyEnv(cfg), f), nil
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.LogTransaction {
		dst.LogTransaction = true
	}

	if src.Port != 0 {
		dst.Port = src.Port
	}

	if src.Timeouts.Connect != "" {
		dst.Timeouts.Connect = src.Timeouts.Connect
	}

	if src.Timeouts.Command != "" {
		dst.Timeouts.Command = src.Timeouts.Command
	}

	// Metrics: enabled is explicitly set (boolean), so we merge if source has any non-zero value
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}

	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	if src.Metrics.PushURL != "" {
		dst.Metrics.PushURL = src.Metrics.PushURL
	}

	if src.Metrics.Job != "" {
		dst.Metrics.Job = src.Metrics.Job
	}

	if src.DKIM.Domain != "" {
		dst.DKIM.Domain = src.DKIM.Domain
	}

	if src.DKIM.Selector != "" {
		dst.DKIM.Selector = src.DKIM.Selector
	}

	if src.DKIM.KeyFile != "" {
		dst.DKIM.KeyFile = src.DKIM.KeyFile
	}

	if len(src.DKIM.HeaderKeys) > 0 {
		dst.DKIM.HeaderKeys = src.DKIM.HeaderKeys
	}

	if src.Journal.RedisAddr != "" {
		dst.Journal.RedisAddr = src.Journal.RedisAddr
	}

	if src.Journal.Password != "" {
		dst.Journal.Password = src.Journal.Password
	}

	if src.Journal.DB != 0 {
		dst.Journal.DB = src.Journal.DB
	}

	if src.Journal.Key != "" {
		dst.Journal.Key = src.Journal.Key
	}

	if src.Journal.MaxEntries != 0 {
		dst.Journal.MaxEntries = src.Journal.MaxEntries
	}

	if src.Sink.Listen != "" {
		dst.Sink.Listen = src.Sink.Listen
	}

	if src.Sink.Domain != "" {
		dst.Sink.Domain = src.Sink.Domain
	}

	if src.Sink.MaxMessageSize != 0 {
		dst.Sink.MaxMessageSize = src.Sink.MaxMessageSize
	}

	if src.Sink.MaxRecipients != 0 {
		dst.Sink.MaxRecipients = src.Sink.MaxRecipients
	}

	if src.Sink.Keep != 0 {
		dst.Sink.Keep = src.Sink.Keep
	}

	if len(src.Sink.RejectDomains) > 0 {
		dst.Sink.RejectDomains = src.Sink.RejectDomains
	}

	return dst
}
