package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/logging"
	"github.com/mbocsi/lightwaverf/queue"
	"gopkg.in/yaml.v3"
)

// Duration reads Go duration strings such as "800ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Hub     HubConfig     `toml:"hub" yaml:"hub"`
	Queue   QueueConfig   `toml:"queue" yaml:"queue"`
	Account AccountConfig `toml:"account" yaml:"account"`
	HTTP    HTTPConfig    `toml:"http" yaml:"http"`
	MCP     MCPConfig     `toml:"mcp" yaml:"mcp"`
	Link    LinkConfig    `toml:"link" yaml:"link"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

type HubConfig struct {
	Address        string `toml:"address" yaml:"address"`
	DiscoverLinkIP bool   `toml:"discover_link_ip" yaml:"discover_link_ip"`
	SendPort       int    `toml:"send_port" yaml:"send_port"`
	ReceivePort    int    `toml:"receive_port" yaml:"receive_port"`
	ListenHost     string `toml:"listen_host" yaml:"listen_host"`
}

type QueueConfig struct {
	Spacing    Duration `toml:"spacing" yaml:"spacing"`
	Timeout    Duration `toml:"timeout" yaml:"timeout"`
	RetryGrace Duration `toml:"retry_grace" yaml:"retry_grace"`
	MaxBackoff Duration `toml:"max_backoff" yaml:"max_backoff"`
}

type AccountConfig struct {
	Email string `toml:"email" yaml:"email"`
	Pin   string `toml:"pin" yaml:"pin"`
	Host  string `toml:"host" yaml:"host"`
}

// Configured reports whether cloud credentials were supplied.
func (a AccountConfig) Configured() bool {
	return a.Email != "" && a.Pin != ""
}

type HTTPConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit int  `toml:"rate_limit" yaml:"rate_limit"`
	Advertise bool `toml:"advertise" yaml:"advertise"`
}

type MCPConfig struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

type LinkConfig struct {
	DisplayUpdates bool   `toml:"display_updates" yaml:"display_updates"`
	User           string `toml:"user" yaml:"user"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

func Default() *Config {
	return &Config{
		Hub: HubConfig{
			Address:        client.BroadcastAddress,
			DiscoverLinkIP: true,
			SendPort:       client.SendPort,
			ReceivePort:    client.ReceivePort,
		},
		Queue: QueueConfig{
			Spacing:    Duration{queue.DefaultSpacing},
			Timeout:    Duration{queue.DefaultTimeout},
			RetryGrace: Duration{queue.DefaultRetryGrace},
			MaxBackoff: Duration{queue.DefaultMaxBackoff},
		},
		HTTP: HTTPConfig{
			Addr:      ":8080",
			RateLimit: 60,
		},
		Link: LinkConfig{DisplayUpdates: true},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// DefaultPath returns ~/.lightwave/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".lightwave", "config.toml")
	}
	return filepath.Join(home, ".lightwave", "config.toml")
}

// Load reads path over the defaults. A missing file yields the defaults.
// Files ending in .yaml or .yml are YAML, everything else TOML.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Hub.Address) == "" {
		errs = append(errs, errors.New("hub.address must not be empty"))
	}
	for name, port := range map[string]int{"hub.send_port": c.Hub.SendPort, "hub.receive_port": c.Hub.ReceivePort} {
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s %d out of range", name, port))
		}
	}
	for name, d := range map[string]Duration{
		"queue.spacing":     c.Queue.Spacing,
		"queue.timeout":     c.Queue.Timeout,
		"queue.retry_grace": c.Queue.RetryGrace,
		"queue.max_backoff": c.Queue.MaxBackoff,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("http.rate_limit must not be negative, got %d", c.HTTP.RateLimit))
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q unknown", c.Log.Level))
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q unknown", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c *Config) ClientOptions() client.Options {
	return client.Options{
		Address:        c.Hub.Address,
		DiscoverLinkIP: c.Hub.DiscoverLinkIP,
		SendPort:       c.Hub.SendPort,
		ReceivePort:    c.Hub.ReceivePort,
		ListenHost:     c.Hub.ListenHost,
		EventBuffer:    64,
		Queue: queue.Options{
			Spacing:    c.Queue.Spacing.Duration,
			Timeout:    c.Queue.Timeout.Duration,
			RetryGrace: c.Queue.RetryGrace.Duration,
			MaxBackoff: c.Queue.MaxBackoff.Duration,
		},
	}
}

func (c *Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
