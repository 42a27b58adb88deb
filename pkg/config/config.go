package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		TLS     struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Chat struct {
		// AuthTimeout bounds how long a fresh connection may wait before
		// sending its auth frame.
		AuthTimeout Duration `yaml:"auth_timeout"`
		// IdleTimeout closes sessions with no inbound frames or pongs for
		// this long. Zero disables the sweep.
		IdleTimeout Duration `yaml:"idle_timeout"`
		// SweepCron schedules the idle-session sweep (gronx syntax).
		SweepCron string `yaml:"sweep_cron"`
		// SendBuffer is the per-session outbound queue length; a session
		// that falls this far behind is closed as a slow consumer.
		SendBuffer    int   `yaml:"send_buffer"`
		MaxFrameBytes int64 `yaml:"max_frame_bytes"`
	} `yaml:"chat"`
	Media struct {
		MaxBytes    int64    `yaml:"max_bytes"`
		AllowedMIME []string `yaml:"allowed_mime"`
	} `yaml:"media"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		IPWhitelist []string `yaml:"ip_whitelist"`
	} `yaml:"security"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Defaults applied when the config file and env leave a value unset.
const (
	DefaultAuthTimeout   = 10 * time.Second
	DefaultSendBuffer    = 64
	DefaultMaxFrameBytes = 1 << 20
	DefaultSweepCron     = "*/5 * * * *"
	DefaultMaxMediaBytes = 5 << 20

	// MediaFrameSlack covers the non-media fields of a message frame that
	// carries a maximal inline data URI.
	MediaFrameSlack = 4 << 10
)

// DefaultAllowedMIME is the media allow-list used when none is configured.
var DefaultAllowedMIME = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Duration wraps time.Duration for YAML parsing from strings like "30s" or
// plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// ApplyDefaults fills unset chat/media values with the package defaults.
func (c *Config) ApplyDefaults() {
	if c.Chat.AuthTimeout <= 0 {
		c.Chat.AuthTimeout = Duration(DefaultAuthTimeout)
	}
	if c.Chat.SendBuffer <= 0 {
		c.Chat.SendBuffer = DefaultSendBuffer
	}
	if c.Chat.MaxFrameBytes <= 0 {
		c.Chat.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.Chat.SweepCron == "" {
		c.Chat.SweepCron = DefaultSweepCron
	}
	if c.Media.MaxBytes <= 0 {
		c.Media.MaxBytes = DefaultMaxMediaBytes
	}
	if len(c.Media.AllowedMIME) == 0 {
		c.Media.AllowedMIME = append([]string{}, DefaultAllowedMIME...)
	}
	// The websocket read limit tears the connection down on oversize frames,
	// so it must admit any frame the media policy allows.
	if need := c.Media.MaxBytes + MediaFrameSlack; c.Chat.MaxFrameBytes < need {
		c.Chat.MaxFrameBytes = need
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// reports whether any env vars were used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("CHATRELAY_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("CHATRELAY_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("CHATRELAY_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("CHATRELAY_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHATRELAY_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATRELAY_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATRELAY_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("CHATRELAY_SWEEP_CRON"); v != "" {
		envUsed = true
		cfg.Chat.SweepCron = v
	}
	if v := os.Getenv("CHATRELAY_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Chat.IdleTimeout = Duration(d)
		}
	}
	if v := os.Getenv("CHATRELAY_MEDIA_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			envUsed = true
			cfg.Media.MaxBytes = n
		}
	}
	if c := os.Getenv("CHATRELAY_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("CHATRELAY_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies environment
// overrides and defaults. A missing file is not an error; env and defaults
// still apply.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided value
// and the environment variable CHATRELAY_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATRELAY_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
