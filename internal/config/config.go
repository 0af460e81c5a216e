package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts "10s"-style values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config carries everything cmd/server needs to wire the moderation core.
// Values come from an optional YAML file, overridden by environment
// variables (a .env file is honored when present).
type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// SigningSecret verifies HMAC-signed identity headers. Token issuance
	// is external; an empty secret disables signature verification and the
	// resolver falls back to the unsigned header/body path.
	SigningSecret string `yaml:"signing_secret"`

	// CommentCooldown is the per-user-per-thread minimum interval between
	// comments.
	CommentCooldown Duration `yaml:"comment_cooldown"`

	// RateLimitEntries bounds the limiter's LRU; oldest keys are evicted.
	RateLimitEntries int `yaml:"rate_limit_entries"`

	// GateFailClosed flips the punishment gate from its default fail-open
	// posture to denying writes when the punishment query errors.
	GateFailClosed bool `yaml:"gate_fail_closed"`
}

// Default returns the development defaults.
func Default() *Config {
	return &Config{
		Port:             "8080",
		LogLevel:         "info",
		CommentCooldown:  Duration(5 * time.Second),
		RateLimitEntries: 4096,
	}
}

// Load builds the config from defaults, the YAML file at path (skipped when
// path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("SIGNING_SECRET"); v != "" {
		cfg.SigningSecret = v
	}
	if v := os.Getenv("COMMENT_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse COMMENT_COOLDOWN: %w", err)
		}
		cfg.CommentCooldown = Duration(d)
	}
	if v := os.Getenv("RATE_LIMIT_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse RATE_LIMIT_ENTRIES: %w", err)
		}
		cfg.RateLimitEntries = n
	}
	if v := os.Getenv("GATE_FAIL_CLOSED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parse GATE_FAIL_CLOSED: %w", err)
		}
		cfg.GateFailClosed = b
	}

	return cfg, nil
}
