package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"

	"sayhey/internal/integrations/chatapi"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	VariantExtended   = "extended"
	VariantSimplified = "simplified"
)

// Config is read once at startup. The base endpoint is a static decision:
// an explicit URL wins, then an SSM parameter, then the environment default.
type Config struct {
	Env           string `env:"SAYHEY_ENV" envDefault:"production"`
	BaseURL       string `env:"SAYHEY_BASE_URL"`
	EndpointParam string `env:"SAYHEY_ENDPOINT_PARAM"`
	Variant       string `env:"SAYHEY_VARIANT" envDefault:"extended"`
	Origin        string `env:"SAYHEY_ORIGIN"`
	StatePath     string `env:"SAYHEY_STATE_PATH"`
	ArchiveTable  string `env:"SAYHEY_ARCHIVE_TABLE"`
	Trace         bool   `env:"SAYHEY_TRACE"`
	LogLevel      string `env:"SAYHEY_LOG_LEVEL" envDefault:"info"`
	MaxMessageLen int    `env:"SAYHEY_MAX_MESSAGE_LENGTH" envDefault:"4000"`
}

// EndpointGetter resolves a base URL stored under a parameter name.
type EndpointGetter interface {
	Endpoint(ctx context.Context, name string) (string, error)
}

// Load reads the process environment.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Variant = strings.ToLower(strings.TrimSpace(cfg.Variant))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.EndpointParam = strings.TrimSpace(cfg.EndpointParam)
	cfg.ArchiveTable = strings.TrimSpace(cfg.ArchiveTable)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("config: SAYHEY_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}
	switch c.Variant {
	case VariantExtended, VariantSimplified:
	default:
		return fmt.Errorf("config: SAYHEY_VARIANT must be %q or %q, got %q", VariantExtended, VariantSimplified, c.Variant)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.MaxMessageLen < 0 {
		return errors.New("config: SAYHEY_MAX_MESSAGE_LENGTH must not be negative")
	}
	return nil
}

// NeedsAWS reports whether startup must load AWS credentials.
func (c Config) NeedsAWS() bool {
	return (c.BaseURL == "" && c.EndpointParam != "") || c.ArchiveTable != ""
}

// DefaultBaseURL is the endpoint implied by SAYHEY_ENV alone.
func (c Config) DefaultBaseURL() string {
	if c.Env == EnvDevelopment {
		return chatapi.DevelopmentBaseURL
	}
	return chatapi.ProductionBaseURL
}

// ResolveBaseURL picks the endpoint once. params may be nil when no
// parameter is configured.
func (c Config) ResolveBaseURL(ctx context.Context, params EndpointGetter) (string, error) {
	if c.BaseURL != "" {
		return c.BaseURL, nil
	}
	if c.EndpointParam != "" {
		if params == nil {
			return "", errors.New("config: SAYHEY_ENDPOINT_PARAM set but no parameter store available")
		}
		endpoint, err := params.Endpoint(ctx, c.EndpointParam)
		if err != nil {
			return "", fmt.Errorf("config: resolve endpoint parameter: %w", err)
		}
		return endpoint, nil
	}
	return c.DefaultBaseURL(), nil
}

// ClientConfig maps SAYHEY_VARIANT onto the transport client variant.
func (c Config) ClientConfig() chatapi.Config {
	if c.Variant == VariantSimplified {
		return chatapi.SimplifiedConfig()
	}
	return chatapi.ExtendedConfig(c.Origin)
}

func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// ResolvedStatePath defaults to ~/.sayhey/state.db.
func (c Config) ResolvedStatePath() (string, error) {
	if p := strings.TrimSpace(c.StatePath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: locate home directory: %w", err)
	}
	return filepath.Join(home, ".sayhey", "state.db"), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: SAYHEY_LOG_LEVEL: %w", err)
	}
	return level, nil
}
