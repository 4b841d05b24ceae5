// Package config loads and validates the service configuration from a
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// BackendSettings declares one model backend in configuration.
type BackendSettings struct {
	ID        string `mapstructure:"id" validate:"required"`
	Provider  string `mapstructure:"provider" validate:"required,oneof=openai anthropic google"`
	Model     string `mapstructure:"model"`
	Label     string `mapstructure:"label"`
	APIKeyEnv string `mapstructure:"api_key_env" validate:"required"`
	BaseURL   string `mapstructure:"base_url" validate:"omitempty,url"`
}

// ServerSettings holds the HTTP listener configuration.
type ServerSettings struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// JudgingSettings holds the judging engine defaults.
type JudgingSettings struct {
	// DefaultJudge is the backend used by single mode when a request
	// names no judge.
	DefaultJudge string `mapstructure:"default_judge"`

	// Synthesizer is the backend used by consensus mode when a request
	// names none.
	Synthesizer string `mapstructure:"synthesizer"`

	// MaxConcurrency limits simultaneous judge calls.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"min=0,max=20"`

	// CriteriaFile optionally points to a YAML rubric file.
	CriteriaFile string `mapstructure:"criteria_file"`
}

// DispatchSettings holds per-backend call behavior.
type DispatchSettings struct {
	// Timeout bounds each backend call independently.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	// RequestsPerSecond rate-limits each backend client. Zero disables
	// rate limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`

	// CircuitMaxFailures opens a backend's circuit breaker after this
	// many consecutive failures. Zero disables the breaker.
	CircuitMaxFailures int `mapstructure:"circuit_max_failures" validate:"min=0"`

	// CircuitCooldown is how long an open circuit waits before probing.
	CircuitCooldown time.Duration `mapstructure:"circuit_cooldown" validate:"min=0"`
}

// Config is the root service configuration.
type Config struct {
	Server   ServerSettings    `mapstructure:"server"`
	Backends []BackendSettings `mapstructure:"backends" validate:"required,min=1,dive"`
	Judging  JudgingSettings   `mapstructure:"judging"`
	Dispatch DispatchSettings  `mapstructure:"dispatch"`
}

// Load reads configuration from path, applies TRIBUNAL_ prefixed
// environment overrides, fills defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRIBUNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a configuration for structural and referential
// errors. Judge assignments must name declared backends.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ids := make(map[string]struct{}, len(cfg.Backends))
	for _, b := range cfg.Backends {
		if _, dup := ids[b.ID]; dup {
			return fmt.Errorf("backend %q declared twice", b.ID)
		}
		ids[b.ID] = struct{}{}
	}

	if j := cfg.Judging.DefaultJudge; j != "" {
		if _, ok := ids[j]; !ok {
			return fmt.Errorf("default judge %q is not a declared backend", j)
		}
	}
	if s := cfg.Judging.Synthesizer; s != "" {
		if _, ok := ids[s]; !ok {
			return fmt.Errorf("synthesizer %q is not a declared backend", s)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("judging.max_concurrency", 5)
	v.SetDefault("dispatch.timeout", 60*time.Second)
	v.SetDefault("dispatch.circuit_cooldown", 30*time.Second)
}
