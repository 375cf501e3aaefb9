package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillcoder/gracehook/internal/infra/cronparser"
)

const (
	defaultLogLevel                 = "info"
	defaultLogFormat                = "json"
	defaultHTTPPort                 = "8080"
	defaultMetricsPort              = "9090"
	defaultClosePollInterval        = 50 * time.Millisecond
	defaultCloseTimeout             = 10 * time.Minute
	defaultComponentShutdownTimeout = 5 * time.Second
	defaultPingerInterval           = 10 * time.Second
	defaultTerminationFile          = "/mnt/signal/terminating"
	defaultRestartJitterMax         = 30 * time.Second
)

var _validate = validator.New()

type Config struct {
	LogLevel                 string `validate:"oneof=debug info warn error"`
	LogFormat                string `validate:"oneof=json text"`
	HTTPPort                 string `validate:"required,numeric"`
	MetricsPort              string `validate:"required,numeric"`
	ClosePollInterval        time.Duration
	CloseTimeout             time.Duration
	ComponentShutdownTimeout time.Duration
	PingerInterval           time.Duration
	TerminationFile          string
	RestartSchedule          string
	RestartTZ                string
	RestartJitterMax         time.Duration
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:        getEnvOrDefault(envKeyLogLevel, defaultLogLevel),
		LogFormat:       getEnvOrDefault(envKeyLogFormat, defaultLogFormat),
		HTTPPort:        getEnvOrDefault(envKeyHTTPPort, defaultHTTPPort),
		MetricsPort:     getEnvOrDefault(envKeyMetricsPort, defaultMetricsPort),
		TerminationFile: getEnvOrDefault(envKeyTerminationFile, defaultTerminationFile),
		RestartSchedule: os.Getenv(envKeyRestartSchedule),
		RestartTZ:       os.Getenv(envKeyRestartTZ),
	}

	if err := _validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var err error

	cfg.ClosePollInterval, err = getDuration(envKeyClosePollInterval, defaultClosePollInterval, envMinClosePollInterval)
	if err != nil {
		return nil, err
	}

	cfg.CloseTimeout, err = getDuration(envKeyCloseTimeout, defaultCloseTimeout, envMinCloseTimeout)
	if err != nil {
		return nil, err
	}

	cfg.ComponentShutdownTimeout, err = getDuration(
		envKeyComponentShutdownTimeout,
		defaultComponentShutdownTimeout,
		envMinComponentShutdownTimeout,
	)
	if err != nil {
		return nil, err
	}

	cfg.PingerInterval, err = getDuration(envKeyPingerInterval, defaultPingerInterval, envMinPingerInterval)
	if err != nil {
		return nil, err
	}

	cfg.RestartJitterMax, err = getDuration(envKeyRestartJitterMax, defaultRestartJitterMax, envMinRestartJitterMax)
	if err != nil {
		return nil, err
	}

	if cfg.RestartSchedule != "" {
		if err := cronparser.New().Validate(cfg.RestartSchedule, cfg.RestartTZ); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRestartSchedule, envKeyRestartSchedule, err)
		}
	}

	return cfg, nil
}

// RestartEnabled reports whether a planned restart is configured.
func (c *Config) RestartEnabled() bool {
	return c.RestartSchedule != ""
}

func getDuration(key string, defaultValue, minValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidDuration, key, err)
	}

	if d < minValue {
		return 0, fmt.Errorf("%w: %s=%s, minimum %s", ErrDurationBelowMinimum, key, d, minValue)
	}

	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}
