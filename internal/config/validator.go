package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole config and returns the first problem found.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Gateway.Enabled {
		if err := v.ValidatePort(cfg.Gateway.Port); err != nil {
			return err
		}
		if err := v.ValidateSharedSecret(cfg.Gateway.SharedSecret); err != nil {
			return err
		}
	}
	if err := v.ValidateTimeouts(cfg.Defaults); err != nil {
		return err
	}
	if err := v.ValidateSchedule(cfg.Reaper.Schedule); err != nil {
		return err
	}
	if cfg.Reaper.MaxIdleMinutes <= 0 {
		return fmt.Errorf("reaper max_idle_minutes must be positive, got %d", cfg.Reaper.MaxIdleMinutes)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePort validates a TCP port number
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", port)
	}
	return nil
}

// ValidateSharedSecret validates the gateway shared secret
func (v *Validator) ValidateSharedSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("gateway shared_secret cannot be empty when gateway is enabled")
	}
	if len(secret) < 16 {
		return fmt.Errorf("gateway shared_secret too short (minimum 16 characters)")
	}
	return nil
}

// ValidateTimeouts validates the default timeout values
func (v *Validator) ValidateTimeouts(d DefaultsConfig) error {
	if d.InitTimeoutMS <= 0 {
		return fmt.Errorf("init_timeout_ms must be positive, got %d", d.InitTimeoutMS)
	}
	if d.CommandTimeoutMS <= 0 {
		return fmt.Errorf("command_timeout_ms must be positive, got %d", d.CommandTimeoutMS)
	}
	return nil
}

// ValidateSchedule validates a cron schedule expression
func (v *Validator) ValidateSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("reaper schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	return nil
}
