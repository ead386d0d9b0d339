package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	syncerrors "github.com/pixelgrove/photosync/internal/errors"
)

// Validator validates configuration and normalizes derived fields
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration, normalizes the log
// level and extension list, and builds the extension lookup set.
// Returns a config error naming the offending key on failure.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validatePaths(cfg); err != nil {
		return err
	}
	if err := v.validatePipeline(cfg); err != nil {
		return err
	}
	if err := v.validateHealth(cfg); err != nil {
		return err
	}
	if err := v.normalizeLogLevel(cfg); err != nil {
		return err
	}
	if err := v.normalizeExtensions(cfg); err != nil {
		return err
	}
	if err := v.validatePatterns(cfg); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validatePaths(cfg *Config) error {
	if strings.TrimSpace(cfg.PhotosBasePath) == "" {
		return syncerrValue("PHOTOS_BASE_PATH", cfg.PhotosBasePath, "cannot be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return syncerrValue("DB_PATH", cfg.DBPath, "cannot be empty")
	}
	return nil
}

func (v *Validator) validatePipeline(cfg *Config) error {
	if cfg.EventDebounceDelay < 0 {
		return syncerrValue("EVENT_DEBOUNCE_DELAY", cfg.EventDebounceDelay.String(), "cannot be negative")
	}
	if cfg.BatchTimeout <= 0 {
		return syncerrValue("BATCH_TIMEOUT", cfg.BatchTimeout.String(), "must be positive")
	}
	if cfg.MaxBatchSize < 1 {
		return syncerrValue("MAX_BATCH_SIZE", fmt.Sprintf("%d", cfg.MaxBatchSize), "must be at least 1")
	}
	if cfg.RetryAttempts < 1 {
		return syncerrValue("RETRY_ATTEMPTS", fmt.Sprintf("%d", cfg.RetryAttempts), "must be at least 1")
	}
	if cfg.RetryDelay < 0 {
		return syncerrValue("RETRY_DELAY", cfg.RetryDelay.String(), "cannot be negative")
	}
	if cfg.ShutdownGracePeriod < 0 {
		return syncerrValue("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod.String(), "cannot be negative")
	}
	return nil
}

func (v *Validator) validateHealth(cfg *Config) error {
	if cfg.HealthCheckPort < 1 || cfg.HealthCheckPort > 65535 {
		return syncerrValue("HEALTH_CHECK_PORT", fmt.Sprintf("%d", cfg.HealthCheckPort), "must be between 1 and 65535")
	}
	if strings.TrimSpace(cfg.HealthCheckHost) == "" {
		return syncerrValue("HEALTH_CHECK_HOST", cfg.HealthCheckHost, "cannot be empty")
	}
	return nil
}

func (v *Validator) normalizeLogLevel(cfg *Config) error {
	switch strings.ToUpper(strings.TrimSpace(cfg.LogLevel)) {
	case "DEBUG":
		cfg.LogLevel = "DEBUG"
	case "INFO", "":
		cfg.LogLevel = "INFO"
	case "WARN", "WARNING":
		cfg.LogLevel = "WARN"
	case "ERROR":
		cfg.LogLevel = "ERROR"
	default:
		return syncerrValue("LOG_LEVEL", cfg.LogLevel, "must be one of DEBUG, INFO, WARN, ERROR")
	}
	return nil
}

func (v *Validator) normalizeExtensions(cfg *Config) error {
	if len(cfg.SupportedExtensions) == 0 {
		return syncerrValue("SUPPORTED_EXTENSIONS", "", "cannot be empty")
	}

	normalized := make([]string, 0, len(cfg.SupportedExtensions))
	set := make(map[string]struct{}, len(cfg.SupportedExtensions))
	for _, ext := range cfg.SupportedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext == "." {
			return syncerrValue("SUPPORTED_EXTENSIONS", ext, "extension cannot be a bare dot")
		}
		if _, dup := set[ext]; dup {
			continue
		}
		set[ext] = struct{}{}
		normalized = append(normalized, ext)
	}
	if len(normalized) == 0 {
		return syncerrValue("SUPPORTED_EXTENSIONS", "", "cannot be empty")
	}

	cfg.SupportedExtensions = normalized
	cfg.extSet = set
	return nil
}

func (v *Validator) validatePatterns(cfg *Config) error {
	for _, pattern := range cfg.ExcludePatterns {
		if !doublestar.ValidatePattern(pattern) {
			return syncerrValue("EXCLUDE_PATTERNS", pattern, "invalid glob pattern")
		}
	}
	return nil
}

func syncerrValue(key, value, reason string) error {
	return syncerrors.NewConfigError(EnvPrefix+key, value, errors.New(reason))
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
