package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment key the worker reads.
const EnvPrefix = "SYNC_"

// DefaultConfigFile is consulted when no explicit config path is given.
const DefaultConfigFile = "photosync.toml"

type Config struct {
	// Filesystem
	PhotosBasePath string // root of the <root>/<category>/<file> tree
	DBPath         string // SQLite catalog file

	// Sync behavior
	InitialSyncOnStartup bool
	PeriodicSyncInterval time.Duration // <=0 disables the periodic pass

	// Event pipeline
	EventDebounceDelay  time.Duration // coalescing window after the anchor event
	BatchTimeout        time.Duration // drain cutoff measured from batch start
	MaxBatchSize        int
	RetryAttempts       int // total tries per batch, not extra retries
	RetryDelay          time.Duration
	ShutdownGracePeriod time.Duration // budget for draining on shutdown

	// Health surface
	HealthCheckHost string
	HealthCheckPort int
	AccessLog       bool

	// Logging
	LogLevel string

	// Filtering
	SupportedExtensions []string // lowercased, dot-prefixed
	ExcludePatterns     []string // doublestar globs against root-relative paths

	extSet map[string]struct{}
}

// Default returns the built-in configuration, before any file or
// environment layering.
func Default() *Config {
	return &Config{
		PhotosBasePath:       "/app/photos",
		DBPath:               "photos.db",
		InitialSyncOnStartup: true,
		PeriodicSyncInterval: 3600 * time.Second,
		EventDebounceDelay:   2 * time.Second,
		BatchTimeout:         1 * time.Second,
		MaxBatchSize:         100,
		RetryAttempts:        3,
		RetryDelay:           5 * time.Second,
		ShutdownGracePeriod:  5 * time.Second,
		HealthCheckHost:      "0.0.0.0",
		HealthCheckPort:      8001,
		AccessLog:            false,
		LogLevel:             "INFO",
		SupportedExtensions: []string{
			".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif",
			".raw", ".cr2", ".nef", ".arw", ".dng", ".orf", ".rw2", ".pef", ".srw",
		},
		ExcludePatterns: []string{
			"**/.*",    // hidden files
			"**/.*/**", // anything under hidden directories
		},
	}
}

// Load builds the effective configuration: defaults, then an optional
// TOML file, then SYNC_* environment variables. A .env file in the
// working directory is folded into the environment first without
// overriding variables that are already set.
//
// configPath == "" consults SYNC_CONFIG_FILE and then photosync.toml;
// a missing default file is fine, a missing explicit file is an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		if envPath := os.Getenv(EnvPrefix + "CONFIG_FILE"); envPath != "" {
			configPath = envPath
			explicit = true
		} else {
			configPath = DefaultConfigFile
		}
	}

	if err := loadFile(cfg, configPath, explicit); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// fileConfig mirrors Config for the TOML layer. Pointer fields
// distinguish "absent" from zero values; durations are fractional
// seconds, matching the environment representation.
type fileConfig struct {
	PhotosBasePath       *string  `toml:"photos_base_path"`
	DBPath               *string  `toml:"db_path"`
	InitialSyncOnStartup *bool    `toml:"initial_sync_on_startup"`
	PeriodicSyncInterval *float64 `toml:"periodic_sync_interval"`
	EventDebounceDelay   *float64 `toml:"event_debounce_delay"`
	BatchTimeout         *float64 `toml:"batch_timeout"`
	MaxBatchSize         *int     `toml:"max_batch_size"`
	RetryAttempts        *int     `toml:"retry_attempts"`
	RetryDelay           *float64 `toml:"retry_delay"`
	ShutdownGracePeriod  *float64 `toml:"shutdown_grace_period"`
	HealthCheckHost      *string  `toml:"health_check_host"`
	HealthCheckPort      *int     `toml:"health_check_port"`
	AccessLog            *bool    `toml:"access_log"`
	LogLevel             *string  `toml:"log_level"`
	SupportedExtensions  []string `toml:"supported_extensions"`
	ExcludePatterns      []string `toml:"exclude_patterns"`
}

func loadFile(cfg *Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.PhotosBasePath != nil {
		cfg.PhotosBasePath = *fc.PhotosBasePath
	}
	if fc.DBPath != nil {
		cfg.DBPath = *fc.DBPath
	}
	if fc.InitialSyncOnStartup != nil {
		cfg.InitialSyncOnStartup = *fc.InitialSyncOnStartup
	}
	if fc.PeriodicSyncInterval != nil {
		cfg.PeriodicSyncInterval = secondsToDuration(*fc.PeriodicSyncInterval)
	}
	if fc.EventDebounceDelay != nil {
		cfg.EventDebounceDelay = secondsToDuration(*fc.EventDebounceDelay)
	}
	if fc.BatchTimeout != nil {
		cfg.BatchTimeout = secondsToDuration(*fc.BatchTimeout)
	}
	if fc.MaxBatchSize != nil {
		cfg.MaxBatchSize = *fc.MaxBatchSize
	}
	if fc.RetryAttempts != nil {
		cfg.RetryAttempts = *fc.RetryAttempts
	}
	if fc.RetryDelay != nil {
		cfg.RetryDelay = secondsToDuration(*fc.RetryDelay)
	}
	if fc.ShutdownGracePeriod != nil {
		cfg.ShutdownGracePeriod = secondsToDuration(*fc.ShutdownGracePeriod)
	}
	if fc.HealthCheckHost != nil {
		cfg.HealthCheckHost = *fc.HealthCheckHost
	}
	if fc.HealthCheckPort != nil {
		cfg.HealthCheckPort = *fc.HealthCheckPort
	}
	if fc.AccessLog != nil {
		cfg.AccessLog = *fc.AccessLog
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if len(fc.SupportedExtensions) > 0 {
		cfg.SupportedExtensions = fc.SupportedExtensions
	}
	if len(fc.ExcludePatterns) > 0 {
		cfg.ExcludePatterns = fc.ExcludePatterns
	}

	return nil
}

func applyEnv(cfg *Config) error {
	var err error

	if err = envString("PHOTOS_BASE_PATH", &cfg.PhotosBasePath); err != nil {
		return err
	}
	if err = envString("DB_PATH", &cfg.DBPath); err != nil {
		return err
	}
	if err = envBool("INITIAL_SYNC_ON_STARTUP", &cfg.InitialSyncOnStartup); err != nil {
		return err
	}
	if err = envSeconds("PERIODIC_SYNC_INTERVAL", &cfg.PeriodicSyncInterval); err != nil {
		return err
	}
	if err = envSeconds("EVENT_DEBOUNCE_DELAY", &cfg.EventDebounceDelay); err != nil {
		return err
	}
	if err = envSeconds("BATCH_TIMEOUT", &cfg.BatchTimeout); err != nil {
		return err
	}
	if err = envInt("MAX_BATCH_SIZE", &cfg.MaxBatchSize); err != nil {
		return err
	}
	if err = envInt("RETRY_ATTEMPTS", &cfg.RetryAttempts); err != nil {
		return err
	}
	if err = envSeconds("RETRY_DELAY", &cfg.RetryDelay); err != nil {
		return err
	}
	if err = envSeconds("SHUTDOWN_GRACE_PERIOD", &cfg.ShutdownGracePeriod); err != nil {
		return err
	}
	if err = envString("HEALTH_CHECK_HOST", &cfg.HealthCheckHost); err != nil {
		return err
	}
	if err = envInt("HEALTH_CHECK_PORT", &cfg.HealthCheckPort); err != nil {
		return err
	}
	if err = envBool("ACCESS_LOG", &cfg.AccessLog); err != nil {
		return err
	}
	if err = envString("LOG_LEVEL", &cfg.LogLevel); err != nil {
		return err
	}
	if err = envList("SUPPORTED_EXTENSIONS", &cfg.SupportedExtensions); err != nil {
		return err
	}
	if err = envList("EXCLUDE_PATTERNS", &cfg.ExcludePatterns); err != nil {
		return err
	}

	return nil
}

func envString(key string, dst *string) error {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		return syncerrValue(key, v, "must be a boolean")
	}
	*dst = parsed
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return syncerrValue(key, v, "must be an integer")
	}
	*dst = parsed
	return nil
}

// envSeconds parses a duration given as fractional seconds, the
// representation the original deployment used ("2.0", "0.5", "3600").
func envSeconds(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return syncerrValue(key, v, "must be a number of seconds")
	}
	*dst = secondsToDuration(parsed)
	return nil
}

func envList(key string, dst *[]string) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
	return nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// IsSupportedFile reports whether the path's lowercased extension is in
// the supported set. Call only after ValidateConfig has built the set.
func (c *Config) IsSupportedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := c.extSet[ext]
	return ok
}

// SlogLevel maps the normalized log level onto slog's scale.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Excluded matches a root-relative path against the exclusion globs.
// Patterns use forward slashes regardless of platform.
func (c *Config) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.ExcludePatterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
