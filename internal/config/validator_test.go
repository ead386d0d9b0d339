package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return Default()
}

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := validConfig()

	validator := NewValidator()
	err := validator.ValidateAndSetDefaults(cfg)
	if err != nil {
		t.Fatalf("ValidateAndSetDefaults failed: %v", err)
	}

	if cfg.extSet == nil {
		t.Errorf("extension set should have been built")
	}

	if !cfg.IsSupportedFile("/photos/landscapes/a.JPG") {
		t.Errorf("uppercase extension should be supported after normalization")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"empty root", func(c *Config) { c.PhotosBasePath = " " }, "SYNC_PHOTOS_BASE_PATH"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "SYNC_DB_PATH"},
		{"negative debounce", func(c *Config) { c.EventDebounceDelay = -1 }, "SYNC_EVENT_DEBOUNCE_DELAY"},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }, "SYNC_BATCH_TIMEOUT"},
		{"zero batch size", func(c *Config) { c.MaxBatchSize = 0 }, "SYNC_MAX_BATCH_SIZE"},
		{"zero retries", func(c *Config) { c.RetryAttempts = 0 }, "SYNC_RETRY_ATTEMPTS"},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -1 }, "SYNC_RETRY_DELAY"},
		{"port too low", func(c *Config) { c.HealthCheckPort = 0 }, "SYNC_HEALTH_CHECK_PORT"},
		{"port too high", func(c *Config) { c.HealthCheckPort = 70000 }, "SYNC_HEALTH_CHECK_PORT"},
		{"empty host", func(c *Config) { c.HealthCheckHost = "" }, "SYNC_HEALTH_CHECK_HOST"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "SYNC_LOG_LEVEL"},
		{"no extensions", func(c *Config) { c.SupportedExtensions = nil }, "SYNC_SUPPORTED_EXTENSIONS"},
		{"bare dot extension", func(c *Config) { c.SupportedExtensions = []string{"."} }, "SYNC_SUPPORTED_EXTENSIONS"},
		{"bad glob", func(c *Config) { c.ExcludePatterns = []string{"[unclosed"} }, "SYNC_EXCLUDE_PATTERNS"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Errorf("error should name %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestNormalizeLogLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"Info":    "INFO",
		"WARNING": "WARN",
		"warn":    "WARN",
		"error":   "ERROR",
		"":        "INFO",
	}

	for in, want := range cases {
		cfg := validConfig()
		cfg.LogLevel = in
		if err := ValidateConfig(cfg); err != nil {
			t.Fatalf("level %q: unexpected error: %v", in, err)
		}
		if cfg.LogLevel != want {
			t.Errorf("level %q: got %q, want %q", in, cfg.LogLevel, want)
		}
	}
}

func TestNormalizeExtensions(t *testing.T) {
	cfg := validConfig()
	cfg.SupportedExtensions = []string{"JPG", " .PNG ", "jpg", ".webp"}

	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{".jpg", ".png", ".webp"}
	if len(cfg.SupportedExtensions) != len(want) {
		t.Fatalf("got %v, want %v", cfg.SupportedExtensions, want)
	}
	for i, ext := range want {
		if cfg.SupportedExtensions[i] != ext {
			t.Errorf("extension %d: got %q, want %q", i, cfg.SupportedExtensions[i], ext)
		}
	}

	if !cfg.IsSupportedFile("a/b.PNG") {
		t.Errorf("normalized set should match case-insensitively")
	}
	if cfg.IsSupportedFile("a/b.txt") {
		t.Errorf("unsupported extension should not match")
	}
	if cfg.IsSupportedFile("a/no_extension") {
		t.Errorf("extensionless path should not match")
	}
}

func TestExcluded(t *testing.T) {
	cfg := validConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hidden := []string{
		".hidden.jpg",
		"landscapes/.hidden.jpg",
		".cache/thumb.jpg",
	}
	for _, rel := range hidden {
		if !cfg.Excluded(rel) {
			t.Errorf("default patterns should exclude %q", rel)
		}
	}

	visible := []string{
		"landscapes/sunset.jpg",
		"portraits/alice.png",
	}
	for _, rel := range visible {
		if cfg.Excluded(rel) {
			t.Errorf("default patterns should not exclude %q", rel)
		}
	}
}
