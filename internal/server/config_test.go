package server

import (
	"testing"
	"time"
)

// TestDefaultConfig verifies the built-in defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected default max message size 4096, got %d", cfg.MaxMessageSize)
	}
	if cfg.PingInterval != 25*time.Second {
		t.Errorf("Expected default ping interval 25s, got %s", cfg.PingInterval)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("Expected permissive default origins, got %v", cfg.AllowedOrigins)
	}
}

// TestNewConfigFromEnv verifies environment variables override the defaults.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://example.com, https://other.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("PING_INTERVAL", "40")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Expected port :9090, got %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("Expected parsed origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("Expected max message size 1024, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 7 {
		t.Errorf("Expected burst 7, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("Expected refill interval 2s, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.PingInterval != 40*time.Second {
		t.Errorf("Expected ping interval 40s, got %s", cfg.PingInterval)
	}
}

// TestNewConfigFromEnvIgnoresInvalidValues verifies malformed environment
// values fall back to the defaults instead of failing.
func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("PING_INTERVAL", "0")

	cfg := NewConfigFromEnv()

	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected default max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 20 {
		t.Errorf("Expected default burst, got %d", cfg.RateLimit.Burst)
	}
	if cfg.PingInterval != 25*time.Second {
		t.Errorf("Expected default ping interval, got %s", cfg.PingInterval)
	}
}

// TestSetConfigSanitizes verifies SetConfig replaces zero values with
// defaults and that nil resets the active configuration.
func TestSetConfigSanitizes(t *testing.T) {
	defer SetConfig(nil)

	SetConfig(&Config{Port: "", PingInterval: -time.Second})

	cfg := currentConfig()
	if cfg.Port != ":8080" {
		t.Errorf("Expected sanitized port, got %q", cfg.Port)
	}
	if cfg.PingInterval != 25*time.Second {
		t.Errorf("Expected sanitized ping interval, got %s", cfg.PingInterval)
	}

	SetConfig(nil)
	if got := currentConfig().MaxMessageSize; got != 4096 {
		t.Errorf("Expected defaults after reset, got max message size %d", got)
	}
}
