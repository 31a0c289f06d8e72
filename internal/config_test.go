package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_APIKeyModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "apikey", Key: "anon-key"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("apikey mode with key should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("apikey mode should be enabled")
	}
}

func TestAuthConfig_APIKeyModeEmptyKey(t *testing.T) {
	cfg := AuthConfig{Mode: "apikey"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("apikey mode with empty key should fail")
	}
	if !strings.Contains(err.Error(), "key is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Key: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.RateLimit.Window != time.Minute || cfg.RateLimit.MaxRequests != 10 {
		t.Errorf("rate limit defaults = %v/%d, want 1m/10", cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.TrustProxyHeaders {
		t.Error("proxy headers must not be trusted by default")
	}
}

func TestCraftConfig_BadTimezone(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Craft.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown timezone should fail validation")
	}
}

func TestCORSConfig_RequiresOrigins(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.CORS.Origins = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty origin list should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "apikey"
	cfg.Auth.Key = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}
