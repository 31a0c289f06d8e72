package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeAPIKey   = "apikey"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Auth      AuthConfig        `yaml:"auth"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	CORS      CORSConfig        `yaml:"cors"`
	Craft     CraftConfig       `yaml:"craft"`
	AI        AIConfig          `yaml:"ai"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.CORS.Validate(); err != nil {
		return err
	}
	if err := c.Craft.Validate(); err != nil {
		return err
	}
	return c.AI.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds the internal API key check.
//
// Mode controls how the key is enforced:
//   - "disabled" (default): every caller is accepted, suitable for local dev.
//   - "apikey": requests must carry Key in the "apikey" header or as a Bearer token.
type AuthConfig struct {
	Mode string `yaml:"mode"`
	Key  string `yaml:"key"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeAPIKey)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeAPIKey && c.Key == "" {
		return fmt.Errorf("auth: mode is %q but key is empty", AuthModeAPIKey)
	}
	return nil
}

// AuthEnabled returns true when the API key check is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeAPIKey
}

// RateLimitConfig holds the per-client fixed window.
//
// Clients are keyed by the connection's remote address. Set
// TrustProxyHeaders only behind a reverse proxy that overwrites
// X-Forwarded-For and X-Real-IP; otherwise any caller can pick its own key.
type RateLimitConfig struct {
	Window            time.Duration `yaml:"window"`
	MaxRequests       int           `yaml:"max_requests"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers"`
}

// Validate validates the rate limit configuration.
func (c *RateLimitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Window, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MaxRequests, validation.Required, validation.Min(1)),
	)
}

// CORSConfig holds the origin allow-list. The first entry of Origins is
// returned for origins that match nothing.
type CORSConfig struct {
	Origins  []string `yaml:"origins"`
	Suffixes []string `yaml:"suffixes"`
}

// Validate validates the CORS configuration.
func (c *CORSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Origins, validation.Required),
	)
}

// CraftConfig holds settings for the remote note store.
type CraftConfig struct {
	Domain           string        `yaml:"domain"`
	DeepLinkScheme   string        `yaml:"deep_link_scheme"`
	Timezone         string        `yaml:"timezone"`
	Timeout          time.Duration `yaml:"timeout"`
	FetchConcurrency int           `yaml:"fetch_concurrency"`
}

// Validate validates the Craft configuration.
func (c *CraftConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Domain, validation.Required),
		validation.Field(&c.DeepLinkScheme, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.FetchConcurrency, validation.Min(0), validation.Max(30)),
	); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("craft: timezone: %w", err)
	}
	return nil
}

// AIConfig holds settings for the completion gateway. The key itself is
// never stored here; APIKeyEnv names the variable read at call time.
type AIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.APIKeyEnv, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		RateLimit: RateLimitConfig{
			Window:      60 * time.Second,
			MaxRequests: 10,
		},
		CORS: CORSConfig{
			Origins: []string{
				"https://brainreset.app",
				"http://localhost:5173",
				"http://localhost:8080",
			},
			Suffixes: []string{".lovable.app", ".lovableproject.com"},
		},
		Craft: CraftConfig{
			Domain:           "craft.do",
			DeepLinkScheme:   "craftdocs",
			Timezone:         "UTC",
			Timeout:          20 * time.Second,
			FetchConcurrency: 1,
		},
		AI: AIConfig{
			BaseURL:           "https://ai.gateway.lovable.dev/v1",
			Model:             "google/gemini-2.5-flash",
			APIKeyEnv:         "AI_API_KEY",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
	}
}
