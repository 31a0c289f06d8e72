// Package reflection turns a window of daily notes into a structured
// Markdown reflection using an OpenAI-compatible completion gateway.
package reflection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/models"
)

const maxResponseBody = 10 << 20

// Config holds the gateway settings.
type Config struct {
	BaseURL           string
	Model             string
	APIKeyEnv         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Generator calls the completion gateway once per reflection. It never
// retries; the optional limiter only paces outbound calls.
type Generator struct {
	http    *http.Client
	baseURL string
	model   string
	keyEnv  string
	apiKey  func() string
	limiter *rate.Limiter
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Generator) { g.http = hc }
}

// WithKeySource replaces the environment lookup of the API key.
func WithKeySource(fn func() string) Option {
	return func(g *Generator) { g.apiKey = fn }
}

// WithClock overrides the time source used for the document title.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New returns a Generator for cfg. The API key is read from the
// environment variable cfg.APIKeyEnv on every call.
func New(cfg Config, opts ...Option) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	g := &Generator{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		keyEnv:  cfg.APIKeyEnv,
		now:     time.Now,
		logger:  slog.Default(),
	}
	g.apiKey = func() string { return os.Getenv(g.keyEnv) }
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate returns the reflection for notes covering days. Gateway
// failures are apperr kinds AIConfig, AIRateLimited, AIQuotaExhausted or
// AIService.
func (g *Generator) Generate(ctx context.Context, notes []models.DailyNote, days int) (string, error) {
	const op = "reflection.generate"

	key := g.apiKey()
	if key == "" {
		return "", apperr.New(apperr.KindAIConfig, op, fmt.Errorf("AI service not configured: %s is empty", g.keyEnv))
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", apperr.New(apperr.KindAIService, op, fmt.Errorf("pacing: %w", err))
		}
	}

	combined := CombineNotes(notes)
	g.logger.Info("reflection: generating",
		slog.String("period", PeriodLabel(days)), slog.Int("notes", len(notes)), slog.Int("chars", len(combined)))

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt(days, g.now())},
			{Role: "user", Content: UserPrompt(days, combined)},
		},
	})
	if err != nil {
		return "", apperr.New(apperr.KindAIService, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperr.New(apperr.KindAIService, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", apperr.New(apperr.KindAIService, op, fmt.Errorf("request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", apperr.WithStatus(apperr.KindAIService, op, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", apperr.WithStatus(apperr.KindAIRateLimited, op, resp.StatusCode, errors.New("rate limit exceeded"))
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", apperr.WithStatus(apperr.KindAIQuotaExhausted, op, resp.StatusCode, errors.New("credits exhausted"))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", apperr.WithStatus(apperr.KindAIService, op, resp.StatusCode,
			fmt.Errorf("AI service error: %s", truncate(string(raw), 512)))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperr.WithStatus(apperr.KindAIService, op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		g.logger.Warn("reflection: gateway returned no completion text")
		return Fallback, nil
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
