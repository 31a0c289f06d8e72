package internal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/brainreset/internal/api"
	"github.com/starford/brainreset/internal/apperr"
	"github.com/starford/brainreset/internal/validate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	if _, err := newApplication(nil); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestReload_AppliesCORSAndLevel(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
cors:
  origins:
    - https://a.example.com
  suffixes: []
`)
	app, err := newApplication([]Option{
		WithConfig(NewDefaultConfig()),
		WithConfigPath(path),
		WithLogOutput(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	logger, level := app.newLogger()
	cors := api.NewCORSPolicy(app.config.CORS.Origins, app.config.CORS.Suffixes)

	app.reload(logger, level, cors)

	if got := cors.AllowOrigin("https://x.lovable.app"); got != "https://a.example.com" {
		t.Errorf("allow origin after reload = %q", got)
	}
	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
}

func TestReload_InvalidFileKeepsSettings(t *testing.T) {
	path := writeConfig(t, `
auth:
  mode: bogus
cors:
  origins:
    - https://a.example.com
`)
	app, err := newApplication([]Option{
		WithConfig(NewDefaultConfig()),
		WithConfigPath(path),
		WithLogOutput(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	logger, level := app.newLogger()
	cors := api.NewCORSPolicy(app.config.CORS.Origins, app.config.CORS.Suffixes)

	app.reload(logger, level, cors)

	if got := cors.AllowOrigin("https://x.lovable.app"); got != "https://x.lovable.app" {
		t.Errorf("invalid reload must not change CORS, got %q", got)
	}
	if level.Level() != slog.LevelInfo {
		t.Errorf("level = %v, want info", level.Level())
	}
}

func TestNewService_BadTimezone(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Craft.Timezone = "Nowhere/Zone"
	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := app.newLogger()
	if _, err := app.newService(logger, nil, nil); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestGenerate_RejectsInvalidInput(t *testing.T) {
	_, err := Generate(context.Background(), "r1", validate.RawRequest{ServerURL: "http://example.com"},
		WithConfig(NewDefaultConfig()), WithLogOutput(io.Discard))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
