package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string        `yaml:"name"`
	Every time.Duration `yaml:"every"`
	fail  bool
}

func (s *sample) Validate() error {
	if s.fail || s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "weekly")
	path := writeFile(t, t.TempDir(), "name: ${SAMPLE_NAME}\nevery: 90s\n")

	var s sample
	require.NoError(t, Load(path, &s))
	assert.Equal(t, "weekly", s.Name)
	assert.Equal(t, 90*time.Second, s.Every)
}

func TestLoad_RunsValidator(t *testing.T) {
	path := writeFile(t, t.TempDir(), "every: 1s\n")

	var s sample
	err := Load(path, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadOptional_MissingFileKeepsDefaults(t *testing.T) {
	s := sample{Name: "default"}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "default", s.Name)
}

func TestLoadOptional_MissingFileStillValidates(t *testing.T) {
	s := sample{fail: true}
	_, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	require.Error(t, err)
}

func TestWatch_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "name: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change callback")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "name: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	go func() { _ = Watch(ctx, path, 20*time.Millisecond, func() { changed <- struct{}{} }) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))

	select {
	case <-changed:
		t.Fatal("unexpected callback for unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
