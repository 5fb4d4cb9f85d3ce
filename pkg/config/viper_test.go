package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRESENCE_STALE_THRESHOLD", "3m")

	v, err := Load(dir, "does-not-exist")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := Duration(v, "presence.stale_threshold", time.Minute); got != 3*time.Minute {
		t.Errorf("Duration() = %v, want 3m", got)
	}
}

func TestLoad_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	body := []byte("dedup:\n  retention: 90m\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o600); err != nil {
		t.Fatal(err)
	}

	v, err := Load(dir, "config")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := Duration(v, "dedup.retention", time.Hour); got != 90*time.Minute {
		t.Errorf("Duration() = %v, want 90m", got)
	}
}

func TestDuration_FallsBack(t *testing.T) {
	v, err := Load(t.TempDir(), "none")
	if err != nil {
		t.Fatal(err)
	}
	v.Set("a", "not-a-duration")
	v.Set("b", "-5s")
	if got := Duration(v, "a", time.Second); got != time.Second {
		t.Errorf("malformed: got %v", got)
	}
	if got := Duration(v, "b", time.Second); got != time.Second {
		t.Errorf("negative: got %v", got)
	}
	if got := Duration(v, "missing", 2*time.Second); got != 2*time.Second {
		t.Errorf("missing: got %v", got)
	}
}
