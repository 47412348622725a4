package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFileInvokesOnChangeAfterRewrite(t *testing.T) {
	clearMatricEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "matric")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[search]\nrrf_k = 42\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	errs := make(chan error, 4)
	if err := WatchFile(ctx, configPath, func(c *Config) { changes <- c }, func(e error) { errs <- e }); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("[search]\nrrf_k = 77\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.Search.RRFK != 77 {
			t.Errorf("RRFK = %d, want 77", cfg.Search.RRFK)
		}
	case err := <-errs:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for onChange after rewrite")
	}
}

func TestWatchFileUnknownDirReturnsError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchFile(ctx, "/nonexistent-dir-xyz/config.toml", nil, nil)
	if err == nil {
		t.Fatal("expected error watching nonexistent directory")
	}
}
