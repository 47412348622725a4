package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadWithFileReadsTOML(t *testing.T) {
	clearMatricEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "matric")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	toml := "[observability]\nservice_name = \"matric-test\"\n\n[search]\nrrf_k = 42\n"
	if err := os.WriteFile(configPath, []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.Observability.ServiceName != "matric-test" {
		t.Errorf("ServiceName = %q, want matric-test", cfg.Observability.ServiceName)
	}
	if cfg.Search.RRFK != 42 {
		t.Errorf("RRFK = %d, want 42", cfg.Search.RRFK)
	}
}

func TestLoadWithFileEnvOverridesFile(t *testing.T) {
	clearMatricEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "matric")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	toml := "[search]\nrrf_k = 42\n"
	if err := os.WriteFile(configPath, []byte(toml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MATRIC_SEARCH__RRF_K", "99")

	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.Search.RRFK != 99 {
		t.Errorf("RRFK = %d, want 99 (env must win over file)", cfg.Search.RRFK)
	}
}

func TestLoadWithFileRejectsPathOutsideAllowedDirs(t *testing.T) {
	clearMatricEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(""), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadWithFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "must be in") {
		t.Fatalf("expected path validation error, got: %v", err)
	}
}

func TestLoadWithFileRejectsWorldReadablePermissions(t *testing.T) {
	clearMatricEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "matric")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadWithFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Fatalf("expected permission error, got: %v", err)
	}
}

func TestLoadWithFileRejectsOversizedFile(t *testing.T) {
	clearMatricEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "matric")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(configDir, "config.toml")
	big := strings.Repeat("a", maxConfigFileSize+1)
	if err := os.WriteFile(configPath, []byte("x = \""+big+"\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadWithFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got: %v", err)
	}
}

func TestLoadWithFileMissingFileUsesDefaults(t *testing.T) {
	clearMatricEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, ".config", "matric", "nonexistent.toml")
	cfg, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.Archive.Default != "public" {
		t.Errorf("Archive.Default = %q, want public", cfg.Archive.Default)
	}
}
