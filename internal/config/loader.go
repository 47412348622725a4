// Package config provides configuration loading for the core engine.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// LoadWithFile loads configuration from a TOML file, then overrides with
// environment variables.
//
// # Security Considerations
//
// File Permissions: the config file MUST have 0600 or 0400 permissions.
// Files with weaker permissions (e.g. 0644 world-readable) are rejected,
// since the file may carry StorageConfig.DatabaseURL credentials.
//
// Path Validation: only configuration files under ~/.config/matric/ or
// /etc/matric/ may be loaded; absolute paths outside those directories are
// rejected to prevent path traversal.
//
// File Size Limit: files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// Variables use the MATRIC_ prefix; a double underscore separates the
// section from the field name (both already snake_case):
//
//	MATRIC_STORAGE__DATABASE_URL -> storage.database_url
//	MATRIC_SEARCH__RRF_K         -> search.rrf_k
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "matric", "config.toml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("MATRIC_", ".", envKeyToPath), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeyToPath maps MATRIC_SECTION__FIELD_NAME to section.field_name.
func envKeyToPath(s string) string {
	trimmed := strings.TrimPrefix(s, "MATRIC_")
	lower := strings.ToLower(trimmed)
	parts := strings.SplitN(lower, "__", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// EnsureConfigDir creates the config directory if it doesn't exist, with
// 0700 permissions (owner read/write/execute only).
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "matric")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks if path is in an allowed directory, even if the
// file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "matric"),
		"/etc/matric",
	}

	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/matric/ or /etc/matric/")
}

// validateConfigFileProperties checks file permissions and size from an
// already-opened file descriptor, to avoid a TOCTOU race against a second
// stat call.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for fields a TOML file or environment
// left unset (zero value).
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "matric-core"
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = "dev"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.TraceSamplingRatio == 0 {
		cfg.Observability.TraceSamplingRatio = 1.0
	}
	if cfg.Observability.MetricsExportInterval == 0 {
		cfg.Observability.MetricsExportInterval = 15 * time.Second
	}
	if cfg.Observability.ShutdownTimeout == 0 {
		cfg.Observability.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Inference.EmbeddingBackend == "" {
		cfg.Inference.EmbeddingBackend = "local"
	}
	if cfg.Inference.GenerationBackend == "" {
		cfg.Inference.GenerationBackend = "local"
	}
	if cfg.Inference.BaseURL == "" {
		cfg.Inference.BaseURL = "http://localhost:8080"
	}
	if cfg.Search.RRFK == 0 {
		cfg.Search.RRFK = 60
	}
	if cfg.Search.SemanticThreshold == 0 {
		cfg.Search.SemanticThreshold = 0.7
	}
	if cfg.Jobs.Workers == 0 {
		cfg.Jobs.Workers = 4
	}
	if cfg.Jobs.DefaultMaxRetries == 0 {
		cfg.Jobs.DefaultMaxRetries = 3
	}
	if cfg.Archive.Default == "" {
		cfg.Archive.Default = "public"
	}
	if cfg.FTS.MinSemanticSimilarityNoFTS == 0 {
		cfg.FTS.MinSemanticSimilarityNoFTS = 0.55
	}
	if cfg.KDF.MemoryKiB == 0 {
		cfg.KDF.MemoryKiB = 65536
	}
	if cfg.KDF.Iterations == 0 {
		cfg.KDF.Iterations = 3
	}
	if cfg.KDF.Parallelism == 0 {
		cfg.KDF.Parallelism = 4
	}
}
