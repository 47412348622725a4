package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearMatricEnv(t)
	cfg := Load()

	if cfg.Archive.Default != "public" {
		t.Errorf("Archive.Default = %q, want %q", cfg.Archive.Default, "public")
	}
	if cfg.Search.RRFK != 60 {
		t.Errorf("Search.RRFK = %d, want 60", cfg.Search.RRFK)
	}
	if cfg.Search.SemanticThreshold != 0.7 {
		t.Errorf("Search.SemanticThreshold = %f, want 0.7", cfg.Search.SemanticThreshold)
	}
	if cfg.Jobs.Workers != 4 {
		t.Errorf("Jobs.Workers = %d, want 4", cfg.Jobs.Workers)
	}
	if cfg.Jobs.DefaultMaxRetries != 3 {
		t.Errorf("Jobs.DefaultMaxRetries = %d, want 3", cfg.Jobs.DefaultMaxRetries)
	}
	if cfg.FTS.MinSemanticSimilarityNoFTS != 0.55 {
		t.Errorf("FTS.MinSemanticSimilarityNoFTS = %f, want 0.55", cfg.FTS.MinSemanticSimilarityNoFTS)
	}
	if cfg.KDF.MemoryKiB != 65536 || cfg.KDF.Iterations != 3 || cfg.KDF.Parallelism != 4 {
		t.Errorf("unexpected KDF defaults: %+v", cfg.KDF)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	clearMatricEnv(t)
	t.Setenv("MATRIC_SEARCH__RRF_K", "30")
	t.Setenv("MATRIC_ARCHIVE__DEFAULT", "public")
	t.Setenv("MATRIC_JOBS__WORKERS", "8")

	cfg := Load()
	if cfg.Search.RRFK != 30 {
		t.Errorf("Search.RRFK = %d, want 30", cfg.Search.RRFK)
	}
	if cfg.Jobs.Workers != 8 {
		t.Errorf("Jobs.Workers = %d, want 8", cfg.Jobs.Workers)
	}
}

func TestValidateRejectsDefaultArchiveName(t *testing.T) {
	clearMatricEnv(t)
	cfg := Load()
	cfg.Archive.Default = "default"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for archive.default = \"default\"")
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	clearMatricEnv(t)
	cfg := Load()
	cfg.Inference.EmbeddingBackend = "telepathic"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown embedding backend")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	clearMatricEnv(t)
	cfg := Load()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid port")
	}
}

func clearMatricEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		if len(e) > 7 && e[:7] == "MATRIC_" {
			key := e[:indexOf(e, '=')]
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return len(s)
}
