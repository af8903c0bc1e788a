package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesSpec(t *testing.T) {
	cfg := Default()
	if cfg.GroupCommitBatch != 100 {
		t.Errorf("GroupCommitBatch = %d, want 100", cfg.GroupCommitBatch)
	}
	if cfg.GroupCommitWindow != 10*time.Millisecond {
		t.Errorf("GroupCommitWindow = %v, want 10ms", cfg.GroupCommitWindow)
	}
	if cfg.ReadTxIdleTimeout != 5*time.Minute {
		t.Errorf("ReadTxIdleTimeout = %v, want 5m", cfg.ReadTxIdleTimeout)
	}
	if cfg.PlanCacheCapacity != 1000 || cfg.PlanCacheTTL != 5*time.Minute {
		t.Errorf("plan cache defaults wrong: %d %v", cfg.PlanCacheCapacity, cfg.PlanCacheTTL)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GroupCommitBatch != Default().GroupCommitBatch {
		t.Fatal("expected defaults when config file is absent")
	}
}

func TestLoadJSONCWithComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphdb.jsonc")
	content := `{
		// override batch size
		"group_commit_batch": 50,
		"dir": "` + dir + `",
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GroupCommitBatch != 50 {
		t.Errorf("GroupCommitBatch = %d, want 50", cfg.GroupCommitBatch)
	}
	if cfg.Dir != dir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, dir)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonc")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestValidateRejectsEmptyDir(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for empty Dir")
	}
}

func TestValidateRejectsBadPageSize(t *testing.T) {
	cfg := Default()
	cfg.Dir = "/tmp/x"
	cfg.PageSize = 100
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-512-aligned page size")
	}
}
