// Package config loads engine configuration, layering an optional JSONC
// config file (parsed permissively via hujson, following the teacher's
// config.go pattern) under hard defaults and explicit Options overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

var (
	ErrConfigFileRead = errors.New("cannot read config file")
	ErrConfigInvalid  = errors.New("invalid config file")
	ErrDirEmpty       = errors.New("directory cannot be empty")
)

// Config holds every tunable named in spec.md (group-commit batching,
// transaction timeouts, plan cache sizing) plus the database directory.
type Config struct {
	Dir string `json:"dir"`

	// WAL group-commit tuning (section 4.3).
	GroupCommit       bool          `json:"group_commit"`
	GroupCommitBatch  int           `json:"group_commit_batch"`
	GroupCommitWindow time.Duration `json:"group_commit_window"`

	// Transaction manager tuning (section 4.4).
	ReadTxIdleTimeout  time.Duration `json:"read_tx_idle_timeout"`
	WriteTxWarnAfter   time.Duration `json:"write_tx_warn_after"`
	WriteLockTimeout   time.Duration `json:"write_lock_timeout"`

	// Planner tuning (section 4.6).
	PlanCacheCapacity int           `json:"plan_cache_capacity"`
	PlanCacheTTL      time.Duration `json:"plan_cache_ttl"`

	// Record store tuning (section 4.2).
	PageSize      int `json:"page_size"`
	InitialSlots  int `json:"initial_slots"`

	// Logging.
	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`
}

// Default returns the spec-mandated defaults: batch size 100, window
// 10ms, reader idle timeout 5 minutes, writer long-hold warning 30s,
// plan cache capacity 1000 with a 5 minute TTL.
func Default() Config {
	return Config{
		GroupCommit:       true,
		GroupCommitBatch:  100,
		GroupCommitWindow: 10 * time.Millisecond,

		ReadTxIdleTimeout: 5 * time.Minute,
		WriteTxWarnAfter:  30 * time.Second,
		WriteLockTimeout:  0, // 0 = block indefinitely

		PlanCacheCapacity: 1000,
		PlanCacheTTL:      5 * time.Minute,

		PageSize:     4096,
		InitialSlots: 1024,

		LogLevel: "info",
		LogJSON:  false,
	}
}

// Load reads an optional JSONC config file at path and merges it over the
// defaults. A missing file is not an error; Load simply returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	var overrides fileOverrides
	if err := json.Unmarshal(std, &overrides); err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	cfg = merge(cfg, overrides)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileOverrides mirrors Config but with pointer/zero-value-safe fields so
// a config file can distinguish "not set" from "set to the zero value"
// (notably for GroupCommit, which must be overridable to false).
type fileOverrides struct {
	Dir               string         `json:"dir"`
	GroupCommit       *bool          `json:"group_commit"`
	GroupCommitBatch  int            `json:"group_commit_batch"`
	GroupCommitWindow time.Duration  `json:"group_commit_window"`
	ReadTxIdleTimeout time.Duration  `json:"read_tx_idle_timeout"`
	WriteTxWarnAfter  time.Duration  `json:"write_tx_warn_after"`
	WriteLockTimeout  time.Duration  `json:"write_lock_timeout"`
	PlanCacheCapacity int            `json:"plan_cache_capacity"`
	PlanCacheTTL      time.Duration  `json:"plan_cache_ttl"`
	PageSize          int            `json:"page_size"`
	InitialSlots      int            `json:"initial_slots"`
	LogLevel          string         `json:"log_level"`
	LogJSON           bool           `json:"log_json"`
}

// merge overlays set fields of b onto a.
func merge(a Config, b fileOverrides) Config {
	if b.Dir != "" {
		a.Dir = b.Dir
	}
	if b.GroupCommit != nil {
		a.GroupCommit = *b.GroupCommit
	}
	if b.GroupCommitBatch != 0 {
		a.GroupCommitBatch = b.GroupCommitBatch
	}
	if b.GroupCommitWindow != 0 {
		a.GroupCommitWindow = b.GroupCommitWindow
	}
	if b.ReadTxIdleTimeout != 0 {
		a.ReadTxIdleTimeout = b.ReadTxIdleTimeout
	}
	if b.WriteTxWarnAfter != 0 {
		a.WriteTxWarnAfter = b.WriteTxWarnAfter
	}
	if b.WriteLockTimeout != 0 {
		a.WriteLockTimeout = b.WriteLockTimeout
	}
	if b.PlanCacheCapacity != 0 {
		a.PlanCacheCapacity = b.PlanCacheCapacity
	}
	if b.PlanCacheTTL != 0 {
		a.PlanCacheTTL = b.PlanCacheTTL
	}
	if b.PageSize != 0 {
		a.PageSize = b.PageSize
	}
	if b.InitialSlots != 0 {
		a.InitialSlots = b.InitialSlots
	}
	if b.LogLevel != "" {
		a.LogLevel = b.LogLevel
	}
	a.LogJSON = a.LogJSON || b.LogJSON
	return a
}

// Validate checks invariants that must hold before Open proceeds.
func Validate(c Config) error {
	if c.Dir == "" {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, ErrDirEmpty)
	}
	if c.GroupCommitBatch <= 0 {
		return fmt.Errorf("%w: group_commit_batch must be positive", ErrConfigInvalid)
	}
	if c.PageSize <= 0 || c.PageSize%512 != 0 {
		return fmt.Errorf("%w: page_size must be a positive multiple of 512", ErrConfigInvalid)
	}
	return nil
}
