// Package engine wires components C1-C6 into the single embeddable
// entry point described by spec section 6's Engine API surface: opening
// a database directory, recovering the WAL, and exposing execute/begin/
// commit/abort/create_index/stats to a front-end the module does not
// itself provide (HTTP/GraphQL/GUI are explicit non-goals).
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/graphdb-core/graphdb/internal/catalog"
	"github.com/graphdb-core/graphdb/internal/config"
	"github.com/graphdb-core/graphdb/internal/index"
	"github.com/graphdb-core/graphdb/internal/log"
	"github.com/graphdb-core/graphdb/internal/metrics"
	"github.com/graphdb-core/graphdb/internal/plan"
	"github.com/graphdb-core/graphdb/internal/store"
	"github.com/graphdb-core/graphdb/internal/txn"
	"github.com/graphdb-core/graphdb/internal/wal"
)

// Engine is one open graph database. A process may open more than one,
// each against its own directory.
type Engine struct {
	cfg config.Config
	log zerolog.Logger

	cat *catalog.Catalog
	wal *wal.WAL

	nodes   *store.NodeStore
	rels    *store.RelStore
	props   *store.PropStore
	strings *store.StringStore

	labels  *index.LabelIndex
	types   *index.TypeIndex
	adj     *index.AdjacencyCache
	propIdx *index.PropIndexSet

	txns    *txn.Manager
	reaper  *txn.IdleReaper
	planner *plan.Planner
	cache   *plan.Cache

	metrics *metrics.Collectors
}

// Open opens (or creates) a database at cfg.Dir: runs WAL recovery,
// opens the record stores and catalog, rebuilds every in-memory index by
// scanning the now-caught-up stores, and starts the transaction manager
// and idle-reader reaper.
func Open(ctx context.Context, cfg config.Config) (*Engine, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	log.Init(log.Config{Level: parseLevel(cfg.LogLevel), JSONOutput: cfg.LogJSON})
	lg := log.Component("engine")

	cat, err := catalog.Open(ctx, filepath.Join(cfg.Dir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	instanceID, err := cat.InstanceID(ctx)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("read instance id: %w", err)
	}
	lg.Info().Str("instance_id", instanceID).Str("dir", cfg.Dir).Msg("opening database")

	recovery, err := wal.Recover(cfg.Dir)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("recover wal: %w", err)
	}
	if recovery.TruncatedAt >= 0 {
		lg.Warn().Int64("offset", recovery.TruncatedAt).Msg("discarding torn wal tail from unclean shutdown")
		if err := wal.TruncateCorruptTail(cfg.Dir, recovery.TruncatedAt); err != nil {
			_ = cat.Close()
			return nil, fmt.Errorf("truncate corrupt wal tail: %w", err)
		}
	}

	strs, err := store.OpenStringStore(cfg.Dir, cfg.PageSize)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open string store: %w", err)
	}
	nodes, err := store.OpenNodeStore(cfg.Dir, cfg.PageSize, cat)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open node store: %w", err)
	}
	rels, err := store.OpenRelStore(cfg.Dir, cfg.PageSize, cat)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open rel store: %w", err)
	}
	props, err := store.OpenPropStore(cfg.Dir, cfg.PageSize, strs)
	if err != nil {
		_ = cat.Close()
		return nil, fmt.Errorf("open prop store: %w", err)
	}

	if len(recovery.Committed) > 0 {
		lg.Info().Int("transactions", len(recovery.Committed)).Msg("replaying committed wal transactions")
		if err := replay(ctx, nodes, rels, props, recovery.Committed); err != nil {
			return nil, fmt.Errorf("replay wal: %w", err)
		}
	}

	labels := index.NewLabelIndex()
	types := index.NewTypeIndex()
	adj := index.NewAdjacencyCache(rels)
	propIdx := index.NewPropIndexSet()
	if err := rebuildIndexes(ctx, cat, nodes, rels, props, labels, types, propIdx); err != nil {
		return nil, fmt.Errorf("rebuild indexes: %w", err)
	}

	walMode := wal.ModeSync
	if cfg.GroupCommit {
		walMode = wal.ModeGroupCommit
	}
	w, err := wal.Open(cfg.Dir, wal.Config{
		Mode:              walMode,
		GroupCommitBatch:  cfg.GroupCommitBatch,
		GroupCommitWindow: cfg.GroupCommitWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	txns, err := txn.Open(ctx, cat, txn.Config{
		ReadTxIdleTimeout: cfg.ReadTxIdleTimeout,
		WriteTxWarnAfter:  cfg.WriteTxWarnAfter,
		WriteLockTimeout:  cfg.WriteLockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open transaction manager: %w", err)
	}

	cache := plan.NewCache(cfg.PlanCacheCapacity, cfg.PlanCacheTTL)
	planner := plan.NewPlanner(cat, labels, types, cache)

	e := &Engine{
		cfg:     cfg,
		log:     lg,
		cat:     cat,
		wal:     w,
		nodes:   nodes,
		rels:    rels,
		props:   props,
		strings: strs,
		labels:  labels,
		types:   types,
		adj:     adj,
		propIdx: propIdx,
		txns:    txns,
		planner: planner,
		cache:   cache,
		metrics: metrics.New(),
	}
	if cfg.ReadTxIdleTimeout > 0 {
		e.reaper = txns.StartIdleReaper(cfg.ReadTxIdleTimeout)
	}
	return e, nil
}

// Close stops background work and releases every open file handle.
func (e *Engine) Close() error {
	if e.reaper != nil {
		e.reaper.Stop()
	}
	var firstErr error
	for _, closeFn := range []func() error{e.wal.Close, e.nodes.Close, e.rels.Close, e.props.Close, e.strings.Close, e.cat.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
