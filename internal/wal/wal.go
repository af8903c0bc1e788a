package wal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"

	"github.com/graphdb-core/graphdb/internal/errs"
	"github.com/graphdb-core/graphdb/internal/log"
)

// segmentFileName is the active WAL segment within a database directory.
const segmentFileName = "wal.log"

// checkpointFileName is the atomically-replaced marker recording the
// last checkpointed durable epoch (spec section 4.3).
const checkpointFileName = "checkpoint.json"

const maxFrameSize = 64 << 20 // 64 MiB: a gross sanity bound for recovery, not a hard limit on real payloads.

// Mode selects how commits are made durable.
type Mode uint8

const (
	// ModeSync fsyncs after every commit (spec section 4.3 default).
	ModeSync Mode = iota
	// ModeGroupCommit batches commits and fsyncs once per batch/window
	// (spec section 4.3, 9): higher throughput, bounded extra latency.
	ModeGroupCommit
)

// Config controls durability behavior.
type Config struct {
	Mode              Mode
	GroupCommitBatch  int
	GroupCommitWindow time.Duration
}

// commitWaiter is queued by a group-commit caller and released once its
// batch has been fsynced.
type commitWaiter struct {
	done chan error
}

// WAL is the append-only, crash-recoverable write-ahead log. All
// mutations within a transaction are buffered in memory and appended as
// one batch of frames when the transaction commits; readers never see a
// transaction's frames until its COMMIT frame is durable.
type WAL struct {
	cfg Config
	mu  sync.Mutex

	f        *os.File
	dir      string
	pending  []byte
	waiters  []commitWaiter
	flushing bool

	timer *time.Timer
	log   zerolog.Logger
}

// Open opens (or creates) the WAL segment in dir.
func Open(dir string, cfg Config) (*WAL, error) {
	if cfg.GroupCommitBatch <= 0 {
		cfg.GroupCommitBatch = 100
	}
	if cfg.GroupCommitWindow <= 0 {
		cfg.GroupCommitWindow = 10 * time.Millisecond
	}

	path := filepath.Join(dir, segmentFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	return &WAL{cfg: cfg, f: f, dir: dir, log: log.Component("wal")}, nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.f.Close()
}

// AppendTransaction durably appends a full transaction's frames (a BEGIN,
// the mutation frames, and a COMMIT or ABORT) as a single unit. Under
// ModeSync it fsyncs before returning; under ModeGroupCommit it joins the
// current batch and blocks until that batch's shared fsync completes.
func (w *WAL) AppendTransaction(ctx context.Context, frames []Frame) error {
	var buf bytes.Buffer
	for _, fr := range frames {
		buf.Write(fr.encode())
	}

	switch w.cfg.Mode {
	case ModeGroupCommit:
		return w.appendGrouped(buf.Bytes())
	default:
		return w.appendSync(buf.Bytes())
	}
}

// QueueDepth reports the number of group-commit waiters currently queued
// for the next shared fsync, used by stats() (spec section 6:
// "wal_queue_depth"). Always zero under ModeSync, where every caller
// fsyncs synchronously.
func (w *WAL) QueueDepth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiters)
}

func (w *WAL) appendSync(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Write(b); err != nil {
		return fmt.Errorf("write wal: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: fsync wal: %w", errs.ErrDurabilityFailed, err)
	}
	return nil
}

func (w *WAL) appendGrouped(b []byte) error {
	w.mu.Lock()
	waiter := commitWaiter{done: make(chan error, 1)}
	w.pending = append(w.pending, b...)
	w.waiters = append(w.waiters, waiter)

	shouldFlushNow := len(w.waiters) >= w.cfg.GroupCommitBatch
	if shouldFlushNow {
		w.flushLocked()
		w.mu.Unlock()
	} else {
		if w.timer == nil {
			w.timer = time.AfterFunc(w.cfg.GroupCommitWindow, w.flushOnTimer)
		}
		w.mu.Unlock()
	}

	return <-waiter.done
}

func (w *WAL) flushOnTimer() {
	w.mu.Lock()
	w.flushLocked()
	w.mu.Unlock()
}

// flushLocked writes the pending batch and fsyncs, releasing every
// queued waiter with the outcome. Caller must hold w.mu; it is released
// internally around the actual I/O is not required since WAL access is
// already serialized by the engine's single-writer lock (spec section
// 4.2) - only the batching queue itself needs this mutex.
func (w *WAL) flushLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.pending) == 0 {
		return
	}

	batch := w.pending
	waiters := w.waiters
	w.pending = nil
	w.waiters = nil

	_, writeErr := w.f.Write(batch)
	var err error
	if writeErr != nil {
		err = fmt.Errorf("write wal batch: %w", writeErr)
	} else if syncErr := w.f.Sync(); syncErr != nil {
		err = fmt.Errorf("%w: fsync wal batch: %w", errs.ErrDurabilityFailed, syncErr)
	}
	if err != nil {
		w.log.Error().Err(err).Int("waiters", len(waiters)).Msg("group commit flush failed")
	}

	for _, waiter := range waiters {
		waiter.done <- err
	}
}

// Checkpoint records durableEpoch as the point below which WAL frames are
// no longer needed for recovery, replacing checkpoint.json atomically
// (grounded on the teacher's use of natefinch/atomic for crash-safe
// config/index replacement, e.g. internal/fs/real.go).
func (w *WAL) Checkpoint(durableEpoch uint64) error {
	body := fmt.Sprintf(`{"durable_epoch":%d}`, durableEpoch)
	path := filepath.Join(w.dir, checkpointFileName)
	if err := atomic.WriteFile(path, bytes.NewReader([]byte(body))); err != nil {
		return fmt.Errorf("write checkpoint marker: %w", err)
	}
	return nil
}

// Truncate discards all frames (used once a checkpoint plus segment
// archival has made them redundant).
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	if _, err := w.f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek wal: %w", err)
	}
	return nil
}
