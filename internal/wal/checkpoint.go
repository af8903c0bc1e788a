package wal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"
)

// checkpointMarker is the JSON body written atomically to
// checkpoint.json (spec section 4.3).
type checkpointMarker struct {
	DurableEpoch uint64 `json:"durable_epoch"`
}

// ReadCheckpoint returns the last durable epoch recorded by a prior
// checkpoint, or zero if none exists yet.
func ReadCheckpoint(dir string) (uint64, error) {
	path := filepath.Join(dir, checkpointFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint marker: %w", err)
	}
	var m checkpointMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("decode checkpoint marker: %w", err)
	}
	return m.DurableEpoch, nil
}

// ArchiveSegment compresses the current WAL segment with zstd and writes
// it alongside the live log, named by the checkpoint epoch it was sealed
// at. This lets operators retain WAL history for point-in-time diagnosis
// without keeping it in the hot, uncompressed append path (jpl-au-folio
// reaches for klauspost/compress for the same off-hot-path archival
// reason).
func (w *WAL) ArchiveSegment(durableEpoch uint64) (string, error) {
	w.mu.Lock()
	data, err := os.ReadFile(w.f.Name())
	w.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("read wal segment for archival: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", fmt.Errorf("init zstd encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()

	compressed := enc.EncodeAll(data, nil)

	name := fmt.Sprintf("wal-%020d-%d.zst", durableEpoch, time.Now().UnixNano())
	path := filepath.Join(w.dir, "archive", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create wal archive dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(compressed)); err != nil {
		return "", fmt.Errorf("write archived wal segment: %w", err)
	}
	return path, nil
}
