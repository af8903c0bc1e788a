package wal

import (
	"fmt"
	"os"
	"path/filepath"
)

// Transaction is one replayable, committed transaction recovered from the
// log: every frame between its BEGIN and COMMIT, in order, with the
// control markers stripped.
type Transaction struct {
	TxID   uint64
	Epoch  uint64
	Frames []Frame
}

// RecoveryResult is the outcome of a forward scan over the WAL segment.
type RecoveryResult struct {
	Committed    []Transaction
	TruncatedAt  int64 // byte offset where a corrupt/partial frame was found, or -1
	DurableEpoch uint64
}

// Recover performs the forward-scan replay described in spec section
// 4.3: read frames from the start of the segment, group by transaction,
// replay only transactions that reached a COMMIT frame, and discard
// everything from the first corrupt or incomplete frame onward (it is
// presumed to be a torn write from a crash mid-append).
func Recover(dir string) (RecoveryResult, error) {
	path := filepath.Join(dir, segmentFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RecoveryResult{TruncatedAt: -1}, nil
		}
		return RecoveryResult{}, fmt.Errorf("read wal: %w", err)
	}

	open := make(map[uint64][]Frame)
	var committed []Transaction
	var durableEpoch uint64

	offset := 0
	truncateAt := int64(-1)

scan:
	for offset < len(data) {
		if err := validateHeader(data[offset:], maxFrameSize); err != nil {
			truncateAt = int64(offset)
			break scan
		}

		frame, consumed, ok := decodeFrame(data[offset:])
		if !ok {
			truncateAt = int64(offset)
			break scan
		}

		switch frame.Type {
		case EntryBegin:
			open[frame.TxID] = []Frame{}
		case EntryCommit:
			txFrames := open[frame.TxID]
			delete(open, frame.TxID)
			committed = append(committed, Transaction{TxID: frame.TxID, Epoch: frame.Epoch, Frames: txFrames})
		case EntryAbort:
			delete(open, frame.TxID)
		case EntryCheckpoint:
			cp := decodeCheckpointPayload(frame.Payload)
			durableEpoch = cp.DurableEpoch
		default:
			if _, ok := open[frame.TxID]; ok {
				open[frame.TxID] = append(open[frame.TxID], frame)
			}
			// A mutation frame with no open BEGIN (frames are never
			// written outside a transaction) is dropped, and the scan
			// goes on with the next frame.
		}

		offset += consumed
	}

	return RecoveryResult{Committed: committed, TruncatedAt: truncateAt, DurableEpoch: durableEpoch}, nil
}

// TruncateCorruptTail discards everything in the segment from offset
// onward, called after Recover reports a TruncatedAt >= 0 so the log is
// left clean for future appends.
func TruncateCorruptTail(dir string, offset int64) error {
	path := filepath.Join(dir, segmentFileName)
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open wal for truncation: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Truncate(offset); err != nil {
		return fmt.Errorf("truncate corrupt wal tail: %w", err)
	}
	return f.Sync()
}
