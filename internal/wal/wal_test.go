package wal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func txFrames(txID, epoch uint64, mutations ...Frame) []Frame {
	frames := make([]Frame, 0, len(mutations)+2)
	frames = append(frames, Frame{Type: EntryBegin, TxID: txID, Epoch: epoch})
	frames = append(frames, mutations...)
	frames = append(frames, Frame{Type: EntryCommit, TxID: txID, Epoch: epoch})
	return frames
}

func TestAppendAndRecoverCommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Config{Mode: ModeSync})
	require.NoError(t, err)

	mutation := Frame{
		Type:    EntryNodeCreate,
		TxID:    1,
		Epoch:   5,
		Payload: NodeIDPayload{NodeID: 42}.encode(),
	}
	require.NoError(t, w.AppendTransaction(context.Background(), txFrames(1, 5, mutation)))
	require.NoError(t, w.Close())

	result, err := Recover(dir)
	require.NoError(t, err)
	require.Equal(t, int64(-1), result.TruncatedAt)
	require.Len(t, result.Committed, 1)
	require.Equal(t, uint64(1), result.Committed[0].TxID)
	require.Len(t, result.Committed[0].Frames, 1)
	require.Equal(t, uint64(42), decodeNodeIDPayload(result.Committed[0].Frames[0].Payload).NodeID)
}

func TestAbortedTransactionIsNotReplayed(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Config{Mode: ModeSync})
	require.NoError(t, err)

	frames := []Frame{
		{Type: EntryBegin, TxID: 2, Epoch: 1},
		{Type: EntryNodeCreate, TxID: 2, Epoch: 1, Payload: NodeIDPayload{NodeID: 7}.encode()},
		{Type: EntryAbort, TxID: 2, Epoch: 1},
	}
	require.NoError(t, w.AppendTransaction(context.Background(), frames))
	require.NoError(t, w.Close())

	result, err := Recover(dir)
	require.NoError(t, err)
	require.Empty(t, result.Committed)
}

func TestIncompleteTransactionIsDiscardedAtCrashPoint(t *testing.T) {
	dir := t.TempDir()

	// Never commits - simulates a crash mid-transaction.
	frames := []Frame{
		{Type: EntryBegin, TxID: 3, Epoch: 1},
		{Type: EntryNodeCreate, TxID: 3, Epoch: 1, Payload: NodeIDPayload{NodeID: 9}.encode()},
	}
	var buf []byte
	for _, f := range frames {
		buf = append(buf, f.encode()...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, segmentFileName), buf, 0o644))

	result, err := Recover(dir)
	require.NoError(t, err)
	require.Empty(t, result.Committed)
}

func TestCorruptFrameTruncatesForwardScan(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Config{Mode: ModeSync})
	require.NoError(t, err)

	mutation := Frame{Type: EntryNodeCreate, TxID: 1, Epoch: 1, Payload: NodeIDPayload{NodeID: 1}.encode()}
	require.NoError(t, w.AppendTransaction(context.Background(), txFrames(1, 1, mutation)))
	require.NoError(t, w.Close())

	goodLen, err := fileLen(filepath.Join(dir, segmentFileName))
	require.NoError(t, err)

	// Append a second, intact transaction, then corrupt its CRC tail byte.
	w2, err := Open(dir, Config{Mode: ModeSync})
	require.NoError(t, err)
	mutation2 := Frame{Type: EntryNodeCreate, TxID: 2, Epoch: 2, Payload: NodeIDPayload{NodeID: 2}.encode()}
	require.NoError(t, w2.AppendTransaction(context.Background(), txFrames(2, 2, mutation2)))
	require.NoError(t, w2.Close())

	path := filepath.Join(dir, segmentFileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	result, err := Recover(dir)
	require.NoError(t, err)
	require.Len(t, result.Committed, 1)
	require.Equal(t, uint64(1), result.Committed[0].TxID)
	require.Greater(t, result.TruncatedAt, goodLen)

	require.NoError(t, TruncateCorruptTail(dir, result.TruncatedAt))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, result.TruncatedAt, info.Size())
}

func TestGroupCommitBatchesAndReleasesAllWaiters(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Config{Mode: ModeGroupCommit, GroupCommitBatch: 4, GroupCommitWindow: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	errs := make(chan error, 4)
	for i := uint64(1); i <= 4; i++ {
		go func(txID uint64) {
			mutation := Frame{Type: EntryNodeCreate, TxID: txID, Epoch: txID, Payload: NodeIDPayload{NodeID: txID}.encode()}
			errs <- w.AppendTransaction(context.Background(), txFrames(txID, txID, mutation))
		}(i)
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}

	result, err := Recover(dir)
	require.NoError(t, err)
	require.Len(t, result.Committed, 4)
}

func TestGroupCommitFlushesOnWindowTimeout(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Config{Mode: ModeGroupCommit, GroupCommitBatch: 100, GroupCommitWindow: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	mutation := Frame{Type: EntryNodeCreate, TxID: 1, Epoch: 1, Payload: NodeIDPayload{NodeID: 1}.encode()}
	require.NoError(t, w.AppendTransaction(context.Background(), txFrames(1, 1, mutation)))

	result, err := Recover(dir)
	require.NoError(t, err)
	require.Len(t, result.Committed, 1)
}

func TestCheckpointMarkerRoundtrip(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, Config{Mode: ModeSync})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Checkpoint(123))

	epoch, err := ReadCheckpoint(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(123), epoch)
}

func TestReadCheckpointMissingReturnsZero(t *testing.T) {
	epoch, err := ReadCheckpoint(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, uint64(0), epoch)
}

func fileLen(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
