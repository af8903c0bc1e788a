package txn

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeEpochSource struct {
	mu    sync.Mutex
	epoch uint64
}

func (f *fakeEpochSource) Epoch(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch, nil
}

func (f *fakeEpochSource) SetEpoch(ctx context.Context, epoch uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch = epoch
	return nil
}

func TestBeginReadPinsCurrentEpoch(t *testing.T) {
	ctx := context.Background()
	src := &fakeEpochSource{epoch: 5}
	mgr, err := Open(ctx, src, Config{})
	require.NoError(t, err)

	r := mgr.BeginRead()
	require.Equal(t, uint64(5), r.Snapshot())
	require.NoError(t, r.Close())
}

func TestCommitAdvancesEpochAndReleasesLock(t *testing.T) {
	ctx := context.Background()
	src := &fakeEpochSource{epoch: 0}
	mgr, err := Open(ctx, src, Config{})
	require.NoError(t, err)

	w, err := mgr.BeginWrite(ctx)
	require.NoError(t, err)
	newEpoch, err := w.Commit(ctx, src)
	require.NoError(t, err)
	require.Equal(t, uint64(1), newEpoch)
	require.Equal(t, uint64(1), mgr.CurrentEpoch())

	// Lock released: a second write should succeed without blocking.
	w2, err := mgr.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, w2.Abort())
}

func TestWritersAreSerialized(t *testing.T) {
	ctx := context.Background()
	src := &fakeEpochSource{epoch: 0}
	mgr, err := Open(ctx, src, Config{})
	require.NoError(t, err)

	w1, err := mgr.BeginWrite(ctx)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		w2, err := mgr.BeginWrite(ctx)
		require.NoError(t, err)
		close(acquired)
		require.NoError(t, w2.Abort())
	}()

	select {
	case <-acquired:
		t.Fatal("second writer acquired the lock while the first still holds it")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, w1.Abort())
	<-acquired
}

func TestBeginWriteTimesOut(t *testing.T) {
	ctx := context.Background()
	src := &fakeEpochSource{epoch: 0}
	mgr, err := Open(ctx, src, Config{WriteLockTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	w1, err := mgr.BeginWrite(ctx)
	require.NoError(t, err)
	defer func() { _ = w1.Abort() }()

	_, err = mgr.BeginWrite(ctx)
	require.Error(t, err)
}

func TestMinActiveSnapshotTracksOldestReader(t *testing.T) {
	ctx := context.Background()
	src := &fakeEpochSource{epoch: 0}
	mgr, err := Open(ctx, src, Config{})
	require.NoError(t, err)

	r1 := mgr.BeginRead()

	w, err := mgr.BeginWrite(ctx)
	require.NoError(t, err)
	_, err = w.Commit(ctx, src)
	require.NoError(t, err)

	require.Equal(t, uint64(0), mgr.MinActiveSnapshot())
	require.NoError(t, r1.Close())
	require.Equal(t, uint64(1), mgr.MinActiveSnapshot())
}

func TestIdleReaperClosesStaleReaders(t *testing.T) {
	ctx := context.Background()
	src := &fakeEpochSource{epoch: 0}
	mgr, err := Open(ctx, src, Config{ReadTxIdleTimeout: 10 * time.Millisecond})
	require.NoError(t, err)

	mgr.BeginRead()
	require.Equal(t, 1, mgr.ActiveReaderCount())

	reaper := mgr.StartIdleReaper(5 * time.Millisecond)
	defer reaper.Stop()

	require.Eventually(t, func() bool {
		return mgr.ActiveReaderCount() == 0
	}, time.Second, 5*time.Millisecond)
}
