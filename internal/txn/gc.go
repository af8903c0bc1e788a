package txn

import "time"

// IdleReaper periodically logs (and, for leaked transactions, force-closes)
// read snapshots open past Config.ReadTxIdleTimeout so a forgotten ReadTx
// doesn't pin the GC watermark forever (spec section 4.4, 9).
type IdleReaper struct {
	mgr    *Manager
	ticker *time.Ticker
	stop   chan struct{}
}

// StartIdleReaper launches the background reaper. Call Stop to shut it
// down; it is safe to never start one (idle readers simply pin GC until
// explicitly closed).
func (m *Manager) StartIdleReaper(interval time.Duration) *IdleReaper {
	r := &IdleReaper{mgr: m, ticker: time.NewTicker(interval), stop: make(chan struct{})}
	go r.run()
	return r
}

func (r *IdleReaper) run() {
	for {
		select {
		case <-r.ticker.C:
			r.sweep()
		case <-r.stop:
			r.ticker.Stop()
			return
		}
	}
}

func (r *IdleReaper) sweep() {
	if r.mgr.cfg.ReadTxIdleTimeout <= 0 {
		return
	}

	var stale []*ReadTx
	r.mgr.mu.Lock()
	for _, tx := range r.mgr.activeReaders {
		if tx.idleDuration() > r.mgr.cfg.ReadTxIdleTimeout {
			stale = append(stale, tx)
		}
	}
	r.mgr.mu.Unlock()

	for _, tx := range stale {
		r.mgr.log.Warn().
			Uint64("tx_id", tx.id).
			Uint64("snapshot", tx.snapshot).
			Dur("idle", tx.idleDuration()).
			Msg("closing read transaction idle past timeout")
		_ = tx.Close()
	}
}

func (r *IdleReaper) Stop() {
	close(r.stop)
}
