package exchange

import (
	"context"
	"time"
)

// BlockHeightProvider reports the current tip height for a currency's
// chain. Implemented by the wallet connector layer (spec §6:
// "current_block_height"). Fetching a height is network I/O and must
// never be called while a Service table lock is held.
type BlockHeightProvider interface {
	CurrentBlockHeight(ctx context.Context, currency string) (uint32, error)
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Heights  BlockHeightProvider
	Interval time.Duration // default 1s, per spec §5.
}

// Sweeper periodically expires stale pending orders, cancels transactions
// whose timelock has passed, and discards expired quarantine entries
// (spec §5). It fetches block heights before taking any Service lock, so
// a slow or unreachable connector never blocks order matching or message
// delivery.
type Sweeper struct {
	svc      *Service
	heights  BlockHeightProvider
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewSweeper constructs a Sweeper bound to svc. Call Start to run it.
func NewSweeper(svc *Service, cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	return &Sweeper{
		svc:      svc,
		heights:  cfg.Heights,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweeper loop in a new goroutine until Stop is called or
// ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	go sw.run(ctx)
}

// Stop halts the sweeper loop and blocks until it has exited.
func (sw *Sweeper) Stop() {
	close(sw.stop)
	<-sw.done
}

func (sw *Sweeper) run(ctx context.Context) {
	defer close(sw.done)
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.stop:
			return
		case <-ticker.C:
			sw.tick(ctx)
		}
	}
}

func (sw *Sweeper) tick(ctx context.Context) {
	sw.expirePending()
	sw.checkTimeouts(ctx)
	sw.svc.sweepQuarantine()
}

// expirePending removes pending orders whose Timeout has passed. Pure
// in-memory bookkeeping: no I/O, so it runs under the book lock directly.
func (sw *Sweeper) expirePending() {
	now := sw.svc.now()

	sw.svc.pendingMu.Lock()
	var expired []*Order
	for id, o := range sw.svc.pending {
		if now.After(o.Timeout) {
			expired = append(expired, o)
			delete(sw.svc.pending, id)
		}
	}
	sw.svc.pendingMu.Unlock()

	if len(expired) == 0 {
		return
	}

	sw.svc.knownSwapIDsMu.Lock()
	for _, o := range expired {
		delete(sw.svc.knownSwapIDs, o.ID)
	}
	sw.svc.knownSwapIDsMu.Unlock()

	for _, o := range expired {
		order := o
		sw.svc.bus.publish(func(ob Observer) { ob.PendingOrderExpired(order) })
	}
}

// activeSnapshot is a point-in-time view of one active transaction's
// timeout-relevant fields, taken under txMu and used to decide which
// transactions need a height check once we're back outside any lock.
type activeSnapshot struct {
	tx        *Transaction
	currencyA string
	currencyB string
}

// checkTimeouts fetches each involved chain's current height (outside any
// Service lock) and cancels transactions whose timelock has passed, per
// spec §5's prohibition on holding a lock across I/O. This intentionally
// diverges from a lock-then-fetch pattern: the height fetch always
// happens first, and only the short transition step re-acquires txMu.
func (sw *Sweeper) checkTimeouts(ctx context.Context) {
	if sw.heights == nil {
		return
	}

	snapshots := sw.snapshotActive()
	if len(snapshots) == 0 {
		return
	}

	heightCache := make(map[string]uint32)
	for _, snap := range snapshots {
		for _, currency := range []string{snap.currencyA, snap.currencyB} {
			if _, ok := heightCache[currency]; ok {
				continue
			}
			h, err := sw.heights.CurrentBlockHeight(ctx, currency)
			if err != nil {
				sw.svc.log.Warn("sweeper: failed to fetch block height", "currency", currency, "error", err)
				continue
			}
			heightCache[currency] = h
		}
	}

	for _, snap := range snapshots {
		heightA, okA := heightCache[snap.currencyA]
		heightB, okB := heightCache[snap.currencyB]
		if !okA || !okB {
			continue
		}
		if heightA >= snap.tx.LockTimeA || heightB >= snap.tx.LockTimeB {
			sw.svc.terminate(snap.tx, StateCancelled, ReasonTimelockExpired)
		}
	}
}

func (sw *Sweeper) snapshotActive() []activeSnapshot {
	sw.svc.txMu.Lock()
	defer sw.svc.txMu.Unlock()

	out := make([]activeSnapshot, 0, len(sw.svc.transactions))
	for _, tx := range sw.svc.transactions {
		if tx.State.IsTerminal() || tx.LockTimeA == 0 || tx.LockTimeB == 0 {
			continue
		}
		out = append(out, activeSnapshot{
			tx:        tx,
			currencyA: tx.AParty.Currency,
			currencyB: tx.BParty.Currency,
		})
	}
	return out
}
