package exchange

import (
	"fmt"
	"math"
)

// Timelock windows from spec §4.3's formula: lock_time = current_height +
// ceil(window_seconds / block_time_seconds). A's window is wider than B's
// so A — the party who must reveal the secret to claim — always has more
// wall-clock time left to refund than B has to wait out B's own refund
// path (invariant 4).
const (
	aTimelockWindowSeconds = 7200.0
	bTimelockWindowSeconds = 3600.0

	// TimelockWindowASeconds and TimelockWindowBSeconds are exported so the
	// wallet/coordinator layer can derive the same relative CSV timeout it
	// encodes into each leg's HTLC redeem script, without re-deriving the
	// absolute heights SetLockTimes already computed.
	TimelockWindowASeconds = aTimelockWindowSeconds
	TimelockWindowBSeconds = bTimelockWindowSeconds
)

// SetLockTimes records the per-leg absolute block-height timelock
// deadlines for a transaction (spec §4.3), given each party's current
// chain height and block time. It is idempotent: once both lock times are
// non-zero, a later call is a no-op, so the ActionInitRequest handler can
// retry after a connector error without double-applying the formula.
func (s *Service) SetLockTimes(id SwapID, heightA, heightB uint32, blockTimeA, blockTimeB float64) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if tx.LockTimeA != 0 && tx.LockTimeB != 0 {
		return nil
	}

	tx.LockTimeA = heightA + blocksForWindow(aTimelockWindowSeconds, blockTimeA)
	tx.LockTimeB = heightB + blocksForWindow(bTimelockWindowSeconds, blockTimeB)
	tx.blockTimeA = blockTimeA
	tx.blockTimeB = blockTimeB
	return nil
}

// blocksForWindow converts a wall-clock window to a block count on a
// chain with the given average block time, rounding up so the deadline
// never falls short of the window.
func blocksForWindow(windowSeconds, blockTimeSeconds float64) uint32 {
	return BlocksForWindow(windowSeconds, blockTimeSeconds)
}

// BlocksForWindow is the exported form of the same rounding-up conversion,
// for callers outside the package (the coordinator layer's relative CSV
// timeout) that must agree with SetLockTimes on exactly how many blocks a
// window covers.
func BlocksForWindow(windowSeconds, blockTimeSeconds float64) uint32 {
	if blockTimeSeconds <= 0 {
		blockTimeSeconds = 600
	}
	return uint32(math.Ceil(windowSeconds / blockTimeSeconds))
}
