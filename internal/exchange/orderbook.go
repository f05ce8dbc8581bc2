package exchange

import (
	"bytes"
	"fmt"
	"time"
)

// CreateResult is returned by Create and Accept.
type CreateResult struct {
	// PendingID is the id of the resulting pending order (unmatched case)
	// or of the transaction it was matched into (matched case). In the
	// matched case this is the id of the order that was already resting
	// in the book, not the id passed to this call — the call's own id is
	// still recorded for dedup, but the transaction is keyed by the
	// matched (maker) order's id, per the worked example in spec §8 S1.
	PendingID SwapID
	Created   bool
}

// Create submits a new half-swap order (spec §4.2). It never blocks on
// peer I/O: matching is pure in-memory bookkeeping, and any resulting
// outgoing message is queued for asynchronous delivery.
func (s *Service) Create(id SwapID, src, dst Party, timeout time.Time) (CreateResult, error) {
	return s.submitOrder(id, src, dst, timeout, false)
}

// Accept submits an order that must match an existing pending order
// (spec §4.2): it fails with ErrNoMatchingOrder rather than resting in
// the book when no counter-order exists.
func (s *Service) Accept(id SwapID, src, dst Party, timeout time.Time) (CreateResult, error) {
	return s.submitOrder(id, src, dst, timeout, true)
}

func (s *Service) submitOrder(id SwapID, src, dst Party, timeout time.Time, requireMatch bool) (CreateResult, error) {
	if src.Currency == dst.Currency {
		return CreateResult{}, fmt.Errorf("%w: source and dest currency must differ", ErrInvalidAmount)
	}
	if err := s.registry.validateAmount(src.Currency, src.Amount); err != nil {
		return CreateResult{}, err
	}
	if err := s.registry.validateAmount(dst.Currency, dst.Amount); err != nil {
		return CreateResult{}, err
	}

	// Lock order: known_swap_ids -> pending_transactions -> transactions.
	s.knownSwapIDsMu.Lock()
	defer s.knownSwapIDsMu.Unlock()

	if _, ok := s.knownSwapIDs[id]; ok {
		return CreateResult{}, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	order := &Order{
		ID:             id,
		SourceAddress:  src.Address,
		SourceCurrency: src.Currency,
		SourceAmount:   src.Amount,
		DestAddress:    dst.Address,
		DestCurrency:   dst.Currency,
		DestAmount:     dst.Amount,
		CreatedAt:      s.now(),
		Timeout:        timeout,
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	maker, ok := s.findMatchLocked(order)
	if !ok {
		if requireMatch {
			return CreateResult{}, ErrNoMatchingOrder
		}
		s.pending[id] = order
		s.knownSwapIDs[id] = struct{}{}
		s.bus.publish(func(o Observer) { o.PendingTransactionReceived(order) })
		return CreateResult{PendingID: id, Created: false}, nil
	}

	delete(s.pending, maker.ID)

	s.txMu.Lock()
	tx := s.newTransactionLocked(maker, order)
	s.txMu.Unlock()

	s.knownSwapIDs[id] = struct{}{}
	// maker.ID was already marked known when it was first created.

	s.bus.publish(func(o Observer) { o.TransactionStateChanged(tx.ID, tx.State) })
	s.drainQuarantine(tx)
	s.enqueueOutgoing(JoinOrderHold{ID: tx.ID})

	return CreateResult{PendingID: tx.ID, Created: true}, nil
}

// findMatchLocked searches the pending book for a counter-order to
// `order` (caller must hold pendingMu). Ties are broken by oldest
// created_at, then by lexicographically ascending order id.
func (s *Service) findMatchLocked(order *Order) (*Order, bool) {
	var best *Order
	for _, candidate := range s.pending {
		if !order.matches(candidate) {
			continue
		}
		if best == nil {
			best = candidate
			continue
		}
		if candidate.CreatedAt.Before(best.CreatedAt) {
			best = candidate
			continue
		}
		if candidate.CreatedAt.Equal(best.CreatedAt) && bytes.Compare(candidate.ID[:], best.ID[:]) < 0 {
			best = candidate
		}
	}
	return best, best != nil
}

// newTransactionLocked synthesizes a Transaction from a matched pair
// (caller must hold txMu). The maker's pending order becomes the A party
// and keeps its id as the transaction id; the new order becomes the B
// party.
func (s *Service) newTransactionLocked(maker, taker *Order) *Transaction {
	now := s.now()
	tx := &Transaction{
		ID: maker.ID,
		AParty: Party{
			Address:  maker.SourceAddress,
			Currency: maker.SourceCurrency,
			Amount:   maker.SourceAmount,
		},
		BParty: Party{
			Address:  taker.SourceAddress,
			Currency: taker.SourceCurrency,
			Amount:   taker.SourceAmount,
		},
		State:          StateNew,
		CreatedAt:      now,
		StateChangedAt: now,
	}
	s.transactions[tx.ID] = tx
	return tx
}

// DeletePending removes an unmatched order from the book (spec §4.2).
func (s *Service) DeletePending(id SwapID) error {
	// Lock order: known_swap_ids -> pending_transactions, matching submitOrder.
	s.knownSwapIDsMu.Lock()
	defer s.knownSwapIDsMu.Unlock()

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotPending, id)
	}
	delete(s.pending, id)
	delete(s.knownSwapIDs, id)

	return nil
}

// DeleteTransaction removes a matched transaction regardless of state and
// moves it to history as Cancelled (spec §4.2).
func (s *Service) DeleteTransaction(id SwapID) error {
	s.txMu.Lock()
	tx, ok := s.transactions[id]
	if !ok {
		s.txMu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.transactions, id)
	s.txMu.Unlock()

	s.terminate(tx, StateCancelled, ReasonExplicitCancel)
	return nil
}
