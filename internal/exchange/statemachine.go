package exchange

import (
	"errors"
	"fmt"

	"github.com/klingon-exchange/klingon-v2/internal/htlc"
)

// Deliver is the single entry point for inbound peer messages (spec §4.3).
// It deduplicates by envelope hash, resolves the swap id against the known
// set, and either applies the message to an active transaction or
// quarantines it for later replay. Deliver never blocks on I/O.
func (s *Service) Deliver(msg Message) error {
	if s.checkAndMarkMessage(msg.Hash) {
		return nil
	}

	id := msg.Body.SwapID()

	s.txMu.Lock()
	tx, ok := s.transactions[id]
	s.txMu.Unlock()

	if !ok {
		if !s.isKnownSwapID(id) {
			s.quarantineLocked(id, msg)
			return nil
		}
		// Known but not active: either still pending (protocol violation —
		// a state message arrived before the order was matched) or already
		// terminal (late/duplicate delivery after the swap finished). Both
		// are safe to drop; history lookups remain idempotent.
		return nil
	}

	return s.applyAndHandleViolation(tx, msg.Body)
}

// applyAndHandleViolation applies body to tx and, if the update rule
// reports a protocol violation, carries out spec §7's consequence for it:
// the swap is dropped rather than left to hang forever on a message it
// will never accept. Quarantined replays and self-originated Announce
// calls go through this same path so a locally-detected violation is
// handled identically to a peer-detected one.
func (s *Service) applyAndHandleViolation(tx *Transaction, body MessageBody) error {
	err := s.applyToTransaction(tx, body)
	if err != nil && errors.Is(err, ErrProtocolViolation) {
		s.terminate(tx, StateDropped, ReasonProtocolViolation)
	}
	return err
}

// applyToTransaction applies one wire message body to an active
// transaction, implementing the idempotent update rules of spec §4.3. It
// is also the replay target for quarantined messages once their
// transaction becomes known (drainQuarantine).
func (s *Service) applyToTransaction(tx *Transaction, body MessageBody) error {
	switch m := body.(type) {
	case HoldApply:
		return s.updateHoldApply(tx, m)
	case Initialized:
		return s.updateInitialized(tx, m)
	case Created:
		return s.updateCreated(tx, m)
	case Confirmed:
		return s.updateConfirmed(tx, m)
	case Cancel:
		return s.updateCancel(tx, m)
	default:
		return fmt.Errorf("%w: unexpected message kind %s for swap %s", ErrProtocolViolation, body.Kind(), tx.ID)
	}
}

// updateHoldApply records one party's hold acknowledgement (spec §4.3:
// update_transaction_when_hold_apply_received). Repeated delivery from the
// same party is a no-op. Once both parties have acknowledged, the
// transaction advances New -> Hold and an InitRequest is scheduled.
func (s *Service) updateHoldApply(tx *Transaction, m HoldApply) error {
	if tx.State.IsTerminal() {
		return nil
	}
	if tx.State != StateNew && tx.State != StateJoinCreated && tx.State != StateHold {
		return fmt.Errorf("%w: HoldApply received in state %s", ErrProtocolViolation, tx.State)
	}

	s.txMu.Lock()
	switch m.From {
	case RoleA:
		tx.AHoldReceived = true
	case RoleB:
		tx.BHoldReceived = true
	}
	advanced := tx.State != StateHold && tx.AHoldReceived && tx.BHoldReceived
	if advanced {
		tx.State = StateHold
		tx.StateChangedAt = s.now()
	}
	s.txMu.Unlock()

	if advanced {
		s.bus.publish(func(o Observer) { o.TransactionStateChanged(tx.ID, tx.State) })
		s.enqueueAction(tx.ID, ActionInitRequest)
	}
	return nil
}

// updateInitialized records one party's funding-data tx id and public key
// (update_transaction_when_initialized_received). Once both sides have
// reported, the transaction advances Hold -> Initialized and a
// CreateRequest is scheduled.
func (s *Service) updateInitialized(tx *Transaction, m Initialized) error {
	if tx.State.IsTerminal() {
		return nil
	}
	if tx.State != StateHold && tx.State != StateInitialized {
		return fmt.Errorf("%w: Initialized received in state %s", ErrProtocolViolation, tx.State)
	}

	s.txMu.Lock()
	receipt := initReceipt{Received: true, DataTxID: m.DataTxID, PeerPK: m.PeerPK}
	switch m.From {
	case RoleA:
		tx.AInit = receipt
	case RoleB:
		tx.BInit = receipt
	}
	advanced := tx.State != StateInitialized && tx.AInit.Received && tx.BInit.Received
	if advanced {
		tx.State = StateInitialized
		tx.StateChangedAt = s.now()
	}
	s.txMu.Unlock()

	if advanced {
		s.bus.publish(func(o Observer) { o.TransactionStateChanged(tx.ID, tx.State) })
		s.enqueueAction(tx.ID, ActionCreateRequest)
	}
	return nil
}

// updateCreated records one party's on-chain HTLC funding tx id and redeem
// script (update_transaction_when_created_received). Once both sides have
// funded, the transaction advances Initialized -> Created and a
// ConfirmRequest is scheduled.
func (s *Service) updateCreated(tx *Transaction, m Created) error {
	if tx.State.IsTerminal() {
		return nil
	}
	if tx.State != StateInitialized && tx.State != StateCreated {
		return fmt.Errorf("%w: Created received in state %s", ErrProtocolViolation, tx.State)
	}
	if _, err := htlc.ParseFundingTxID(m.BinTxID); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	s.txMu.Lock()
	receipt := createdReceipt{Received: true, BinTxID: m.BinTxID, InnerScript: m.InnerScript}
	switch m.From {
	case RoleA:
		tx.ACreated = receipt
	case RoleB:
		tx.BCreated = receipt
	}
	advanced := tx.State != StateCreated && tx.ACreated.Received && tx.BCreated.Received
	if advanced {
		tx.State = StateCreated
		tx.StateChangedAt = s.now()
	}
	// A Confirmed for either party may have arrived, and been buffered,
	// before Created did (spec §4.3's out-of-order rule); closing the gap
	// here means that buffered fact no longer waits on another message.
	ready := advanced && tx.AConfirmed && tx.BConfirmed
	if ready {
		tx.State = StateCommitted
		tx.StateChangedAt = s.now()
	}
	s.txMu.Unlock()

	if !advanced {
		return nil
	}
	s.bus.publish(func(o Observer) { o.TransactionStateChanged(tx.ID, tx.State) })
	if ready {
		s.terminate(tx, StateFinished, ReasonSwapCompleted)
		return nil
	}
	s.enqueueAction(tx.ID, ActionConfirmRequest)
	return nil
}

// updateConfirmed records one party's funding tx reaching the required
// confirmation depth (update_transaction_when_confirmed_received). A
// Confirmed arriving before the transaction itself has reached Created is
// not a violation: it is buffered onto the per-party bit and accepted, per
// spec §4.3's general out-of-order rule ("buffer-and-accept: record the
// fact, do not advance state yet, advance when predecessor events close
// the gap") — a party can finish funding and confirm before its
// counterpart's Created has arrived here; updateCreated closes that gap
// when it later lands. Once both sides are confirmed AND the transaction
// has actually reached Created, the swap is considered settled: there is
// no separate redeem-observed wire message in this protocol, so the
// transaction moves Created -> Committed -> Finished in the same step and
// is retired into history.
func (s *Service) updateConfirmed(tx *Transaction, m Confirmed) error {
	if tx.State.IsTerminal() {
		return nil
	}

	s.txMu.Lock()
	switch m.From {
	case RoleA:
		tx.AConfirmed = true
	case RoleB:
		tx.BConfirmed = true
	}
	ready := tx.State == StateCreated && tx.AConfirmed && tx.BConfirmed
	if ready {
		tx.State = StateCommitted
		tx.StateChangedAt = s.now()
	}
	s.txMu.Unlock()

	if !ready {
		return nil
	}

	s.bus.publish(func(o Observer) { o.TransactionStateChanged(tx.ID, tx.State) })
	s.terminate(tx, StateFinished, ReasonSwapCompleted)
	return nil
}

// updateCancel moves a non-terminal transaction to Cancelled with the
// given reason. Delivery against an already-terminal transaction is a
// no-op (spec §4.3: cancellation is idempotent).
func (s *Service) updateCancel(tx *Transaction, m Cancel) error {
	if tx.State.IsTerminal() {
		return nil
	}
	s.bus.publish(func(o Observer) { o.LogMessage(fmt.Sprintf("swap %s cancelled: %s", tx.ID, m.Reason)) })
	s.terminate(tx, StateCancelled, ReasonExplicitCancel)
	return nil
}

// enqueueAction queues an internal side-effect request for the node's
// wallet/coordinator layer. Must be called after all table locks for the
// current operation have been released.
func (s *Service) enqueueAction(id SwapID, kind ActionKind) {
	select {
	case s.actions <- ActionRequest{SwapID: id, Action: kind}:
	default:
		s.log.Warn("action queue full, dropping action request", "swap_id", id, "action", kind)
	}
}
