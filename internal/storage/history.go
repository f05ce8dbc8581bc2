// Package storage - cold-storage audit sink for terminated exchange
// transactions. Every swap that reaches a terminal state (Finished,
// Cancelled, Dropped) is appended here so an operator can audit what
// happened after the fact; this is not read back by internal/exchange
// itself and never gates order matching or the state machine.
package storage

import (
	"database/sql"
	"time"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
)

// HistoryRecord is a terminated transaction as retained for audit.
type HistoryRecord struct {
	SwapID      string
	FinalState  string
	Reason      string
	SrcCurrency string
	SrcAmount   uint64
	DstCurrency string
	DstAmount   uint64
	CreatedAt   time.Time
	TerminatedAt time.Time
}

// RecordTermination appends a terminated transaction to the audit log.
// Idempotent: a swap id already present is left untouched, since the
// first terminal state reached is the one worth keeping.
func (s *Storage) RecordTermination(rec *HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO transaction_history (
			swap_id, final_state, reason, src_currency, src_amount,
			dst_currency, dst_amount, created_at, terminated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(swap_id) DO NOTHING
	`,
		rec.SwapID, rec.FinalState, rec.Reason,
		rec.SrcCurrency, rec.SrcAmount, rec.DstCurrency, rec.DstAmount,
		rec.CreatedAt.Unix(), rec.TerminatedAt.Unix(),
	)
	return err
}

// ListHistory returns the most recently terminated transactions, newest
// first. limit <= 0 means no limit.
func (s *Storage) ListHistory(limit int) ([]*HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT swap_id, final_state, reason, src_currency, src_amount,
			dst_currency, dst_amount, created_at, terminated_at
		FROM transaction_history
		ORDER BY terminated_at DESC
	`
	if limit > 0 {
		query += " LIMIT ?"
	}

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var createdAt, terminatedAt int64
		if err := rows.Scan(
			&rec.SwapID, &rec.FinalState, &rec.Reason,
			&rec.SrcCurrency, &rec.SrcAmount, &rec.DstCurrency, &rec.DstAmount,
			&createdAt, &terminatedAt,
		); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.TerminatedAt = time.Unix(terminatedAt, 0)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// HistorySink adapts Storage to exchange.Observer, so the exchange
// service can subscribe it directly alongside any UI observer. Only the
// terminal-state callbacks do anything; the rest are no-ops.
type HistorySink struct {
	store *Storage
}

// NewHistorySink returns an exchange.Observer that archives terminated
// transactions into store.
func NewHistorySink(store *Storage) *HistorySink {
	return &HistorySink{store: store}
}

func (h *HistorySink) PendingTransactionReceived(order *exchange.Order) {}
func (h *HistorySink) PendingOrderExpired(order *exchange.Order)        {}

func (h *HistorySink) TransactionStateChanged(id exchange.SwapID, state exchange.State) {
	if !state.IsTerminal() {
		return
	}
	_ = h.store.RecordTermination(&HistoryRecord{
		SwapID:       id.String(),
		FinalState:   string(state),
		TerminatedAt: time.Now(),
	})
}

func (h *HistorySink) TransactionCancelled(id exchange.SwapID, state exchange.State, reason exchange.CancelReason) {
	_ = h.store.RecordTermination(&HistoryRecord{
		SwapID:       id.String(),
		FinalState:   string(state),
		Reason:       string(reason),
		TerminatedAt: time.Now(),
	})
}

func (h *HistorySink) AddressBookEntryReceived(currency, name, address string) {}
func (h *HistorySink) LogMessage(msg string)                                  {}
