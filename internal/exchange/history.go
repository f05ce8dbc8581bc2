package exchange

// terminate moves a transaction into a terminal state and into the
// history store (spec §3: "a Transaction is never mutated from a terminal
// state... lives in the history store"). Safe to call with a transaction
// that is not currently in s.transactions (e.g. already removed by the
// caller), as DeleteTransaction does.
func (s *Service) terminate(tx *Transaction, state State, reason CancelReason) {
	tx.State = state
	tx.StateChangedAt = s.now()
	tx.CancelReason = reason

	s.txMu.Lock()
	delete(s.transactions, tx.ID)
	s.txMu.Unlock()

	s.addToHistoryLocked(tx)

	if state == StateFinished {
		s.bus.publish(func(o Observer) { o.TransactionStateChanged(tx.ID, tx.State) })
	} else {
		s.bus.publish(func(o Observer) { o.TransactionCancelled(tx.ID, tx.State, tx.CancelReason) })
	}
}

// addToHistoryLocked inserts tx into the history store, idempotently
// (spec §4.4: "add_to_history(id) is idempotent"), evicting the oldest
// entry once historyCapacity is exceeded.
func (s *Service) addToHistoryLocked(tx *Transaction) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	if _, exists := s.history[tx.ID]; exists {
		return
	}
	s.history[tx.ID] = tx
	s.historyOrder = append(s.historyOrder, tx.ID)

	if len(s.historyOrder) > historyCapacity {
		oldest := s.historyOrder[0]
		s.historyOrder = s.historyOrder[1:]
		delete(s.history, oldest)

		s.knownSwapIDsMu.Lock()
		delete(s.knownSwapIDs, oldest)
		s.knownSwapIDsMu.Unlock()
	}
}

// AddToHistory is the public, idempotent form of addToHistoryLocked used
// by callers outside the state machine (spec §4.4).
func (s *Service) AddToHistory(id SwapID) {
	s.txMu.Lock()
	tx, ok := s.transactions[id]
	if ok {
		delete(s.transactions, id)
	}
	s.txMu.Unlock()
	if !ok {
		return
	}
	s.addToHistoryLocked(tx)
}

// snapshot copies a Transaction by value so callers cannot mutate
// service-owned state through the returned pointer.
func snapshotTx(tx *Transaction) *Transaction {
	cp := *tx
	return &cp
}

// Transaction looks up a transaction by id, checking both the active
// table and history (spec §3: "lookups check both tables").
func (s *Service) Transaction(id SwapID) (*Transaction, bool) {
	s.txMu.Lock()
	if tx, ok := s.transactions[id]; ok {
		s.txMu.Unlock()
		return snapshotTx(tx), true
	}
	s.txMu.Unlock()

	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	if tx, ok := s.history[id]; ok {
		return snapshotTx(tx), true
	}
	return nil, false
}

// PendingOrder looks up a pending order by id.
func (s *Service) PendingOrder(id SwapID) (*Order, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	o, ok := s.pending[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// PendingOrders returns a point-in-time snapshot of the order book.
func (s *Service) PendingOrders() []*Order {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	out := make([]*Order, 0, len(s.pending))
	for _, o := range s.pending {
		cp := *o
		out = append(out, &cp)
	}
	return out
}

// Transactions returns a point-in-time snapshot of all active transactions.
func (s *Service) Transactions() []*Transaction {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	out := make([]*Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		out = append(out, snapshotTx(tx))
	}
	return out
}

// FinishedTransactions returns history entries that reached Finished.
func (s *Service) FinishedTransactions() []*Transaction {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]*Transaction, 0)
	for _, id := range s.historyOrder {
		tx := s.history[id]
		if tx.State == StateFinished {
			out = append(out, snapshotTx(tx))
		}
	}
	return out
}

// TransactionsHistory returns all terminated transactions (finished,
// cancelled, or dropped).
func (s *Service) TransactionsHistory() []*Transaction {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]*Transaction, 0, len(s.historyOrder))
	for _, id := range s.historyOrder {
		out = append(out, snapshotTx(s.history[id]))
	}
	return out
}
