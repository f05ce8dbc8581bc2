package exchange

// quarantineLocked buffers a message whose swap id is not yet known to
// absorb reordering between accept and the first peer message (spec
// §4.3). Entries older than quarantineWindow are dropped by the sweeper.
func (s *Service) quarantineLocked(id SwapID, msg Message) {
	s.unconfirmedMu.Lock()
	defer s.unconfirmedMu.Unlock()

	entry, ok := s.unconfirmed[id]
	if !ok {
		entry = quarantineEntry{expires: s.now().Add(quarantineWindow)}
	}
	entry.messages = append(entry.messages, msg)
	s.unconfirmed[id] = entry
}

// drainQuarantine replays any messages buffered for id against the
// now-known transaction. Called right after a transaction is created by a
// match, before the pending/transactions locks are released to new
// matchers for the same id (the id was unknown to the quarantine path
// until this point).
func (s *Service) drainQuarantine(tx *Transaction) {
	s.unconfirmedMu.Lock()
	entry, ok := s.unconfirmed[tx.ID]
	if ok {
		delete(s.unconfirmed, tx.ID)
	}
	s.unconfirmedMu.Unlock()
	if !ok {
		return
	}

	for _, msg := range entry.messages {
		s.applyAndHandleViolation(tx, msg.Body)
	}
}

// sweepQuarantine drops quarantine entries older than quarantineWindow.
// Invoked by the background sweeper (spec §5).
func (s *Service) sweepQuarantine() {
	now := s.now()
	s.unconfirmedMu.Lock()
	defer s.unconfirmedMu.Unlock()

	for id, entry := range s.unconfirmed {
		if now.After(entry.expires) {
			delete(s.unconfirmed, id)
		}
	}
}
