package exchange

// checkAndMarkMessage reports whether this exact envelope hash has already
// been processed (at-least-once transport replay) and, if not, marks it
// seen. Applying the same message twice must produce the same resulting
// table as applying it once (spec invariant 3); this is the first gate
// every inbound message passes through, per the lock order in service.go.
func (s *Service) checkAndMarkMessage(hash [32]byte) (duplicate bool) {
	s.knownMessagesMu.Lock()
	defer s.knownMessagesMu.Unlock()

	if _, ok := s.knownMessages.Get(hash); ok {
		return true
	}
	s.knownMessages.Add(hash, struct{}{})
	return false
}
