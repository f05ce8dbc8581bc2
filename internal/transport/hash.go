package transport

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
)

// envelopeHash derives the dedup hash the receiving exchange core checks
// against known_messages. It is content-addressed (swap id, kind, and
// body bytes) rather than random so re-publishing the same outgoing
// message — e.g. after a transient publish failure — produces the same
// hash and is deduplicated by every receiver exactly like a genuine
// at-least-once replay.
func envelopeHash(out exchange.OutgoingMessage) [32]byte {
	body, _ := json.Marshal(out.Body)
	h := sha256.New()
	h.Write(out.SwapID[:])
	h.Write([]byte(out.Body.Kind()))
	h.Write(body)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}
