package transport

import (
	"testing"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var id exchange.SwapID
	id[0] = 0x42

	out := exchange.OutgoingMessage{
		SwapID: id,
		Body: exchange.OrderAnnounce{
			ID:      id,
			Src:     exchange.Party{Address: "bc1q...", Currency: "BTC", Amount: 100000},
			Dst:     exchange.Party{Address: "ltc1q...", Currency: "LTC", Amount: 5000000},
			Timeout: 1234567890,
		},
	}

	data, err := encode(out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.EnvelopeID == "" {
		t.Error("expected a non-empty envelope id")
	}
	if msg.Body.SwapID() != id {
		t.Errorf("swap id mismatch: got %x want %x", msg.Body.SwapID(), id)
	}
	announce, ok := msg.Body.(exchange.OrderAnnounce)
	if !ok {
		t.Fatalf("expected OrderAnnounce, got %T", msg.Body)
	}
	if announce.Src.Currency != "BTC" || announce.Dst.Currency != "LTC" {
		t.Errorf("unexpected party currencies: %+v", announce)
	}
}

func TestEncodeIsContentAddressed(t *testing.T) {
	var id exchange.SwapID
	id[0] = 0x7

	out := exchange.OutgoingMessage{
		SwapID: id,
		Body:   exchange.Cancel{ID: id, Reason: "timeout"},
	}

	dataA, err := encode(out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dataB, err := encode(out)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	msgA, err := decode(dataA)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	msgB, err := decode(dataB)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msgA.Hash != msgB.Hash {
		t.Error("expected identical content hash across re-publishes of the same message")
	}
	if msgA.EnvelopeID == msgB.EnvelopeID {
		t.Error("expected distinct envelope ids per publish attempt")
	}
}

func TestDecodeUnknownKindErrors(t *testing.T) {
	if _, err := decode([]byte(`{"kind":"NotAThing","hash":[0],"body":{}}`)); err == nil {
		t.Error("expected error for unknown message kind")
	}
}
