package transport

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
)

// decode parses a gossip payload into an exchange.Message, dispatching on
// the envelope's Kind field to the matching exchange.MessageBody type.
func decode(data []byte) (exchange.Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return exchange.Message{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	body, err := decodeBody(env.Kind, env.Body)
	if err != nil {
		return exchange.Message{}, err
	}

	return exchange.Message{Hash: env.Hash, EnvelopeID: env.EnvelopeID, Body: body}, nil
}

func decodeBody(kind string, raw json.RawMessage) (exchange.MessageBody, error) {
	switch kind {
	case "OrderAnnounce":
		var m exchange.OrderAnnounce
		return m, json.Unmarshal(raw, &m)
	case "JoinOrderHold":
		var m exchange.JoinOrderHold
		return m, json.Unmarshal(raw, &m)
	case "HoldApply":
		var m exchange.HoldApply
		return m, json.Unmarshal(raw, &m)
	case "Initialized":
		var m exchange.Initialized
		return m, json.Unmarshal(raw, &m)
	case "Created":
		var m exchange.Created
		return m, json.Unmarshal(raw, &m)
	case "Confirmed":
		var m exchange.Confirmed
		return m, json.Unmarshal(raw, &m)
	case "Cancel":
		var m exchange.Cancel
		return m, json.Unmarshal(raw, &m)
	default:
		return nil, fmt.Errorf("transport: unknown message kind %q", kind)
	}
}

// encode serializes an outgoing message into a gossip payload.
func encode(out exchange.OutgoingMessage) ([]byte, error) {
	body, err := json.Marshal(out.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	env := envelope{
		EnvelopeID: uuid.NewString(),
		Kind:       out.Body.Kind(),
		Hash:       envelopeHash(out),
		Body:       body,
	}
	return json.Marshal(env)
}
