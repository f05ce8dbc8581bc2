// Package transport carries exchange wire envelopes over a libp2p gossip
// topic, and implements exchange.Sender so Service.Deliver sees decoded
// messages regardless of which peer relayed them (spec §1: "External
// collaborators: Transport — delivers decoded Messages... at-least-once,
// no ordering guarantee across peers").
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

// SwapTopic is the single gossip topic carrying every exchange wire
// message kind; the envelope's Kind field dispatches to the right
// exchange.MessageBody decoder. A per-class topic buys nothing here since every kind is already addressed to a specific swap id and
// requires no selective subscription.
const SwapTopic = "/klingon/exchange/1.0.0"

// envelope is the wire framing around one exchange.MessageBody. Kind
// selects the concrete Go type to decode Body into; Hash is the envelope
// hash the exchange core dedups on (spec §3: known_messages). EnvelopeID is
// a random id independent of the swap id, for correlating this specific
// publish attempt across logs when the same logical message is
// retransmitted (the content hash stays stable across retransmits, the
// envelope id does not).
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Kind       string          `json:"kind"`
	Hash       [32]byte        `json:"hash"`
	Body       json.RawMessage `json:"body"`
}

// Gossip publishes and receives exchange wire envelopes over a single
// libp2p-pubsub topic.
type Gossip struct {
	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	log   *logging.Logger

	svc *exchange.Service

	cancel context.CancelFunc
}

// New joins SwapTopic over ps. Call Start to begin delivering inbound
// messages to svc.
func New(h host.Host, ps *pubsub.PubSub, svc *exchange.Service) (*Gossip, error) {
	topic, err := ps.Join(SwapTopic)
	if err != nil {
		return nil, fmt.Errorf("transport: join topic: %w", err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		return nil, fmt.Errorf("transport: subscribe: %w", err)
	}
	return &Gossip{
		host:  h,
		ps:    ps,
		topic: topic,
		sub:   sub,
		log:   logging.GetDefault().Component("transport"),
		svc:   svc,
	}, nil
}

// Start begins the receive loop, decoding inbound envelopes and handing
// them to svc.Deliver. It returns once ctx is cancelled or Stop is
// called.
func (g *Gossip) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	go g.receiveLoop(ctx)
}

// Stop tears down the topic subscription.
func (g *Gossip) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.sub.Cancel()
	g.topic.Close()
}

func (g *Gossip) receiveLoop(ctx context.Context) {
	for {
		raw, err := g.sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			g.log.Warn("transport: receive error", "error", err)
			continue
		}
		if raw.ReceivedFrom == g.host.ID() {
			continue
		}

		msg, err := decode(raw.Data)
		if err != nil {
			g.log.Warn("transport: failed to decode envelope", "error", err, "from", raw.ReceivedFrom)
			continue
		}

		if err := g.svc.Deliver(msg); err != nil {
			g.log.Warn("transport: deliver failed", "error", err, "kind", msg.Body.Kind(), "envelope_id", msg.EnvelopeID)
		}
	}
}

// Send implements exchange.Sender: it encodes and publishes an outgoing
// message. Called by Service's outbox drain goroutine, never while any
// Service table lock is held.
func (g *Gossip) Send(ctx context.Context, out exchange.OutgoingMessage) error {
	env, err := encode(out)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}
	if err := g.topic.Publish(ctx, env); err != nil {
		return fmt.Errorf("transport: publish: %w", err)
	}
	return nil
}
