package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

// Lock ordering (global, spec §5): known_messages -> known_swap_ids ->
// pending_transactions -> transactions -> history -> unconfirmed. Every
// method that must hold more than one of these locks acquires them via
// Go's defer-is-LIFO idiom in exactly this order, so releases happen in
// reverse automatically. No method does network I/O, connector RPC, or any
// other blocking call while holding one of these locks.

// Sender delivers an outgoing peer message. Implemented by the transport
// layer; the exchange never blocks on it — messages are handed off
// fire-and-forget from outside any table lock.
type Sender interface {
	Send(ctx context.Context, msg OutgoingMessage) error
}

// ActionHandler carries out the internal side effects the state machine
// schedules (InitRequest/CreateRequest/ConfirmRequest), asking this node's
// wallet/coordinator layer to perform the next on-chain step.
type ActionHandler interface {
	HandleAction(ctx context.Context, req ActionRequest) error
}

// knownMessagesCapacity bounds the known_messages dedup set (spec §3: "the
// last K events", default 10,000).
const knownMessagesCapacity = 10000

// quarantineWindow is how long a message for an unknown swap id is held
// before being dropped (spec §4.3).
const quarantineWindow = 30 * time.Second

// historyCapacity bounds the in-memory rolling history window (spec §1
// Non-goals: "persistence of historical orders beyond an in-memory rolling
// history").
const historyCapacity = 10000

// Config configures a Service.
type Config struct {
	Registry *Registry
	Sender   Sender
	Actions  ActionHandler
	Logger   *logging.Logger
	// Now overrides time.Now for tests; defaults to time.Now.
	Now func() time.Time
}

// Service is the in-memory order book and transaction lifecycle engine
// described by spec §2: one instance per market-maker node, exclusively
// owning the order book, transaction table, history store, and dedup sets.
type Service struct {
	registry      *Registry
	sender        Sender
	actionHandler ActionHandler
	log           *logging.Logger
	now           func() time.Time
	bus           *eventBus

	knownMessagesMu sync.Mutex
	knownMessages   *lru.Cache[[32]byte, struct{}]

	knownSwapIDsMu sync.Mutex
	knownSwapIDs   map[SwapID]struct{}

	pendingMu sync.Mutex
	pending   map[SwapID]*Order

	txMu         sync.Mutex
	transactions map[SwapID]*Transaction

	historyMu    sync.Mutex
	history      map[SwapID]*Transaction
	historyOrder []SwapID // FIFO eviction order for historyCapacity

	unconfirmedMu sync.Mutex
	unconfirmed   map[SwapID]quarantineEntry

	outbox  chan OutgoingMessage
	actions chan ActionRequest

	closeOnce sync.Once
	closed    chan struct{}
}

// quarantineEntry buffers a message whose swap id is not yet known, to
// absorb reordering between accept and the first peer message (spec §4.3).
type quarantineEntry struct {
	messages []Message
	expires  time.Time
}

// New constructs a Service. The returned Service owns a background
// goroutine draining outgoing messages to cfg.Sender; call Close to stop it.
func New(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}
	cache, _ := lru.New[[32]byte, struct{}](knownMessagesCapacity)

	s := &Service{
		registry:      cfg.Registry,
		sender:        cfg.Sender,
		actionHandler: cfg.Actions,
		log:           log.Component("exchange"),
		now:           now,
		bus:           newEventBus(),
		knownMessages: cache,
		knownSwapIDs:  make(map[SwapID]struct{}),
		pending:       make(map[SwapID]*Order),
		transactions:  make(map[SwapID]*Transaction),
		history:       make(map[SwapID]*Transaction),
		unconfirmed:   make(map[SwapID]quarantineEntry),
		outbox:        make(chan OutgoingMessage, 4096),
		actions:       make(chan ActionRequest, 4096),
		closed:        make(chan struct{}),
	}
	go s.drainOutbox()
	go s.drainActions()
	return s
}

// Subscribe registers a UI connector observer.
func (s *Service) Subscribe(o Observer) {
	s.bus.Subscribe(o)
}

// Registry exposes the currency parameter table to the wallet/coordinator
// layer, so an ActionHandler can read block-time and confirmation-depth
// parameters without duplicating them.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Announce applies a locally-originated message body to its transaction
// and, once applied, queues it for peer delivery — the counterpart of
// Deliver for messages this node itself originates (spec §4.3: a party
// reports its own Initialized/Created/Confirmed the same way it would
// receive a peer's). Returns the error applyToTransaction returns; a
// protocol-violation error still gets the same Dropped handling Deliver
// gives an inbound message.
func (s *Service) Announce(body MessageBody) error {
	s.txMu.Lock()
	tx, ok := s.transactions[body.SwapID()]
	s.txMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, body.SwapID())
	}

	if err := s.applyAndHandleViolation(tx, body); err != nil {
		return err
	}
	s.enqueueOutgoing(body)
	return nil
}

// SetSender attaches the transport layer after construction, for callers
// that must build their Sender from the Service itself (e.g. a gossip
// transport that delivers inbound messages via Deliver). Safe to call
// once during startup, before any messages are queued.
func (s *Service) SetSender(sender Sender) {
	s.sender = sender
}

// SetActions attaches the wallet/coordinator layer after construction, for
// the same reason SetSender exists: a Coordinator needs the Service itself
// to build its ActionHandler. Safe to call once during startup, before any
// actions are queued.
func (s *Service) SetActions(actions ActionHandler) {
	s.actionHandler = actions
}

// Close stops the background outbox drain and event bus goroutines.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		close(s.outbox)
		close(s.actions)
		s.bus.close()
	})
}

// drainOutbox delivers queued outgoing messages outside of any table lock.
// Delivery failures are logged; the transport layer owns retry per its
// at-least-once contract (spec §1 "External collaborators: Transport").
func (s *Service) drainOutbox() {
	for msg := range s.outbox {
		if s.sender == nil {
			continue
		}
		if err := s.sender.Send(context.Background(), msg); err != nil {
			s.log.Warn("failed to send outgoing message", "swap_id", msg.SwapID, "kind", msg.Body.Kind(), "error", err)
		}
	}
}

// drainActions delivers queued action requests to the wallet/coordinator
// layer outside of any table lock, mirroring drainOutbox.
func (s *Service) drainActions() {
	for req := range s.actions {
		if s.actionHandler == nil {
			continue
		}
		if err := s.actionHandler.HandleAction(context.Background(), req); err != nil {
			s.log.Warn("action handler failed", "swap_id", req.SwapID, "action", req.Action, "error", err)
		}
	}
}

// enqueueOutgoing queues a message for delivery. Must be called after all
// table locks for the current operation have been released.
func (s *Service) enqueueOutgoing(body MessageBody) {
	select {
	case s.outbox <- OutgoingMessage{SwapID: body.SwapID(), Body: body}:
	default:
		s.log.Warn("outbox full, dropping outgoing message", "swap_id", body.SwapID(), "kind", body.Kind())
	}
}

// isKnownSwapID reports whether id is already pending, active, or in
// recent history — the union the spec calls known_swap_ids.
func (s *Service) isKnownSwapID(id SwapID) bool {
	s.knownSwapIDsMu.Lock()
	defer s.knownSwapIDsMu.Unlock()
	_, ok := s.knownSwapIDs[id]
	return ok
}

func (s *Service) markKnownSwapID(id SwapID) {
	s.knownSwapIDsMu.Lock()
	defer s.knownSwapIDsMu.Unlock()
	s.knownSwapIDs[id] = struct{}{}
}
