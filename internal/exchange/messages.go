package exchange

// Message is the decoded form of a peer wire envelope (spec §6). The
// transport layer is responsible for signature verification, JSON framing,
// and delivering these with at-least-once semantics and no total order;
// the exchange only ever sees the decoded struct plus its envelope hash.
type Message struct {
	Hash       [32]byte
	EnvelopeID string
	Body       MessageBody
}

// MessageBody is implemented by each wire message kind.
type MessageBody interface {
	SwapID() SwapID
	Kind() string
}

// OrderAnnounce announces a new pending order to the network.
type OrderAnnounce struct {
	ID      SwapID
	Src     Party
	Dst     Party
	Timeout int64 // unix seconds
}

func (m OrderAnnounce) SwapID() SwapID { return m.ID }
func (m OrderAnnounce) Kind() string   { return "OrderAnnounce" }

// JoinOrderHold is sent by the maker to the taker on match.
type JoinOrderHold struct {
	ID SwapID
}

func (m JoinOrderHold) SwapID() SwapID { return m.ID }
func (m JoinOrderHold) Kind() string   { return "JoinOrderHold" }

// HoldApply is each party's acknowledgement of the hold.
type HoldApply struct {
	ID   SwapID
	From Role
}

func (m HoldApply) SwapID() SwapID { return m.ID }
func (m HoldApply) Kind() string   { return "HoldApply" }

// Initialized carries a party's data-tx id and peer public key.
type Initialized struct {
	ID        SwapID
	From      Role
	DataTxID  string
	PeerPK    string
}

func (m Initialized) SwapID() SwapID { return m.ID }
func (m Initialized) Kind() string   { return "Initialized" }

// Created carries a party's on-chain HTLC funding tx id and redeem script.
type Created struct {
	ID          SwapID
	From        Role
	BinTxID     string
	InnerScript string
}

func (m Created) SwapID() SwapID { return m.ID }
func (m Created) Kind() string   { return "Created" }

// Confirmed signals that a party's funding tx has reached the required
// confirmation threshold.
type Confirmed struct {
	ID   SwapID
	From Role
}

func (m Confirmed) SwapID() SwapID { return m.ID }
func (m Confirmed) Kind() string   { return "Confirmed" }

// Cancel asks the exchange to drop a swap, carrying a human-readable
// reason for the UI / logs.
type Cancel struct {
	ID     SwapID
	Reason string
}

func (m Cancel) SwapID() SwapID { return m.ID }
func (m Cancel) Kind() string   { return "Cancel" }

// OutgoingMessage is what the state machine queues for the transport layer
// to deliver, drained outside any lock (spec §5).
type OutgoingMessage struct {
	SwapID SwapID
	Body   MessageBody
}

// ActionKind names one of the internal side effects the state machine
// schedules on a state transition (spec §4.3: "emit InitRequest" /
// "CreateRequest" / "ConfirmRequest"). These are not peer wire messages —
// they ask this node's own wallet/coordinator layer to perform the next
// on-chain step, which is why they are delivered through a separate
// ActionHandler rather than through Sender.
type ActionKind string

const (
	ActionInitRequest    ActionKind = "InitRequest"
	ActionCreateRequest  ActionKind = "CreateRequest"
	ActionConfirmRequest ActionKind = "ConfirmRequest"
)

// ActionRequest is queued for the node's wallet/coordinator layer,
// drained outside any table lock just like outgoing peer messages.
type ActionRequest struct {
	SwapID SwapID
	Action ActionKind
}
