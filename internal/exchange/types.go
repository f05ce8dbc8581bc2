package exchange

import "time"

// SwapID is a 256-bit opaque identifier chosen by the initiator. It
// uniquely identifies a swap for its lifetime; collisions are treated as
// replay (spec: Duplicate id).
type SwapID [32]byte

// String renders the id as lowercase hex for logging and wire encoding.
func (id SwapID) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}

// IsZero reports whether the id is the zero value.
func (id SwapID) IsZero() bool {
	return id == SwapID{}
}

// Party describes one side of a swap: an address on a chain, trading a
// given currency and amount (in the currency's smallest unit).
type Party struct {
	Address  string
	Currency string
	Amount   uint64
}

// Order is a pending half-swap waiting in the order book to be matched.
type Order struct {
	ID SwapID

	SourceAddress  string
	SourceCurrency string
	SourceAmount   uint64

	DestAddress  string
	DestCurrency string
	DestAmount   uint64

	CreatedAt time.Time
	Timeout   time.Time
}

// matches reports whether other is a counter-order to o: the counter-order's
// source must equal this order's dest and vice versa.
func (o *Order) matches(other *Order) bool {
	return other.SourceCurrency == o.DestCurrency &&
		other.DestCurrency == o.SourceCurrency &&
		other.SourceAmount == o.DestAmount &&
		other.DestAmount == o.SourceAmount
}

// State is one state of the transaction state machine (spec §4.3).
type State string

const (
	StateNew         State = "New"
	StateJoinCreated State = "JoinCreated"
	StateHold        State = "Hold"
	StateInitialized State = "Initialized"
	StateCreated     State = "Created"
	StateSigned      State = "Signed"
	StateCommitted   State = "Committed"
	StateFinished    State = "Finished"
	StateCancelled   State = "Cancelled"
	StateDropped     State = "Dropped"
)

// IsTerminal reports whether the state is sticky: Finished, Cancelled, and
// Dropped transactions are never mutated again and live only in history.
func (s State) IsTerminal() bool {
	switch s {
	case StateFinished, StateCancelled, StateDropped:
		return true
	default:
		return false
	}
}

// CancelReason records why a transaction moved to Cancelled/Dropped, for
// the TransactionCancelled observer event.
type CancelReason string

const (
	// ReasonSwapCompleted is recorded on a Finished transaction. It is not a
	// failure reason; CancelReason doubles as the terminal-state annotation
	// for both the cancelled and finished paths so history entries always
	// carry a reason.
	ReasonSwapCompleted    CancelReason = "completed"
	ReasonExplicitCancel   CancelReason = "explicit_cancel"
	ReasonTimelockExpired  CancelReason = "timelock_expired"
	ReasonProtocolViolation CancelReason = "protocol_violation"
	ReasonConnectorError   CancelReason = "connector_error"
	ReasonPeerDropped      CancelReason = "peer_dropped"
)

// initReceipt is what update_initialized carries for one party: the
// funding-data transaction id and the peer's public key, as described in
// spec §3 (a_init_received / b_init_received).
type initReceipt struct {
	Received  bool
	DataTxID  string
	PeerPK    string
}

// createdReceipt is what update_created carries for one party: the on-chain
// HTLC funding transaction id and its redeem script.
type createdReceipt struct {
	Received     bool
	BinTxID      string
	InnerScript  string
}

// Transaction is a matched swap, keyed by swap id, advancing through the
// HTLC state machine. A is the maker (original order), B is the taker
// (the order/accept that matched it).
type Transaction struct {
	ID SwapID

	AParty Party
	BParty Party

	State State

	AHoldReceived bool
	BHoldReceived bool

	AInit initReceipt
	BInit initReceipt

	ACreated createdReceipt
	BCreated createdReceipt

	AConfirmed bool
	BConfirmed bool

	// LockTimeA/LockTimeB are absolute block heights. By design LockTimeA's
	// wall-clock deadline is always later than LockTimeB's: the initiator
	// always has more time than the responder (spec invariant 4).
	LockTimeA uint32
	LockTimeB uint32
	// blockTimeA/blockTimeB are the seconds-per-block of each party's chain,
	// used only to translate block-height deadlines back to wall-clock time
	// for invariant checks and tests.
	blockTimeA float64
	blockTimeB float64

	CreatedAt      time.Time
	StateChangedAt time.Time

	// CancelReason is set when the transaction reaches a terminal state
	// (ReasonSwapCompleted for Finished).
	CancelReason CancelReason
}

// Role identifies which side of a transaction a message pertains to.
type Role string

const (
	RoleA Role = "A"
	RoleB Role = "B"
)
