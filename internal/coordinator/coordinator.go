// Package coordinator implements exchange.ActionHandler: it is the
// wallet/coordinator layer the exchange state machine hands
// InitRequest/CreateRequest/ConfirmRequest actions to, driving this
// node's own side of a swap's HTLC lifecycle forward on whichever
// currency legs it has a live chain backend for.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/klingon-v2/internal/backend"
	"github.com/klingon-exchange/klingon-v2/internal/chain"
	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/internal/htlc"
	"github.com/klingon-exchange/klingon-v2/internal/walletconn"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

// Config configures a Coordinator.
type Config struct {
	Service   *exchange.Service
	Connector walletconn.Connector
	Backends  *backend.Registry
	Network   chain.Network
	Logger    *logging.Logger
}

// Coordinator implements exchange.ActionHandler. One instance drives both
// legs of any swap where it owns a backend for the leg's currency; a node
// with only one chain's backend configured only ever acts on that side,
// leaving the other party's own node (or operator) to act on theirs.
type Coordinator struct {
	svc       *exchange.Service
	connector walletconn.Connector
	backends  *backend.Registry
	network   chain.Network
	log       *logging.Logger

	mu    sync.Mutex
	swaps map[exchange.SwapID]*swapState
}

// swapState is the coordinator's own bookkeeping for one swap: the
// ephemeral HTLC keys and shared secret it generated, and which of its
// own announcements it has already sent (so a redelivered ActionRequest
// or a HandleAction retry after a partial failure never double-sends).
type swapState struct {
	aPriv, bPriv       *btcec.PrivateKey
	secret, secretHash [32]byte
	haveSecret         bool

	aInitSent, bInitSent       bool
	aCreateSent, bCreateSent   bool
	aConfirmSent, bConfirmSent bool
}

// New constructs a Coordinator bound to cfg.Service. Set cfg.Service's
// Actions to the returned Coordinator (exchange.Config.Actions) so the
// state machine's scheduled actions reach it.
func New(cfg Config) *Coordinator {
	log := cfg.Logger
	if log == nil {
		log = logging.GetDefault()
	}
	return &Coordinator{
		svc:       cfg.Service,
		connector: cfg.Connector,
		backends:  cfg.Backends,
		network:   cfg.Network,
		log:       log.Component("coordinator"),
		swaps:     make(map[exchange.SwapID]*swapState),
	}
}

// HandleAction implements exchange.ActionHandler.
func (c *Coordinator) HandleAction(ctx context.Context, req exchange.ActionRequest) error {
	c.log.Debug("handling action", "swap_id", req.SwapID, "action", req.Action)

	switch req.Action {
	case exchange.ActionInitRequest:
		return c.handleInitRequest(ctx, req.SwapID)
	case exchange.ActionCreateRequest:
		return c.handleCreateRequest(ctx, req.SwapID)
	case exchange.ActionConfirmRequest:
		return c.handleConfirmRequest(ctx, req.SwapID)
	default:
		return fmt.Errorf("coordinator: unknown action %s for swap %s", req.Action, req.SwapID)
	}
}

// ownsLeg reports whether this node has a live chain backend for currency,
// i.e. whether it should actively drive that leg of a swap forward rather
// than waiting on a peer to report the corresponding message.
func (c *Coordinator) ownsLeg(currency string) bool {
	if c.backends == nil {
		return false
	}
	_, ok := c.backends.Get(currency)
	return ok
}

// state returns this swap's coordinator bookkeeping, generating its
// ephemeral keys and shared secret on first use. Only the A side ever
// needs the secret itself (it is the only party that reveals it to
// claim); the B side only ever needs secretHash, but generating it
// up front here avoids a second code path to coordinate which role
// generated it first when one node drives both legs.
func (c *Coordinator) state(id exchange.SwapID) (*swapState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.swaps[id]; ok {
		return st, nil
	}

	aPriv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("coordinator: generate A key: %w", err)
	}
	bPriv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("coordinator: generate B key: %w", err)
	}
	secret, secretHash, err := htlc.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("coordinator: generate secret: %w", err)
	}

	st := &swapState{
		aPriv:      aPriv,
		bPriv:      bPriv,
		secret:     secret,
		secretHash: secretHash,
		haveSecret: true,
	}
	c.swaps[id] = st
	return st, nil
}

// forget drops a swap's cached keys once it reaches a terminal state, so
// the coordinator's memory does not grow without bound across a long
// node lifetime. Safe to call even if the swap was never tracked.
func (c *Coordinator) forget(id exchange.SwapID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.swaps, id)
}

// dataCommitment derives a deterministic placeholder reference id for the
// Initialized message's DataTxID field. This coordinator does not itself
// build or sign an on-chain commitment transaction — that is wallet key
// management, out of scope here — so it reports a stable, reproducible
// stand-in derived from the swap id and role rather than fabricating an
// unverifiable transaction id.
func dataCommitment(id exchange.SwapID, r exchange.Role) string {
	sum := sha256.Sum256(append(id[:], []byte(r)...))
	return hex.EncodeToString(sum[:])
}

func compressedPubKey(priv *btcec.PrivateKey) []byte {
	return priv.PubKey().SerializeCompressed()
}
