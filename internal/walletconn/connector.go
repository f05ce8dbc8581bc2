// Package walletconn adapts the node's per-chain blockchain backends
// (internal/backend) to the wallet-connector contract the exchange core
// depends on: list unspent outputs, broadcast a raw transaction, locate
// the block a transaction confirmed in, and report a chain's current
// tip height. Key management and transaction construction are not done
// in this package, nor anywhere else in this module.
package walletconn

import (
	"context"
	"errors"
	"fmt"

	"github.com/klingon-exchange/klingon-v2/internal/backend"
	"github.com/klingon-exchange/klingon-v2/pkg/logging"
)

// ErrConnectorError wraps any failure surfaced by a wallet connector,
// giving the exchange core a single sentinel to compare against
// regardless of which backend produced the underlying error (spec §9:
// RPC failures do not raise exceptions across the connector boundary).
var ErrConnectorError = errors.New("walletconn: connector error")

// Utxo is an unspent output available to fund a swap leg.
type Utxo struct {
	TxID          string
	Vout          uint32
	Amount        uint64
	ScriptPubKey  string
	Confirmations int64
}

// Connector is the contract the exchange core's sweeper and coordinator
// layer use to observe chain state. It is satisfied by Service below, and
// by test doubles in package tests.
type Connector interface {
	ListUnspent(ctx context.Context, currency, address string) ([]Utxo, error)
	BroadcastRawTx(ctx context.Context, currency, rawTxHex string) (txID string, err error)
	FetchTxBlock(ctx context.Context, currency, txID string) (height int64, confirmed bool, err error)
	CurrentBlockHeight(ctx context.Context, currency string) (uint32, error)
}

// Service implements Connector over a backend.Registry, one backend per
// supported currency (spec §6 "External collaborators: Wallet
// connector").
type Service struct {
	backends *backend.Registry
	log      *logging.Logger
}

// New builds a connector Service over an already-connected backend
// registry.
func New(backends *backend.Registry) *Service {
	return &Service{
		backends: backends,
		log:      logging.GetDefault().Component("walletconn"),
	}
}

func (s *Service) resolve(currency string) (backend.Backend, error) {
	b, ok := s.backends.Get(currency)
	if !ok {
		return nil, fmt.Errorf("%w: no backend configured for %s", ErrConnectorError, currency)
	}
	return b, nil
}

// ListUnspent returns the unspent outputs controlled by address.
func (s *Service) ListUnspent(ctx context.Context, currency, address string) ([]Utxo, error) {
	b, err := s.resolve(currency)
	if err != nil {
		return nil, err
	}
	utxos, err := b.GetAddressUTXOs(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectorError, currency, err)
	}
	out := make([]Utxo, 0, len(utxos))
	for _, u := range utxos {
		out = append(out, Utxo{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Amount:        u.Amount,
			ScriptPubKey:  u.ScriptPubKey,
			Confirmations: u.Confirmations,
		})
	}
	return out, nil
}

// BroadcastRawTx relays a signed raw transaction to the network.
func (s *Service) BroadcastRawTx(ctx context.Context, currency, rawTxHex string) (string, error) {
	b, err := s.resolve(currency)
	if err != nil {
		return "", err
	}
	txID, err := b.BroadcastTransaction(ctx, rawTxHex)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConnectorError, currency, err)
	}
	return txID, nil
}

// FetchTxBlock reports the block height a transaction confirmed in, and
// whether it has confirmed at all.
func (s *Service) FetchTxBlock(ctx context.Context, currency, txID string) (int64, bool, error) {
	b, err := s.resolve(currency)
	if err != nil {
		return 0, false, err
	}
	tx, err := b.GetTransaction(ctx, txID)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %v", ErrConnectorError, currency, err)
	}
	return tx.BlockHeight, tx.Confirmed, nil
}

// CurrentBlockHeight reports a chain's current tip height. Implements
// exchange.BlockHeightProvider so the sweeper can use a Service directly.
//
// The underlying backend reports signed int64 heights (it is itself a
// thin client over third-party block explorer APIs); a negative or
// otherwise unrepresentable height is rejected as a connector error
// rather than silently wrapping into a huge uint32; this is a stricter
// rule than the original implementation, which subtracted block heights
// without checking for underflow.
func (s *Service) CurrentBlockHeight(ctx context.Context, currency string) (uint32, error) {
	b, err := s.resolve(currency)
	if err != nil {
		return 0, err
	}
	height, err := b.GetBlockHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConnectorError, currency, err)
	}
	if height < 0 || height > int64(^uint32(0)) {
		return 0, fmt.Errorf("%w: %s reported out-of-range block height %d", ErrConnectorError, currency, height)
	}
	return uint32(height), nil
}
