// Package exchange implements the in-memory order book and transaction
// lifecycle engine run by market-maker nodes: it matches pending orders
// from two sides and drives each matched swap through the HTLC state
// machine described by the peer protocol.
package exchange

import "errors"

// Error taxonomy. Request-originated errors (create/accept/delete) are
// returned synchronously to the caller. Message-originated errors never
// propagate out of the service; they transition the affected swap and
// surface as an observer TransactionCancelled event instead.
var (
	ErrDuplicateID        = errors.New("exchange: duplicate swap id")
	ErrUnsupportedCurrency = errors.New("exchange: unsupported currency")
	ErrInvalidAmount      = errors.New("exchange: amount outside configured bounds")
	ErrNoMatchingOrder    = errors.New("exchange: no matching pending order")
	ErrNotPending         = errors.New("exchange: order not found in pending book")
	ErrNotFound           = errors.New("exchange: transaction not found")
	ErrProtocolViolation  = errors.New("exchange: message inconsistent with swap state")
	ErrConnectorError     = errors.New("exchange: wallet connector error")
)
