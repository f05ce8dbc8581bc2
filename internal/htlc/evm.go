package htlc

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	contracthtlc "github.com/klingon-exchange/klingon-v2/internal/contracts/htlc"
)

// EVMParams is the parameter set an EVM-side HTLC leg is funded with. The
// contract itself derives a deterministic swap id from these fields plus
// a nonce, so two legs created with the same parameters never collide
// (spec invariant: swap ids are globally unique for their lifetime).
type EVMParams struct {
	Sender     common.Address
	Receiver   common.Address
	Token      common.Address // zero address for the chain's native coin
	Amount     *big.Int
	SecretHash [32]byte
	Timelock   *big.Int
	Nonce      *big.Int
}

// ComputeSwapID asks the deployed HTLC contract for the swap id that
// EVMParams would produce, so the exchange core's SwapID and the
// on-chain identifier agree without either side guessing the other's
// hashing scheme.
func ComputeSwapID(ctx context.Context, client *contracthtlc.Client, p EVMParams) ([32]byte, error) {
	return client.ComputeSwapID(ctx, p.Sender, p.Receiver, p.Token, p.Amount, p.SecretHash, p.Timelock, p.Nonce)
}

// CreateSwap funds an EVM HTLC leg, routing to the native-token or
// ERC-20 contract method depending on whether Token is the zero address.
// privKey signs the funding transaction; it is supplied by the wallet
// layer and never touched or stored by this package.
func CreateSwap(ctx context.Context, client *contracthtlc.Client, privKey *ecdsa.PrivateKey, id [32]byte, p EVMParams) (*types.Transaction, error) {
	if isZeroAddress(p.Token) {
		return client.CreateSwapNative(ctx, privKey, id, p.Receiver, p.SecretHash, p.Timelock, p.Amount)
	}
	return client.CreateSwapERC20(ctx, privKey, id, p.Receiver, p.Token, p.Amount, p.SecretHash, p.Timelock)
}

func isZeroAddress(a common.Address) bool {
	return a == common.Address{}
}
