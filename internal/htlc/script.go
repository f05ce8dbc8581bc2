// Package htlc builds the hashed-timelock-contract redeem scripts and
// secret/hash material that back a Transaction's two legs (spec §3, "each
// leg settles through a chain-specific HTLC"). It never touches a private
// key: script construction and address derivation only need the two
// parties' public keys, and no signing happens in this module.
package htlc

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/klingon-exchange/klingon-v2/internal/chain"
	"github.com/klingon-exchange/klingon-v2/pkg/helpers"
)

// Script holds everything needed to fund, claim, or refund a Bitcoin-family
// HTLC output.
type Script struct {
	Raw        []byte // the full redeem script, placed in the witness
	Address    string // P2WSH address derived from Raw
	ScriptHash [32]byte

	SecretHash     [32]byte
	ReceiverPubKey []byte
	SenderPubKey   []byte
	TimeoutBlocks  uint32
}

// Build constructs the standard claim-with-secret / refund-after-timeout
// HTLC script:
//
//	OP_IF
//	    OP_SHA256 <secret_hash> OP_EQUALVERIFY
//	    <receiver_pubkey> OP_CHECKSIG
//	OP_ELSE
//	    <timeout_blocks> OP_CHECKSEQUENCEVERIFY OP_DROP
//	    <sender_pubkey> OP_CHECKSIG
//	OP_ENDIF
//
// receiver is the party that can claim by revealing the secret; sender is
// the party that can refund once timeoutBlocks have elapsed since
// confirmation (a relative, CSV-encoded timelock — the per-leg absolute
// block-height deadlines the exchange state machine tracks are translated
// to this relative value by the caller).
func Build(secretHash, receiverPubKey, senderPubKey []byte, timeoutBlocks uint32) (*Script, error) {
	if len(secretHash) != 32 {
		return nil, fmt.Errorf("htlc: secret hash must be 32 bytes, got %d", len(secretHash))
	}
	if len(receiverPubKey) != 33 {
		return nil, fmt.Errorf("htlc: receiver pubkey must be 33 bytes (compressed), got %d", len(receiverPubKey))
	}
	if len(senderPubKey) != 33 {
		return nil, fmt.Errorf("htlc: sender pubkey must be 33 bytes (compressed), got %d", len(senderPubKey))
	}
	if timeoutBlocks == 0 || timeoutBlocks > 0xFFFF {
		return nil, fmt.Errorf("htlc: timeout blocks %d out of CSV range (1-65535)", timeoutBlocks)
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(secretHash)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(receiverPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(timeoutBlocks))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(senderPubKey)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)

	raw, err := builder.Script()
	if err != nil {
		return nil, fmt.Errorf("htlc: build script: %w", err)
	}

	scriptHash := sha256.Sum256(raw)

	var hashCopy [32]byte
	copy(hashCopy[:], secretHash)

	return &Script{
		Raw:            raw,
		ScriptHash:     scriptHash,
		SecretHash:     hashCopy,
		ReceiverPubKey: append([]byte(nil), receiverPubKey...),
		SenderPubKey:   append([]byte(nil), senderPubKey...),
		TimeoutBlocks:  timeoutBlocks,
	}, nil
}

// DeriveAddress computes the P2WSH address a Script funds on the given
// chain and network.
func DeriveAddress(s *Script, symbol string, network chain.Network) (string, error) {
	params, err := chainParams(symbol, network)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessScriptHash(s.ScriptHash[:], params)
	if err != nil {
		return "", fmt.Errorf("htlc: derive address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

func chainParams(symbol string, network chain.Network) (*chaincfg.Params, error) {
	mainnet := network == chain.Mainnet
	switch symbol {
	case "BTC":
		if mainnet {
			return &chaincfg.MainNetParams, nil
		}
		return &chaincfg.TestNet3Params, nil
	case "LTC", "DOGE":
		// These chains share Bitcoin's script semantics; callers supply
		// chain-specific chaincfg.Params when their witness version
		// prefixes differ from Bitcoin's (spec Non-goals: exact
		// per-chain address prefix tables are a connector-layer concern).
		if mainnet {
			return &chaincfg.MainNetParams, nil
		}
		return &chaincfg.TestNet3Params, nil
	default:
		return nil, fmt.Errorf("htlc: no chain params for %s", symbol)
	}
}

// ClaimWitness builds the witness stack that spends the OP_IF branch with
// the revealed secret.
func ClaimWitness(signature, secret, script []byte) [][]byte {
	return [][]byte{signature, secret, {0x01}, script}
}

// RefundWitness builds the witness stack that spends the OP_ELSE branch
// after the relative timelock has matured.
func RefundWitness(signature, script []byte) [][]byte {
	return [][]byte{signature, {}, script}
}

// PubKey parses a 33-byte compressed secp256k1 public key.
func PubKey(compressed []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(compressed)
}

// ParseRefundScalar parses the raw 32-byte s-component of a refund-path
// signature into a reduced mod-n scalar, rejecting values the curve order
// would otherwise silently wrap. Connectors that verify a counterparty's
// refund signature before releasing a co-signed refund transaction call
// this ahead of the usual ecdsa.Verify to catch a malformed or
// non-canonical s-value early.
func ParseRefundScalar(raw [32]byte) (*secp256k1.ModNScalar, bool) {
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetBytes(&raw)
	if overflow != 0 {
		return nil, false
	}
	return &scalar, true
}

// ParseFundingTxID validates a counterparty-reported funding transaction id
// and returns it in chainhash's canonical byte order, rejecting malformed
// hex before a leg's funding_txid field is ever recorded.
func ParseFundingTxID(txid string) (*chainhash.Hash, error) {
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("htlc: parse funding txid: %w", err)
	}
	return h, nil
}

// GenerateSecret produces a cryptographically random 32-byte secret and
// its SHA256 hash.
func GenerateSecret() (secret, hash [32]byte, err error) {
	raw, err := helpers.GenerateSecureRandom(32)
	if err != nil {
		return secret, hash, fmt.Errorf("htlc: generate secret: %w", err)
	}
	copy(secret[:], raw)
	hash = sha256.Sum256(secret[:])
	return secret, hash, nil
}

// VerifySecret reports whether secret hashes to expected.
func VerifySecret(secret, expected [32]byte) bool {
	sum := sha256.Sum256(secret[:])
	return sum == expected
}
