package walletconn

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/tyler-smith/go-bip39"
)

// ValidRecoveryPhrase reports whether mnemonic is a well-formed BIP-39
// recovery phrase for the wordlist and checksum it claims. It performs no
// key derivation and never sees a seed or private key — a connector uses
// this only to reject an obviously malformed phrase before handing it to
// the actual wallet the connector fronts (key management itself is out of
// scope here, see package doc).
func ValidRecoveryPhrase(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// ValidEd25519PubKey reports whether raw decodes to a point on the
// Edwards25519 curve, for connectors fronting Ed25519-keyed chains that
// need to validate a counterparty-supplied public key before it is stored
// in an address book entry.
func ValidEd25519PubKey(raw []byte) error {
	if len(raw) != 32 {
		return fmt.Errorf("walletconn: ed25519 pubkey must be 32 bytes, got %d", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("walletconn: invalid edwards25519 point: %w", err)
	}
	return nil
}
