package coordinator

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
	"github.com/klingon-exchange/klingon-v2/internal/htlc"
)

// scriptableCurrencies are the chains htlc.Build/DeriveAddress know how to
// script: the Bitcoin-family UTXO chains. EVM, Monero, and Solana legs
// need a contract call, a subaddress scheme, or a program account
// respectively instead of a redeem script, none of which this coordinator
// builds; those legs are left for a chain-specific coordinator backend
// (see DESIGN.md).
var scriptableCurrencies = map[string]bool{
	"BTC":  true,
	"LTC":  true,
	"DOGE": true,
}

func isScriptableCurrency(symbol string) bool {
	return scriptableCurrencies[symbol]
}

// handleCreateRequest carries out the ActionCreateRequest side effect:
// for whichever scriptable leg(s) this node owns, it builds the HTLC
// redeem script, derives the funding address, and — once the connector
// observes that address funded — announces Created with the funding
// tx id and redeem script.
func (c *Coordinator) handleCreateRequest(ctx context.Context, id exchange.SwapID) error {
	tx, ok := c.svc.Transaction(id)
	if !ok {
		return fmt.Errorf("coordinator: unknown swap %s", id)
	}
	st, err := c.state(id)
	if err != nil {
		return err
	}

	var errs []error
	if c.ownsLeg(tx.AParty.Currency) && isScriptableCurrency(tx.AParty.Currency) {
		if err := c.announceCreated(ctx, tx, st, exchange.RoleA); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ownsLeg(tx.BParty.Currency) && isScriptableCurrency(tx.BParty.Currency) {
		if err := c.announceCreated(ctx, tx, st, exchange.RoleB); err != nil {
			errs = append(errs, err)
		}
	}
	return firstErr(errs)
}

// legScript returns the script the HTLC on r's leg funds into: the
// claiming party is the *other* role (it learns the secret from the
// opposite leg first), and the refunding party is r itself, after r's own
// timelock window.
func (c *Coordinator) legScript(tx *exchange.Transaction, st *swapState, r exchange.Role) (*htlc.Script, string, error) {
	currency := tx.AParty.Currency
	window := exchange.TimelockWindowASeconds
	senderPriv, receiverPriv := st.aPriv, st.bPriv
	if r == exchange.RoleB {
		currency = tx.BParty.Currency
		window = exchange.TimelockWindowBSeconds
		senderPriv, receiverPriv = st.bPriv, st.aPriv
	}

	params, _ := c.svc.Registry().Params(currency)
	timeoutBlocks := exchange.BlocksForWindow(window, params.BlockTimeSeconds)

	script, err := htlc.Build(st.secretHash[:], compressedPubKey(receiverPriv), compressedPubKey(senderPriv), timeoutBlocks)
	if err != nil {
		return nil, "", fmt.Errorf("coordinator: build %s HTLC script: %w", currency, err)
	}
	return script, currency, nil
}

func (c *Coordinator) announceCreated(ctx context.Context, tx *exchange.Transaction, st *swapState, r exchange.Role) error {
	c.mu.Lock()
	already := (r == exchange.RoleA && st.aCreateSent) || (r == exchange.RoleB && st.bCreateSent)
	c.mu.Unlock()
	if already {
		return nil
	}

	script, currency, err := c.legScript(tx, st, r)
	if err != nil {
		return err
	}

	address, err := htlc.DeriveAddress(script, currency, c.network)
	if err != nil {
		return fmt.Errorf("coordinator: derive %s HTLC address: %w", currency, err)
	}

	utxos, err := c.connector.ListUnspent(ctx, currency, address)
	if err != nil {
		return fmt.Errorf("coordinator: list unspent at %s: %w", address, err)
	}
	if len(utxos) == 0 {
		c.log.Info("HTLC address not yet funded, will retry on the next create action",
			"swap_id", tx.ID, "role", r, "currency", currency, "address", address)
		return nil
	}

	err = c.svc.Announce(exchange.Created{
		ID:          tx.ID,
		From:        r,
		BinTxID:     utxos[0].TxID,
		InnerScript: hex.EncodeToString(script.Raw),
	})
	if err != nil {
		return fmt.Errorf("coordinator: announce %s created: %w", r, err)
	}

	c.mu.Lock()
	if r == exchange.RoleA {
		st.aCreateSent = true
	} else {
		st.bCreateSent = true
	}
	c.mu.Unlock()
	return nil
}
