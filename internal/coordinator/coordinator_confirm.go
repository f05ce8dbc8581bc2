package coordinator

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
)

// handleConfirmRequest carries out the ActionConfirmRequest side effect.
// The Confirmed wire message carries no confirmation count, so the
// threshold check has to happen here, against this node's own view of its
// own funding tx, before it ever asserts Confirmed to its peer: it looks up
// the block the leg's HTLC funding tx confirmed in, computes the tx's
// current depth against the chain's tip, and only announces Confirmed once
// that depth meets the currency's configured RequiredConfirmations.
func (c *Coordinator) handleConfirmRequest(ctx context.Context, id exchange.SwapID) error {
	tx, ok := c.svc.Transaction(id)
	if !ok {
		return fmt.Errorf("coordinator: unknown swap %s", id)
	}

	var errs []error
	if c.ownsLeg(tx.AParty.Currency) {
		if err := c.announceConfirmed(ctx, tx, exchange.RoleA); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ownsLeg(tx.BParty.Currency) {
		if err := c.announceConfirmed(ctx, tx, exchange.RoleB); err != nil {
			errs = append(errs, err)
		}
	}
	return firstErr(errs)
}

func (c *Coordinator) announceConfirmed(ctx context.Context, tx *exchange.Transaction, r exchange.Role) error {
	st, err := c.state(tx.ID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	already := (r == exchange.RoleA && st.aConfirmSent) || (r == exchange.RoleB && st.bConfirmSent)
	c.mu.Unlock()
	if already {
		return nil
	}

	currency := tx.AParty.Currency
	receipt := tx.ACreated
	if r == exchange.RoleB {
		currency = tx.BParty.Currency
		receipt = tx.BCreated
	}
	if !receipt.Received {
		// This leg's Created hasn't landed yet; nothing to confirm.
		return nil
	}

	blockHeight, confirmed, err := c.connector.FetchTxBlock(ctx, currency, receipt.BinTxID)
	if err != nil {
		return fmt.Errorf("coordinator: fetch %s tx block for %s: %w", currency, receipt.BinTxID, err)
	}
	if !confirmed {
		c.log.Info("funding tx not yet confirmed", "swap_id", tx.ID, "role", r, "currency", currency, "tx_id", receipt.BinTxID)
		return nil
	}

	tip, err := c.connector.CurrentBlockHeight(ctx, currency)
	if err != nil {
		return fmt.Errorf("coordinator: fetch %s tip height: %w", currency, err)
	}
	if tip < uint32(blockHeight) {
		return fmt.Errorf("coordinator: %s tip %d is behind funding tx block %d", currency, tip, blockHeight)
	}
	depth := tip - uint32(blockHeight) + 1

	params, _ := c.svc.Registry().Params(currency)
	if depth < params.RequiredConfirmations {
		c.log.Debug("funding tx below required confirmation depth",
			"swap_id", tx.ID, "role", r, "currency", currency, "depth", depth, "required", params.RequiredConfirmations)
		return nil
	}

	if err := c.svc.Announce(exchange.Confirmed{ID: tx.ID, From: r}); err != nil {
		return fmt.Errorf("coordinator: announce %s confirmed: %w", r, err)
	}

	c.mu.Lock()
	if r == exchange.RoleA {
		st.aConfirmSent = true
	} else {
		st.bConfirmSent = true
	}
	c.mu.Unlock()
	return nil
}
