package coordinator

import (
	"context"
	"fmt"

	"github.com/klingon-exchange/klingon-v2/internal/exchange"
)

// handleInitRequest carries out the ActionInitRequest side effect: it
// computes both legs' HTLC timelock deadlines from the current chain
// heights (spec §4.3's timelock formula) and, for whichever leg(s) this
// node owns, announces its own Initialized message.
func (c *Coordinator) handleInitRequest(ctx context.Context, id exchange.SwapID) error {
	tx, ok := c.svc.Transaction(id)
	if !ok {
		return fmt.Errorf("coordinator: unknown swap %s", id)
	}

	if err := c.applyLockTimes(ctx, tx); err != nil {
		return err
	}

	st, err := c.state(id)
	if err != nil {
		return err
	}

	var errs []error
	if c.ownsLeg(tx.AParty.Currency) {
		if err := c.announceInit(id, st, exchange.RoleA); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ownsLeg(tx.BParty.Currency) {
		if err := c.announceInit(id, st, exchange.RoleB); err != nil {
			errs = append(errs, err)
		}
	}
	return firstErr(errs)
}

// applyLockTimes fetches each leg's current chain height and the
// registry's block-time parameters, then records the resulting absolute
// lock-time deadlines on the transaction. SetLockTimes is idempotent, so
// a retry after a height-fetch failure on one leg is safe.
func (c *Coordinator) applyLockTimes(ctx context.Context, tx *exchange.Transaction) error {
	heightA, err := c.connector.CurrentBlockHeight(ctx, tx.AParty.Currency)
	if err != nil {
		return fmt.Errorf("coordinator: fetch %s height: %w", tx.AParty.Currency, err)
	}
	heightB, err := c.connector.CurrentBlockHeight(ctx, tx.BParty.Currency)
	if err != nil {
		return fmt.Errorf("coordinator: fetch %s height: %w", tx.BParty.Currency, err)
	}

	registry := c.svc.Registry()
	paramsA, _ := registry.Params(tx.AParty.Currency)
	paramsB, _ := registry.Params(tx.BParty.Currency)

	if err := c.svc.SetLockTimes(tx.ID, heightA, heightB, paramsA.BlockTimeSeconds, paramsB.BlockTimeSeconds); err != nil {
		return fmt.Errorf("coordinator: set lock times: %w", err)
	}
	return nil
}

func (c *Coordinator) announceInit(id exchange.SwapID, st *swapState, r exchange.Role) error {
	c.mu.Lock()
	already := (r == exchange.RoleA && st.aInitSent) || (r == exchange.RoleB && st.bInitSent)
	c.mu.Unlock()
	if already {
		return nil
	}

	priv := st.aPriv
	if r == exchange.RoleB {
		priv = st.bPriv
	}

	err := c.svc.Announce(exchange.Initialized{
		ID:       id,
		From:     r,
		DataTxID: dataCommitment(id, r),
		PeerPK:   fmt.Sprintf("%x", compressedPubKey(priv)),
	})
	if err != nil {
		return fmt.Errorf("coordinator: announce %s init: %w", r, err)
	}

	c.mu.Lock()
	if r == exchange.RoleA {
		st.aInitSent = true
	} else {
		st.bInitSent = true
	}
	c.mu.Unlock()
	return nil
}

func firstErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
