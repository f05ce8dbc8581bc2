package coordinator

import "github.com/klingon-exchange/klingon-v2/internal/exchange"

// Coordinator also implements exchange.Observer, purely to learn when a
// swap reaches a terminal state so it can drop its cached keys and secret
// for it (forget). Register it with Service.Subscribe alongside its use as
// the ActionHandler.
var _ exchange.Observer = (*Coordinator)(nil)

func (c *Coordinator) PendingTransactionReceived(order *exchange.Order) {}

func (c *Coordinator) PendingOrderExpired(order *exchange.Order) {}

func (c *Coordinator) TransactionStateChanged(id exchange.SwapID, state exchange.State) {
	if state.IsTerminal() {
		c.forget(id)
	}
}

func (c *Coordinator) TransactionCancelled(id exchange.SwapID, state exchange.State, reason exchange.CancelReason) {
	c.forget(id)
}

func (c *Coordinator) AddressBookEntryReceived(currency, name, address string) {}

func (c *Coordinator) LogMessage(msg string) {}
