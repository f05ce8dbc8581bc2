package exchange

import (
	"fmt"

	"github.com/klingon-exchange/klingon-v2/internal/config"
)

// Registry holds the set of currencies a node is configured to
// market-make, each with its trading parameters (spec §4.1). It is
// initialized once from configuration and never mutated afterwards, so it
// needs no lock of its own.
type Registry struct {
	currencies map[string]config.CurrencyParams
}

// NewRegistry builds a Registry from resolved currency parameters.
func NewRegistry(currencies map[string]config.CurrencyParams) *Registry {
	cp := make(map[string]config.CurrencyParams, len(currencies))
	for k, v := range currencies {
		cp[k] = v
	}
	return &Registry{currencies: cp}
}

// EnabledCurrencies returns the set of currencies this node market-makes.
func (r *Registry) EnabledCurrencies() []string {
	out := make([]string, 0, len(r.currencies))
	for symbol := range r.currencies {
		out = append(out, symbol)
	}
	return out
}

// Has reports whether the currency is in the registry.
func (r *Registry) Has(currency string) bool {
	_, ok := r.currencies[currency]
	return ok
}

// Params returns the trading parameters for a currency.
func (r *Registry) Params(currency string) (config.CurrencyParams, bool) {
	p, ok := r.currencies[currency]
	return p, ok
}

// validateAmount checks an amount against a currency's configured bounds.
// Both sides of an order/accept go through this admission check.
func (r *Registry) validateAmount(currency string, amount uint64) error {
	params, ok := r.currencies[currency]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	if amount == 0 {
		return fmt.Errorf("%w: %s amount is zero", ErrInvalidAmount, currency)
	}
	if amount < params.MinAmount {
		return fmt.Errorf("%w: %s amount %d below minimum %d", ErrInvalidAmount, currency, amount, params.MinAmount)
	}
	if params.MaxAmount > 0 && amount > params.MaxAmount {
		return fmt.Errorf("%w: %s amount %d above maximum %d", ErrInvalidAmount, currency, amount, params.MaxAmount)
	}
	return nil
}
