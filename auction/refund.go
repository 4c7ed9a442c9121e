package auction

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Refund sweeps every refundable credit the caller holds — the amounts of
// their cancelled, unfinalized bids — back to them, one transfer per
// accepted asset, and zeroes the credits. Calling with nothing owed is a
// no-op, not an error. Funds already finalized to the custodian, and funds
// still backing live selected bids, are never touched; the latter become
// refundable only through Cancel.
func (a *Auction) Refund(caller string) (map[string]decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	credits := a.refundable[caller]
	swept := make(map[string]decimal.Decimal)
	for _, asset := range a.assets {
		amt := credits[asset]
		if !amt.IsPositive() {
			continue
		}
		if a.tokens[asset].BalanceOf(a.address).LessThan(amt) {
			return nil, fmt.Errorf("refund: escrow short of %s %s", amt, asset)
		}
		swept[asset] = amt
	}

	// Credits are zeroed before the transfers run, so the transfer capability
	// can never observe a state in which the same credit is still owed.
	for asset := range swept {
		credits[asset] = decimal.Zero
	}
	for _, asset := range a.assets {
		amt, ok := swept[asset]
		if !ok {
			continue
		}
		if err := a.tokens[asset].Transfer(a.address, caller, amt); err != nil {
			return nil, fmt.Errorf("refund: %w", err)
		}
	}
	return swept, nil
}
