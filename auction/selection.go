package auction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SelectCandidates freezes bidding, snapshots each candidate's live
// per-asset aggregates into the selection register, and records the earliest
// time End may run. Operator-only; the deadline must be strictly in the
// future. Duplicate addresses keep their first occurrence so a candidate can
// never be finalized twice.
func (a *Auction) SelectCandidates(caller string, candidates []string, deadline time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.operator {
		return fmt.Errorf("selectCandidates: %w", ErrNotOwner)
	}
	if a.phase != Open {
		return fmt.Errorf("selectCandidates: %w", ErrAuctionStopped)
	}
	if !deadline.After(a.now()) {
		return fmt.Errorf("selectCandidates: %w", ErrDeadline)
	}

	seen := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if seen[cand] {
			continue
		}
		seen[cand] = true
		a.candidates = append(a.candidates, cand)

		entry := make(map[string]decimal.Decimal)
		for _, asset := range a.assets {
			if amt := a.userBids[cand][asset]; amt.IsPositive() {
				entry[asset] = amt
			}
		}
		a.selected[cand] = entry
	}

	a.phase = Frozen
	a.deadline = deadline
	return nil
}

// Finalization reports what one candidate's finalization moved to the
// custodian.
type Finalization struct {
	Candidate string
	Amounts   map[string]decimal.Decimal
}

// End finalizes candidates in selection order up to and including the
// position-th (1-based), transferring each one's remaining frozen per-asset
// amounts to the custodian and zeroing the register entries and underlying
// bids so they can never be cancelled, refunded, or finalized again.
// Re-calling with a larger position processes only the additional
// candidates; the first successful call moves the phase to Settled and
// later batches run there. Returns one Finalization per newly processed
// candidate.
func (a *Auction) End(caller, custodian string, position int) ([]Finalization, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if caller != a.operator {
		return nil, fmt.Errorf("end: %w", ErrNotOwner)
	}
	if a.phase == Open {
		return nil, fmt.Errorf("end: %w", ErrTooEarly)
	}
	if position > len(a.candidates) {
		return nil, fmt.Errorf("end: position %d of %d: %w", position, len(a.candidates), ErrPositionTooLarge)
	}
	if a.now().Before(a.deadline) {
		return nil, fmt.Errorf("end: %w", ErrTooEarly)
	}

	// All bookkeeping runs before any transfer. The escrow check up front
	// keeps the operation all-or-nothing without unwinding ledger state.
	totals := make(map[string]decimal.Decimal)
	for i := a.finalized; i < position; i++ {
		entry := a.selected[a.candidates[i]]
		for _, asset := range a.assets {
			if amt := entry[asset]; amt.IsPositive() {
				totals[asset] = totals[asset].Add(amt)
			}
		}
	}
	for _, asset := range a.assets {
		if need := totals[asset]; need.IsPositive() {
			if a.tokens[asset].BalanceOf(a.address).LessThan(need) {
				return nil, fmt.Errorf("end: escrow short of %s %s", need, asset)
			}
		}
	}

	var batch []Finalization
	for i := a.finalized; i < position; i++ {
		cand := a.candidates[i]
		entry := a.selected[cand]
		fin := Finalization{Candidate: cand, Amounts: make(map[string]decimal.Decimal)}
		for _, asset := range a.assets {
			amt := entry[asset]
			if !amt.IsPositive() {
				continue
			}
			entry[asset] = decimal.Zero
			a.consumeLiveBids(cand, asset, amt)
			fin.Amounts[asset] = amt
		}
		batch = append(batch, fin)
	}
	if position > a.finalized {
		a.finalized = position
	}
	a.phase = Settled

	for _, fin := range batch {
		for _, asset := range a.assets {
			amt, ok := fin.Amounts[asset]
			if !ok {
				continue
			}
			if err := a.tokens[asset].Transfer(a.address, custodian, amt); err != nil {
				// Unreachable after the escrow check above short of a token
				// capability violating its own accounting.
				return nil, fmt.Errorf("end: %w", err)
			}
		}
	}
	return batch, nil
}

// consumeLiveBids zeroes owner's live bids in asset, oldest first, until
// amount is covered. Assumes the lock is held. The selection register keeps
// entries equal to the owner's live aggregate, so consumption always lands
// exactly on bid boundaries; the partial-take path guards the arithmetic
// regardless.
func (a *Auction) consumeLiveBids(owner, asset string, amount decimal.Decimal) {
	remaining := amount
	for _, bid := range a.bids {
		if remaining.IsZero() {
			return
		}
		if bid.Owner != owner || bid.Asset != asset || !bid.Live || bid.Amount.IsZero() {
			continue
		}
		take := bid.Amount
		if take.GreaterThan(remaining) {
			take = remaining
		}
		bid.Amount = bid.Amount.Sub(take)
		if bid.Amount.IsZero() {
			bid.Live = false
			a.subPower(owner, bid.Power)
		}
		a.debitLive(owner, asset, take)
		remaining = remaining.Sub(take)
	}
}

// reduceSelection keeps an unfinalized candidate's register entry consistent
// with their remaining live amount after a cancel. Assumes the lock is held.
// Finalized entries are already zero, so they are never touched.
func (a *Auction) reduceSelection(owner, asset string, amount decimal.Decimal) {
	entry, ok := a.selected[owner]
	if !ok {
		return
	}
	cur := entry[asset]
	if cur.IsZero() {
		return
	}
	if amount.GreaterThan(cur) {
		amount = cur
	}
	entry[asset] = cur.Sub(amount)
}

// Candidates returns the recorded candidate list in finalization order.
func (a *Auction) Candidates() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.candidates))
	copy(out, a.candidates)
	return out
}

// Finalized reports how many candidates have been finalized so far.
func (a *Auction) Finalized() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}

// SelectedAmount reports the remaining frozen, not-yet-finalized amount for
// a candidate in an asset.
func (a *Auction) SelectedAmount(candidate, asset string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected[candidate][asset]
}
