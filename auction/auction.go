// Package auction implements a multi-asset weighted bidding auction: an
// escrowed bid ledger with normalized cross-asset scoring, a forward-only
// three-phase protocol (Open → Frozen → Settled), timelocked batch
// finalization to an external custodian, and refund accounting for
// everything that was not finalized.
package auction

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decus-io/keeper-auction/token"
)

// Phase is the global auction phase. It only ever moves forward.
type Phase int

const (
	// Open accepts bids.
	Open Phase = iota
	// Frozen has a recorded candidate selection and a running timelock;
	// bidding is rejected, cancelling is still allowed.
	Frozen
	// Settled has finalization in progress or complete.
	Settled
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "open"
	case Frozen:
		return "frozen"
	case Settled:
		return "settled"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Bid is one ledger record. Records are append-only and densely indexed;
// an index is a permanent identifier and is never reused.
type Bid struct {
	Index  int
	Owner  string
	Asset  string
	Amount decimal.Decimal
	Tier   int
	Power  decimal.Decimal
	Live   bool
}

// Params configures a new Auction.
type Params struct {
	// Address is the escrow identity all collateral is held under.
	Address string

	// Operator may freeze and finalize.
	Operator string

	// Tokens is the fixed accepted-asset list, in finalization order.
	Tokens []token.Token

	// Tiers is the duration-tier multiplier table. Defaults to DefaultTiers.
	Tiers []decimal.Decimal

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Auction owns the bid ledger and all escrowed balances. One mutex
// serializes every public operation; internal bookkeeping always completes
// before any token transfer so no caller can observe a half-applied state.
type Auction struct {
	mu       sync.Mutex
	address  string
	operator string
	tokens   map[string]token.Token
	assets   []string // accepted assets in construction order
	tiers    []decimal.Decimal
	now      func() time.Time

	bids        []*Bid
	bidderPower map[string]decimal.Decimal
	bidderCount int
	// userBids: owner → asset → aggregated live amount.
	userBids map[string]map[string]decimal.Decimal
	// refundable: owner → asset → cancelled, not-yet-swept amount.
	refundable map[string]map[string]decimal.Decimal

	phase      Phase
	deadline   time.Time
	candidates []string
	// selected: candidate → asset → frozen, not-yet-finalized amount.
	selected  map[string]map[string]decimal.Decimal
	finalized int // candidates finalized so far, in list order
}

func New(p Params) (*Auction, error) {
	if p.Address == "" || p.Operator == "" {
		return nil, fmt.Errorf("auction: address and operator are required")
	}
	if len(p.Tokens) == 0 {
		return nil, fmt.Errorf("auction: at least one accepted asset is required")
	}
	tiers := p.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	for i, m := range tiers {
		if !m.IsPositive() {
			return nil, fmt.Errorf("auction: tier %d multiplier must be positive, got %s", i, m)
		}
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	a := &Auction{
		address:     p.Address,
		operator:    p.Operator,
		tokens:      make(map[string]token.Token, len(p.Tokens)),
		tiers:       tiers,
		now:         now,
		bidderPower: make(map[string]decimal.Decimal),
		userBids:    make(map[string]map[string]decimal.Decimal),
		refundable:  make(map[string]map[string]decimal.Decimal),
		selected:    make(map[string]map[string]decimal.Decimal),
	}
	for _, tok := range p.Tokens {
		if _, dup := a.tokens[tok.Address()]; dup {
			return nil, fmt.Errorf("auction: duplicate accepted asset %s", tok.Address())
		}
		a.tokens[tok.Address()] = tok
		a.assets = append(a.assets, tok.Address())
	}
	return a, nil
}

// Bid escrows amount of asset for bidder at the given tier and appends a
// live bid record. Returns the new bid's permanent index and its normalized
// power. The bidder must have pre-approved at least amount to the auction's
// escrow address.
func (a *Auction) Bid(bidder string, tier int, asset string, amount decimal.Decimal) (int, decimal.Decimal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase != Open {
		return 0, decimal.Zero, fmt.Errorf("bid: %w", ErrAuctionStopped)
	}
	tok, ok := a.tokens[asset]
	if !ok {
		return 0, decimal.Zero, fmt.Errorf("bid: %s: %w", asset, ErrUnknownAsset)
	}
	if tier < 0 || tier >= len(a.tiers) {
		return 0, decimal.Zero, fmt.Errorf("bid: tier %d: %w", tier, ErrInvalidTier)
	}
	base := BasePower(amount, tok.Decimals())
	if base.LessThan(MinBidPower) {
		return 0, decimal.Zero, fmt.Errorf("bid: %w", ErrTooSmallAmount)
	}
	power := Power(base, a.tiers, tier)

	// Pull the collateral before touching the ledger so a failed transfer
	// leaves no partial state.
	if err := tok.TransferFrom(a.address, bidder, a.address, amount); err != nil {
		return 0, decimal.Zero, fmt.Errorf("bid: %w", err)
	}

	bid := &Bid{
		Index:  len(a.bids),
		Owner:  bidder,
		Asset:  asset,
		Amount: amount,
		Tier:   tier,
		Power:  power,
		Live:   true,
	}
	a.bids = append(a.bids, bid)
	a.creditLive(bidder, asset, amount)
	a.addPower(bidder, power)
	return bid.Index, power, nil
}

// Cancel marks the bid dead exactly once and books its full raw amount as a
// refundable credit for the owner, sweepable via Refund. Allowed in every
// phase: a bidder may always exit collateral that has not been finalized.
// If the owner is an unfinalized candidate, the frozen selection entry is
// decremented to stay consistent with the remaining live amount.
func (a *Auction) Cancel(caller string, index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= len(a.bids) {
		return fmt.Errorf("cancel: index %d: %w", index, ErrUnknownBid)
	}
	bid := a.bids[index]
	if bid.Owner != caller {
		return fmt.Errorf("cancel: %w", ErrNotOwner)
	}
	if !bid.Live || bid.Amount.IsZero() {
		return fmt.Errorf("cancel: %w", ErrZeroAmount)
	}

	amount := bid.Amount
	bid.Live = false
	bid.Amount = decimal.Zero

	a.debitLive(bid.Owner, bid.Asset, amount)
	a.subPower(bid.Owner, bid.Power)
	a.reduceSelection(bid.Owner, bid.Asset, amount)

	credits, ok := a.refundable[bid.Owner]
	if !ok {
		credits = make(map[string]decimal.Decimal)
		a.refundable[bid.Owner] = credits
	}
	credits[bid.Asset] = credits[bid.Asset].Add(amount)
	return nil
}

// BidderPower reports the cached sum of normalized power over addr's live
// bids.
func (a *Auction) BidderPower(addr string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bidderPower[addr]
}

// BidCount reports the total number of bid records ever created.
func (a *Auction) BidCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bids)
}

// BidderCount reports the number of distinct addresses with power > 0.
func (a *Auction) BidderCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bidderCount
}

// GetBid returns a copy of the bid record at index.
func (a *Auction) GetBid(index int) (Bid, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.bids) {
		return Bid{}, fmt.Errorf("getBid: index %d: %w", index, ErrUnknownBid)
	}
	return *a.bids[index], nil
}

// UserBids reports addr's aggregated live amount in asset.
func (a *Auction) UserBids(addr, asset string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userBids[addr][asset]
}

// Refundable reports addr's cancelled, not-yet-swept amount in asset.
func (a *Auction) Refundable(addr, asset string) decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refundable[addr][asset]
}

// Biddable reports whether new bids are accepted.
func (a *Auction) Biddable() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase == Open
}

func (a *Auction) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Deadline reports the earliest time finalization may run. Zero until
// candidates are selected.
func (a *Auction) Deadline() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline
}

// Assets returns the accepted asset list in construction order.
func (a *Auction) Assets() []string {
	out := make([]string, len(a.assets))
	copy(out, a.assets)
	return out
}

// Address returns the escrow identity collateral is held under.
func (a *Auction) Address() string { return a.address }

// creditLive assumes the lock is held.
func (a *Auction) creditLive(owner, asset string, amount decimal.Decimal) {
	m, ok := a.userBids[owner]
	if !ok {
		m = make(map[string]decimal.Decimal)
		a.userBids[owner] = m
	}
	m[asset] = m[asset].Add(amount)
}

// debitLive assumes the lock is held.
func (a *Auction) debitLive(owner, asset string, amount decimal.Decimal) {
	a.userBids[owner][asset] = a.userBids[owner][asset].Sub(amount)
}

// addPower assumes the lock is held. bidderCount moves exactly once per
// zero-crossing in either direction.
func (a *Auction) addPower(owner string, power decimal.Decimal) {
	prev := a.bidderPower[owner]
	next := prev.Add(power)
	a.bidderPower[owner] = next
	if prev.IsZero() && next.IsPositive() {
		a.bidderCount++
	}
}

// subPower assumes the lock is held.
func (a *Auction) subPower(owner string, power decimal.Decimal) {
	prev := a.bidderPower[owner]
	next := prev.Sub(power)
	a.bidderPower[owner] = next
	if prev.IsPositive() && next.IsZero() {
		a.bidderCount--
	}
}
