package auction

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/decus-io/keeper-auction/token"
)

const (
	operator  = "operator"
	escrow    = "auction"
	custodian = "custodian"
	alice     = "alice"
	bob       = "bob"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testClock is a manually advanced clock shared by an auction under test.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// newTestAuction builds an auction over two demo assets mirroring the
// 18-decimal / 8-decimal pairing the scoring formula is calibrated against,
// with supply split between alice and bob.
func newTestAuction(t *testing.T) (*Auction, *testClock, *token.StandardToken, *token.StandardToken) {
	t.Helper()

	hbtc := token.NewStandardToken("0xhbtc", "Huobi Bitcoin", "HBTC", 18, dec("8000000000000000000"), alice)
	wbtc := token.NewStandardToken("0xwbtc", "Wrapped Bitcoin", "WBTC", 8, dec("800000000"), alice)
	assert.NoError(t, hbtc.Transfer(alice, bob, dec("4000000000000000000")))
	assert.NoError(t, wbtc.Transfer(alice, bob, dec("400000000")))

	clock := newTestClock()
	a, err := New(Params{
		Address:  escrow,
		Operator: operator,
		Tokens:   []token.Token{hbtc, wbtc},
		Now:      clock.Now,
	})
	assert.NoError(t, err)
	return a, clock, hbtc, wbtc
}

// mustBid approves and places a bid, failing the test on any error.
func mustBid(t *testing.T, a *Auction, tok *token.StandardToken, bidder string, tier int, amount string) int {
	t.Helper()
	amt := dec(amount)
	tok.Approve(bidder, a.Address(), amt)
	index, _, err := a.Bid(bidder, tier, tok.Address(), amt)
	assert.NoError(t, err)
	return index
}

// checkBidderCountInvariant verifies that BidderCount equals the number of
// distinct addresses with positive power.
func checkBidderCountInvariant(t *testing.T, a *Auction) {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	distinct := 0
	for _, p := range a.bidderPower {
		if p.IsPositive() {
			distinct++
		}
	}
	assert.Equal(t, distinct, a.bidderCount)
}
