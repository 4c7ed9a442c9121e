package main

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/decus-io/keeper-auction/auction"
	"github.com/decus-io/keeper-auction/auctionapi"
	"github.com/decus-io/keeper-auction/journal"
	"github.com/decus-io/keeper-auction/receipt"
	"github.com/decus-io/keeper-auction/timelock"
	"github.com/decus-io/keeper-auction/token"
)

const (
	escrow    = "auction"
	operator  = "operator"
	custodian = "0xcustodian"
	alice     = "0xalice"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestServer(t *testing.T) (*AuctionServer, *testClock, *token.StandardToken, *journal.MemoryRecorder) {
	t.Helper()

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	wbtc := token.NewStandardToken("0xwbtc", "Wrapped Bitcoin", "WBTC", 8, decimal.RequireFromString("800000000"), alice)

	a, err := auction.New(auction.Params{
		Address:  escrow,
		Operator: operator,
		Tokens:   []token.Token{wbtc},
		Now:      clock.Now,
	})
	assert.NoError(t, err)

	signer, err := receipt.NewSigner()
	assert.NoError(t, err)

	lock, err := timelock.New(operator, timelock.MinimumDelay)
	assert.NoError(t, err)
	lock.SetClock(clock.Now)

	recorder := journal.NewMemoryRecorder()
	s := NewAuctionServer("127.0.0.1:0", 2, a, []token.Token{wbtc}, recorder, signer, lock)
	return s, clock, wbtc, recorder
}

func request(t *testing.T, s *AuctionServer, reqType string, req any) []byte {
	t.Helper()
	raw, err := json.Marshal(req)
	assert.NoError(t, err)
	resp, err := json.Marshal(s.dispatch(reqType, raw))
	assert.NoError(t, err)
	return resp
}

func TestDispatch_PingAndUnknown(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	var pong map[string]any
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypePing, map[string]string{"type": auctionapi.TypePing}), &pong))
	check.Equal(t, "pong", pong["type"])

	var unknown auctionapi.GenericResponse
	assert.NoError(t, json.Unmarshal(request(t, s, "bogus", map[string]string{"type": "bogus"}), &unknown))
	check.Equal(t, "error", unknown.Type)
	check.False(t, unknown.Success)
}

func TestDispatch_BidCancelRefundFlow(t *testing.T) {
	s, _, wbtc, recorder := newTestServer(t)

	var ok auctionapi.GenericResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeApprove, auctionapi.ApproveRequest{
		Type: auctionapi.TypeApprove, Caller: alice, Asset: "0xwbtc", Amount: "100000000",
	}), &ok))
	check.True(t, ok.Success)

	var bid auctionapi.BidResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeBid, auctionapi.BidRequest{
		Type: auctionapi.TypeBid, Caller: alice, Asset: "0xwbtc", Amount: "100000000", Tier: 0,
	}), &bid))
	assert.True(t, bid.Success)
	check.Equal(t, 0, bid.BidIndex)
	check.Equal(t, "1000000000", bid.Power)
	check.True(t, decimal.RequireFromString("100000000").Equal(wbtc.BalanceOf(escrow)))

	var status auctionapi.StatusResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeStatus, auctionapi.StatusRequest{
		Type: auctionapi.TypeStatus, Caller: alice,
	}), &status))
	check.Equal(t, "open", status.Phase)
	check.Equal(t, 1, status.BidderCount)
	check.Equal(t, "1000000000", status.Power)
	check.Equal(t, "100000000", status.LiveBids["0xwbtc"])

	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeCancel, auctionapi.CancelRequest{
		Type: auctionapi.TypeCancel, Caller: alice, BidIndex: 0,
	}), &ok))
	check.True(t, ok.Success)

	var refund auctionapi.RefundResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeRefund, auctionapi.RefundRequest{
		Type: auctionapi.TypeRefund, Caller: alice,
	}), &refund))
	assert.True(t, refund.Success)
	check.Equal(t, "100000000", refund.Swept["0xwbtc"])
	check.True(t, decimal.RequireFromString("800000000").Equal(wbtc.BalanceOf(alice)))

	kinds := make([]string, 0, 3)
	for _, evt := range recorder.Events() {
		kinds = append(kinds, evt.Kind)
	}
	check.Equal(t, []string{journal.KindBid, journal.KindCancel, journal.KindRefund}, kinds)
}

func TestDispatch_BidRejectionIsReported(t *testing.T) {
	s, _, _, recorder := newTestServer(t)

	// No allowance was granted, so the escrow pull fails.
	var bid auctionapi.BidResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeBid, auctionapi.BidRequest{
		Type: auctionapi.TypeBid, Caller: alice, Asset: "0xwbtc", Amount: "100000000", Tier: 0,
	}), &bid))
	check.False(t, bid.Success)
	check.NotEqual(t, "", bid.Message)
	check.Equal(t, 0, len(recorder.Events()))
}

func TestDispatch_SelectEndProducesVerifiableReceipt(t *testing.T) {
	s, clock, wbtc, _ := newTestServer(t)

	var ok auctionapi.GenericResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeApprove, auctionapi.ApproveRequest{
		Type: auctionapi.TypeApprove, Caller: alice, Asset: "0xwbtc", Amount: "100000000",
	}), &ok))

	var bid auctionapi.BidResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeBid, auctionapi.BidRequest{
		Type: auctionapi.TypeBid, Caller: alice, Asset: "0xwbtc", Amount: "100000000", Tier: 0,
	}), &bid))
	assert.True(t, bid.Success)

	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeSelect, auctionapi.SelectRequest{
		Type: auctionapi.TypeSelect, Caller: operator, Candidates: []string{alice}, Deadline: clock.Now().Add(time.Hour),
	}), &ok))
	assert.True(t, ok.Success)

	clock.Advance(2 * time.Hour)

	var end auctionapi.EndResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeEnd, auctionapi.EndRequest{
		Type: auctionapi.TypeEnd, Caller: operator, Custodian: custodian, Position: 1,
	}), &end))
	assert.True(t, end.Success)
	assert.Equal(t, 1, len(end.Finalized))
	check.Equal(t, alice, end.Finalized[0].Candidate)
	check.Equal(t, "100000000", end.Finalized[0].Amounts["0xwbtc"])
	check.True(t, decimal.RequireFromString("100000000").Equal(wbtc.BalanceOf(custodian)))

	raw, err := base64.StdEncoding.DecodeString(end.Receipt)
	assert.NoError(t, err)
	settlement, err := receipt.Verify(s.signer.PublicKey(), raw)
	assert.NoError(t, err)
	check.Equal(t, custodian, settlement.Custodian)
	check.Equal(t, 1, settlement.Position)
	assert.Equal(t, 1, len(settlement.Finalized))
	check.Equal(t, alice, settlement.Finalized[0].Candidate)
	check.Equal(t, []receipt.AssetTotal{{Asset: "0xwbtc", Amount: "100000000"}}, settlement.Finalized[0].Totals)

	var status auctionapi.StatusResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeStatus, auctionapi.StatusRequest{Type: auctionapi.TypeStatus}), &status))
	check.Equal(t, "settled", status.Phase)
	check.Equal(t, 1, status.FinalizedN)
}

func TestDispatch_GovernanceQueueExecute(t *testing.T) {
	s, clock, _, _ := newTestServer(t)

	var ok auctionapi.GenericResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeApprove, auctionapi.ApproveRequest{
		Type: auctionapi.TypeApprove, Caller: alice, Asset: "0xwbtc", Amount: "100000000",
	}), &ok))
	var bid auctionapi.BidResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeBid, auctionapi.BidRequest{
		Type: auctionapi.TypeBid, Caller: alice, Asset: "0xwbtc", Amount: "100000000", Tier: 0,
	}), &bid))
	assert.True(t, bid.Success)

	eta := clock.Now().Add(timelock.MinimumDelay)
	selectData, err := json.Marshal(auctionapi.SelectRequest{
		Caller: operator, Candidates: []string{alice}, Deadline: eta.Add(time.Hour),
	})
	assert.NoError(t, err)
	gov := auctionapi.GovernanceRequest{
		Caller:    operator,
		Target:    auctionapi.GovTargetAuction,
		Signature: auctionapi.GovSigSelect,
		Data:      selectData,
		ETA:       eta,
	}

	var queued auctionapi.QueueResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeQueue, gov), &queued))
	assert.True(t, queued.Success)
	check.NotEqual(t, "", queued.CallHash)

	// Execution before the ETA is refused and bidding stays open.
	var early auctionapi.GenericResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeExecute, gov), &early))
	check.False(t, early.Success)
	check.True(t, s.auction.Biddable())

	clock.Advance(timelock.MinimumDelay)
	var exec auctionapi.GenericResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeExecute, gov), &exec))
	assert.True(t, exec.Success)
	check.False(t, s.auction.Biddable())
	check.Equal(t, []string{alice}, s.auction.Candidates())

	// The call was consumed.
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeExecute, gov), &exec))
	check.False(t, exec.Success)
}

func TestDispatch_GovernanceAdminOnly(t *testing.T) {
	s, clock, _, _ := newTestServer(t)

	gov := auctionapi.GovernanceRequest{
		Caller:    alice,
		Target:    auctionapi.GovTargetAuction,
		Signature: auctionapi.GovSigSelect,
		Data:      json.RawMessage(`{}`),
		ETA:       clock.Now().Add(timelock.MinimumDelay),
	}
	var queued auctionapi.QueueResponse
	assert.NoError(t, json.Unmarshal(request(t, s, auctionapi.TypeQueue, gov), &queued))
	check.False(t, queued.Success)
}
