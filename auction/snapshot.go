package auction

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/decus-io/keeper-auction/token"
)

// snapshotVersion guards against restoring a snapshot written by an
// incompatible layout.
const snapshotVersion = 1

// Amounts travel as decimal strings so the snapshot stays exact and
// independent of any binary decimal encoding.
type snapshotBid struct {
	Index  int    `cbor:"index"`
	Owner  string `cbor:"owner"`
	Asset  string `cbor:"asset"`
	Amount string `cbor:"amount"`
	Tier   int    `cbor:"tier"`
	Power  string `cbor:"power"`
	Live   bool   `cbor:"live"`
}

type snapshot struct {
	Version     int                          `cbor:"version"`
	Address     string                       `cbor:"address"`
	Operator    string                       `cbor:"operator"`
	Assets      []string                     `cbor:"assets"`
	Tiers       []string                     `cbor:"tiers"`
	Phase       int                          `cbor:"phase"`
	Deadline    int64                        `cbor:"deadline"` // unix seconds, 0 when unset
	Bids        []snapshotBid                `cbor:"bids"`
	BidderCount int                          `cbor:"bidder_count"`
	Power       map[string]string            `cbor:"power"`
	UserBids    map[string]map[string]string `cbor:"user_bids"`
	Refundable  map[string]map[string]string `cbor:"refundable"`
	Candidates  []string                     `cbor:"candidates"`
	Selected    map[string]map[string]string `cbor:"selected"`
	Finalized   int                          `cbor:"finalized"`
}

// Snapshot serializes the full ledger state to CBOR. Token capabilities are
// not part of the snapshot; Restore re-binds them by asset address.
func (a *Auction) Snapshot() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := snapshot{
		Version:     snapshotVersion,
		Address:     a.address,
		Operator:    a.operator,
		Assets:      append([]string(nil), a.assets...),
		Phase:       int(a.phase),
		BidderCount: a.bidderCount,
		Power:       flattenAmounts(a.bidderPower),
		UserBids:    flattenNested(a.userBids),
		Refundable:  flattenNested(a.refundable),
		Candidates:  append([]string(nil), a.candidates...),
		Selected:    flattenNested(a.selected),
		Finalized:   a.finalized,
	}
	for _, m := range a.tiers {
		s.Tiers = append(s.Tiers, m.String())
	}
	if !a.deadline.IsZero() {
		s.Deadline = a.deadline.Unix()
	}
	for _, bid := range a.bids {
		s.Bids = append(s.Bids, snapshotBid{
			Index:  bid.Index,
			Owner:  bid.Owner,
			Asset:  bid.Asset,
			Amount: bid.Amount.String(),
			Tier:   bid.Tier,
			Power:  bid.Power.String(),
			Live:   bid.Live,
		})
	}
	return cbor.Marshal(s)
}

// Restore rebuilds an Auction from a snapshot, re-binding the given token
// capabilities by address. Every accepted asset recorded in the snapshot
// must be present among toks.
func Restore(data []byte, toks []token.Token, now func() time.Time) (*Auction, error) {
	var s snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("restore: decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("restore: unsupported snapshot version %d", s.Version)
	}

	byAddr := make(map[string]token.Token, len(toks))
	for _, tok := range toks {
		byAddr[tok.Address()] = tok
	}
	if now == nil {
		now = time.Now
	}

	a := &Auction{
		address:     s.Address,
		operator:    s.Operator,
		tokens:      make(map[string]token.Token, len(s.Assets)),
		now:         now,
		bidderCount: s.BidderCount,
		phase:       Phase(s.Phase),
		candidates:  append([]string(nil), s.Candidates...),
		finalized:   s.Finalized,
	}
	for _, asset := range s.Assets {
		tok, ok := byAddr[asset]
		if !ok {
			return nil, fmt.Errorf("restore: no token capability for asset %s", asset)
		}
		a.tokens[asset] = tok
		a.assets = append(a.assets, asset)
	}
	for _, m := range s.Tiers {
		d, err := decimal.NewFromString(m)
		if err != nil {
			return nil, fmt.Errorf("restore: tier multiplier %q: %w", m, err)
		}
		a.tiers = append(a.tiers, d)
	}
	if s.Deadline != 0 {
		a.deadline = time.Unix(s.Deadline, 0).UTC()
	}

	var err error
	if a.bidderPower, err = expandAmounts(s.Power); err != nil {
		return nil, fmt.Errorf("restore: power: %w", err)
	}
	if a.userBids, err = expandNested(s.UserBids); err != nil {
		return nil, fmt.Errorf("restore: user bids: %w", err)
	}
	if a.refundable, err = expandNested(s.Refundable); err != nil {
		return nil, fmt.Errorf("restore: refundable: %w", err)
	}
	if a.selected, err = expandNested(s.Selected); err != nil {
		return nil, fmt.Errorf("restore: selected: %w", err)
	}
	for _, sb := range s.Bids {
		amount, err := decimal.NewFromString(sb.Amount)
		if err != nil {
			return nil, fmt.Errorf("restore: bid %d amount %q: %w", sb.Index, sb.Amount, err)
		}
		power, err := decimal.NewFromString(sb.Power)
		if err != nil {
			return nil, fmt.Errorf("restore: bid %d power %q: %w", sb.Index, sb.Power, err)
		}
		a.bids = append(a.bids, &Bid{
			Index:  sb.Index,
			Owner:  sb.Owner,
			Asset:  sb.Asset,
			Amount: amount,
			Tier:   sb.Tier,
			Power:  power,
			Live:   sb.Live,
		})
	}
	return a, nil
}

func flattenAmounts(m map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}

func expandAmounts(m map[string]string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", k, v, err)
		}
		out[k] = d
	}
	return out, nil
}

func flattenNested(m map[string]map[string]decimal.Decimal) map[string]map[string]string {
	out := make(map[string]map[string]string, len(m))
	for k, inner := range m {
		out[k] = flattenAmounts(inner)
	}
	return out
}

func expandNested(m map[string]map[string]string) (map[string]map[string]decimal.Decimal, error) {
	out := make(map[string]map[string]decimal.Decimal, len(m))
	for k, inner := range m {
		expanded, err := expandAmounts(inner)
		if err != nil {
			return nil, err
		}
		out[k] = expanded
	}
	return out, nil
}
