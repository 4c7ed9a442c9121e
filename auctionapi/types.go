// Package auctionapi defines the JSON wire types spoken by auctiond clients.
// Every request carries a "type" field used for dispatch; amounts travel as
// decimal strings in the asset's smallest unit.
package auctionapi

import (
	"encoding/json"
	"time"
)

// Request type tags.
const (
	TypePing         = "ping"
	TypeApprove      = "approve_request"
	TypeBid          = "bid_request"
	TypeCancel       = "cancel_request"
	TypeRefund       = "refund_request"
	TypeSelect       = "select_request"
	TypeEnd          = "end_request"
	TypeStatus       = "status_request"
	TypeQueue        = "queue_request"
	TypeExecute      = "execute_request"
	TypeCancelQueued = "cancel_queued_request"
)

// Governance call targets and signatures accepted by the timelock.
const (
	GovTargetAuction = "auction"
	GovSigSelect     = "select"
	GovSigEnd        = "end"
)

// ApproveRequest lets a bidder grant the escrow a spending allowance before
// bidding.
type ApproveRequest struct {
	Type    string `json:"type"`
	Caller  string `json:"caller"`
	Asset   string `json:"asset"`
	Amount  string `json:"amount"`
	Spender string `json:"spender,omitempty"` // defaults to the escrow address
}

// BidRequest places a new weighted bid.
type BidRequest struct {
	Type   string `json:"type"`
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
	Tier   int    `json:"tier"`
}

// BidResponse reports the ledger index and normalized power of the accepted
// bid.
type BidResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	BidIndex int    `json:"bid_index"`
	Power    string `json:"power"`
}

// CancelRequest withdraws a live bid by index, booking its amount as a
// refundable credit.
type CancelRequest struct {
	Type     string `json:"type"`
	Caller   string `json:"caller"`
	BidIndex int    `json:"bid_index"`
}

// RefundRequest sweeps all of the caller's refundable credits.
type RefundRequest struct {
	Type   string `json:"type"`
	Caller string `json:"caller"`
}

// RefundResponse reports the per-asset amounts returned to the caller.
type RefundResponse struct {
	Type    string            `json:"type"`
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Swept   map[string]string `json:"swept,omitempty"`
}

// SelectRequest freezes bidding and records the winning candidates together
// with the settlement timelock deadline. Operator only.
type SelectRequest struct {
	Type       string    `json:"type"`
	Caller     string    `json:"caller"`
	Candidates []string  `json:"candidates"`
	Deadline   time.Time `json:"deadline"`
}

// EndRequest finalizes candidates up to the given 1-based position, moving
// their frozen collateral to the custodian. Operator only.
type EndRequest struct {
	Type      string `json:"type"`
	Caller    string `json:"caller"`
	Custodian string `json:"custodian"`
	Position  int    `json:"position"`
}

// FinalizedCandidate reports what one candidate's finalization moved.
type FinalizedCandidate struct {
	Candidate string            `json:"candidate"`
	Amounts   map[string]string `json:"amounts"`
}

// EndResponse reports the finalized batch and carries a signed settlement
// receipt for off-system verification.
type EndResponse struct {
	Type      string               `json:"type"`
	Success   bool                 `json:"success"`
	Message   string               `json:"message,omitempty"`
	Finalized []FinalizedCandidate `json:"finalized,omitempty"`
	Receipt   string               `json:"receipt,omitempty"` // base64 COSE Sign1
}

// StatusRequest queries the ledger. Caller is optional; when present the
// response includes that bidder's aggregates.
type StatusRequest struct {
	Type   string `json:"type"`
	Caller string `json:"caller,omitempty"`
}

// StatusResponse reports the current phase and, when a caller was named,
// their power and per-asset live and refundable amounts.
type StatusResponse struct {
	Type        string            `json:"type"`
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Phase       string            `json:"phase"`
	Biddable    bool              `json:"biddable"`
	BidCount    int               `json:"bid_count"`
	BidderCount int               `json:"bidder_count"`
	Deadline    *time.Time        `json:"deadline,omitempty"`
	Candidates  []string          `json:"candidates,omitempty"`
	FinalizedN  int               `json:"finalized"`
	Power       string            `json:"power,omitempty"`
	LiveBids    map[string]string `json:"live_bids,omitempty"`
	Refundable  map[string]string `json:"refundable,omitempty"`
}

// GovernanceRequest queues, executes, or cancels a timelocked operator call.
// Data carries the target operation's own request JSON (a SelectRequest or
// EndRequest) and is handed to the handler verbatim, so the queued hash
// commits to the exact call being scheduled.
type GovernanceRequest struct {
	Type      string          `json:"type"`
	Caller    string          `json:"caller"`
	Target    string          `json:"target"`
	Signature string          `json:"signature"`
	Data      json.RawMessage `json:"data"`
	ETA       time.Time       `json:"eta"`
}

// QueueResponse reports the queued call's hash, needed to execute or cancel
// it later.
type QueueResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	CallHash string `json:"call_hash,omitempty"`
}

// GenericResponse is used by operations whose result is only success or an
// error message.
type GenericResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
