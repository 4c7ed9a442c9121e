package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/decus-io/keeper-auction/auctionapi"
	"github.com/decus-io/keeper-auction/journal"
	"github.com/decus-io/keeper-auction/receipt"
	"github.com/decus-io/keeper-auction/timelock"
)

func (s *AuctionServer) dispatch(reqType string, raw []byte) any {
	switch reqType {
	case auctionapi.TypePing:
		return map[string]any{
			"type":      "pong",
			"message":   "auction server is healthy",
			"timestamp": time.Now().Unix(),
		}
	case auctionapi.TypeApprove:
		return s.handleApprove(raw)
	case auctionapi.TypeBid:
		return s.handleBid(raw)
	case auctionapi.TypeCancel:
		return s.handleCancel(raw)
	case auctionapi.TypeRefund:
		return s.handleRefund(raw)
	case auctionapi.TypeSelect:
		return s.handleSelect(raw)
	case auctionapi.TypeEnd:
		return s.handleEnd(raw)
	case auctionapi.TypeStatus:
		return s.handleStatus(raw)
	case auctionapi.TypeQueue, auctionapi.TypeExecute, auctionapi.TypeCancelQueued:
		return s.handleGovernance(reqType, raw)
	default:
		return errResponse(fmt.Sprintf("Unknown request type: %s", reqType))
	}
}

func errResponse(msg string) auctionapi.GenericResponse {
	return auctionapi.GenericResponse{Type: "error", Message: msg}
}

func (s *AuctionServer) record(evt *journal.Event) {
	if err := s.recorder.Record(evt); err != nil {
		log.Printf("ERROR: Failed to record %s event: %v", evt.Kind, err)
	}
}

func (s *AuctionServer) handleApprove(raw []byte) any {
	var req auctionapi.ApproveRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode approve request: %v", err))
	}
	tok, ok := s.tokens[req.Asset]
	if !ok {
		return errResponse(fmt.Sprintf("Unknown asset: %s", req.Asset))
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return errResponse(fmt.Sprintf("Invalid amount: %v", err))
	}
	spender := req.Spender
	if spender == "" {
		spender = s.auction.Address()
	}
	tok.Approve(req.Caller, spender, amount)
	return auctionapi.GenericResponse{Type: "approve_response", Success: true}
}

func (s *AuctionServer) handleBid(raw []byte) any {
	var req auctionapi.BidRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode bid request: %v", err))
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return errResponse(fmt.Sprintf("Invalid amount: %v", err))
	}

	index, power, err := s.auction.Bid(req.Caller, req.Tier, req.Asset, amount)
	if err != nil {
		log.Printf("ERROR: Bid rejected for %s: %v", req.Caller, err)
		return auctionapi.BidResponse{Type: "bid_response", Message: err.Error()}
	}

	evt := journal.NewEvent(journal.KindBid, req.Caller)
	evt.Asset = req.Asset
	evt.Amount = amount
	evt.BidIndex = index
	evt.Note = fmt.Sprintf("tier=%d power=%s", req.Tier, power)
	s.record(evt)

	return auctionapi.BidResponse{
		Type:     "bid_response",
		Success:  true,
		BidIndex: index,
		Power:    power.String(),
	}
}

func (s *AuctionServer) handleCancel(raw []byte) any {
	var req auctionapi.CancelRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode cancel request: %v", err))
	}

	bid, err := s.auction.GetBid(req.BidIndex)
	if err != nil {
		return errResponse(err.Error())
	}
	if err := s.auction.Cancel(req.Caller, req.BidIndex); err != nil {
		log.Printf("ERROR: Cancel rejected for %s: %v", req.Caller, err)
		return errResponse(err.Error())
	}

	evt := journal.NewEvent(journal.KindCancel, req.Caller)
	evt.Asset = bid.Asset
	evt.Amount = bid.Amount
	evt.BidIndex = req.BidIndex
	s.record(evt)

	return auctionapi.GenericResponse{Type: "cancel_response", Success: true}
}

func (s *AuctionServer) handleRefund(raw []byte) any {
	var req auctionapi.RefundRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode refund request: %v", err))
	}

	swept, err := s.auction.Refund(req.Caller)
	if err != nil {
		log.Printf("ERROR: Refund failed for %s: %v", req.Caller, err)
		return auctionapi.RefundResponse{Type: "refund_response", Message: err.Error()}
	}

	out := make(map[string]string, len(swept))
	for asset, amount := range swept {
		out[asset] = amount.String()

		evt := journal.NewEvent(journal.KindRefund, req.Caller)
		evt.Asset = asset
		evt.Amount = amount
		s.record(evt)
	}
	return auctionapi.RefundResponse{Type: "refund_response", Success: true, Swept: out}
}

func (s *AuctionServer) handleSelect(raw []byte) any {
	var req auctionapi.SelectRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode select request: %v", err))
	}
	if err := s.applySelect(req); err != nil {
		log.Printf("ERROR: Candidate selection rejected: %v", err)
		return errResponse(err.Error())
	}
	return auctionapi.GenericResponse{Type: "select_response", Success: true}
}

func (s *AuctionServer) applySelect(req auctionapi.SelectRequest) error {
	if err := s.auction.SelectCandidates(req.Caller, req.Candidates, req.Deadline); err != nil {
		return err
	}

	evt := journal.NewEvent(journal.KindSelect, req.Caller)
	evt.Note = fmt.Sprintf("candidates=%d deadline=%s", len(req.Candidates), req.Deadline.UTC().Format(time.RFC3339))
	s.record(evt)

	log.Printf("INFO: Bidding frozen with %d candidates, settlement deadline %s", len(req.Candidates), req.Deadline.UTC().Format(time.RFC3339))
	return nil
}

func (s *AuctionServer) handleEnd(raw []byte) any {
	var req auctionapi.EndRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode end request: %v", err))
	}
	return s.finalize(req)
}

func (s *AuctionServer) finalize(req auctionapi.EndRequest) auctionapi.EndResponse {
	batch, err := s.auction.End(req.Caller, req.Custodian, req.Position)
	if err != nil {
		log.Printf("ERROR: Finalization rejected: %v", err)
		return auctionapi.EndResponse{Type: "end_response", Message: err.Error()}
	}

	resp := auctionapi.EndResponse{Type: "end_response", Success: true}
	settlement := &receipt.Settlement{Custodian: req.Custodian, Position: req.Position}
	for _, fin := range batch {
		out := auctionapi.FinalizedCandidate{Candidate: fin.Candidate, Amounts: make(map[string]string, len(fin.Amounts))}
		totals := receipt.CandidateTotals{Candidate: fin.Candidate}
		for asset, amount := range fin.Amounts {
			out.Amounts[asset] = amount.String()
			totals.Totals = append(totals.Totals, receipt.NewAssetTotal(asset, amount))

			evt := journal.NewEvent(journal.KindEnd, req.Caller)
			evt.Asset = asset
			evt.Amount = amount
			evt.Note = fmt.Sprintf("candidate=%s custodian=%s", fin.Candidate, req.Custodian)
			s.record(evt)
		}
		resp.Finalized = append(resp.Finalized, out)
		settlement.Finalized = append(settlement.Finalized, totals)
	}

	signed, err := s.signer.Sign(settlement)
	if err != nil {
		log.Printf("ERROR: Failed to sign settlement receipt: %v", err)
		return auctionapi.EndResponse{Type: "end_response", Message: fmt.Sprintf("sign receipt: %v", err)}
	}
	resp.Receipt = base64.StdEncoding.EncodeToString(signed)

	log.Printf("INFO: Finalized %d candidates through position %d", len(batch), req.Position)
	return resp
}

// executeSelect and executeEnd are the timelock handlers behind the queued
// governance calls. The queued payload is the operation's own request JSON.
func (s *AuctionServer) executeSelect(data []byte) error {
	var req auctionapi.SelectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode queued select: %w", err)
	}
	return s.applySelect(req)
}

func (s *AuctionServer) executeEnd(data []byte) error {
	var req auctionapi.EndRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode queued end: %w", err)
	}
	resp := s.finalize(req)
	if !resp.Success {
		return fmt.Errorf("queued end: %s", resp.Message)
	}
	log.Printf("INFO: Queued finalization executed, receipt %d bytes", len(resp.Receipt))
	return nil
}

func (s *AuctionServer) handleGovernance(reqType string, raw []byte) any {
	if s.lock == nil {
		return errResponse("Governance timelock is not configured")
	}
	var req auctionapi.GovernanceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode governance request: %v", err))
	}
	call := timelock.Call{
		Target:    req.Target,
		Signature: req.Signature,
		Data:      req.Data,
		ETA:       req.ETA,
	}

	switch reqType {
	case auctionapi.TypeQueue:
		hash, err := s.lock.Queue(req.Caller, call)
		if err != nil {
			log.Printf("ERROR: Queue rejected: %v", err)
			return auctionapi.QueueResponse{Type: "queue_response", Message: err.Error()}
		}
		log.Printf("INFO: Queued %s.%s for %s", req.Target, req.Signature, req.ETA.UTC().Format(time.RFC3339))
		return auctionapi.QueueResponse{Type: "queue_response", Success: true, CallHash: hash}
	case auctionapi.TypeExecute:
		if err := s.lock.Execute(req.Caller, call); err != nil {
			log.Printf("ERROR: Execute rejected: %v", err)
			return errResponse(err.Error())
		}
		return auctionapi.GenericResponse{Type: "execute_response", Success: true}
	default:
		if err := s.lock.Cancel(req.Caller, call); err != nil {
			log.Printf("ERROR: Cancel of queued call rejected: %v", err)
			return errResponse(err.Error())
		}
		return auctionapi.GenericResponse{Type: "cancel_queued_response", Success: true}
	}
}

func (s *AuctionServer) handleStatus(raw []byte) any {
	var req auctionapi.StatusRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errResponse(fmt.Sprintf("Failed to decode status request: %v", err))
	}

	resp := auctionapi.StatusResponse{
		Type:        "status_response",
		Success:     true,
		Phase:       s.auction.Phase().String(),
		Biddable:    s.auction.Biddable(),
		BidCount:    s.auction.BidCount(),
		BidderCount: s.auction.BidderCount(),
		Candidates:  s.auction.Candidates(),
		FinalizedN:  s.auction.Finalized(),
	}
	if deadline := s.auction.Deadline(); !deadline.IsZero() {
		resp.Deadline = &deadline
	}

	if req.Caller != "" {
		resp.Power = s.auction.BidderPower(req.Caller).String()
		resp.LiveBids = make(map[string]string)
		resp.Refundable = make(map[string]string)
		for _, asset := range s.auction.Assets() {
			if amt := s.auction.UserBids(req.Caller, asset); amt.IsPositive() {
				resp.LiveBids[asset] = amt.String()
			}
			if amt := s.auction.Refundable(req.Caller, asset); amt.IsPositive() {
				resp.Refundable[asset] = amt.String()
			}
		}
	}
	return resp
}
