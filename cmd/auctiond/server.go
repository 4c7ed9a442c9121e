package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/decus-io/keeper-auction/auction"
	"github.com/decus-io/keeper-auction/auctionapi"
	"github.com/decus-io/keeper-auction/journal"
	"github.com/decus-io/keeper-auction/receipt"
	"github.com/decus-io/keeper-auction/timelock"
	"github.com/decus-io/keeper-auction/token"
)

// AuctionServer serves the auction ledger over a line of one-shot TCP
// connections: one JSON request in, one JSON response out.
type AuctionServer struct {
	listen     string
	maxWorkers int

	auction  *auction.Auction
	tokens   map[string]token.Token
	recorder journal.Recorder
	signer   *receipt.Signer
	lock     *timelock.Timelock // nil when governance is disabled
}

func NewAuctionServer(listen string, maxWorkers int, a *auction.Auction, toks []token.Token, rec journal.Recorder, signer *receipt.Signer, lock *timelock.Timelock) *AuctionServer {
	byAddr := make(map[string]token.Token, len(toks))
	for _, tok := range toks {
		byAddr[tok.Address()] = tok
	}
	s := &AuctionServer{
		listen:     listen,
		maxWorkers: maxWorkers,
		auction:    a,
		tokens:     byAddr,
		recorder:   rec,
		signer:     signer,
		lock:       lock,
	}
	if lock != nil {
		lock.Register(auctionapi.GovTargetAuction, auctionapi.GovSigSelect, s.executeSelect)
		lock.Register(auctionapi.GovTargetAuction, auctionapi.GovSigEnd, s.executeEnd)
	}
	return s
}

func (s *AuctionServer) Start() error {
	listener, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Auction server listening on %s", s.listen)

	semaphore := make(chan struct{}, s.maxWorkers)
	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", s.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *AuctionServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return
	}

	log.Printf("INFO: Received request type: %s", baseReq.Type)

	response := s.dispatch(baseReq.Type, raw)

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	} else {
		log.Printf("INFO: Successfully sent response for %s", baseReq.Type)
	}
}
