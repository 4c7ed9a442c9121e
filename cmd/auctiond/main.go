// auctiond runs the keeper auction as a standalone service: it seeds the
// configured asset ledgers, opens the operation journal, and serves the
// auction protocol over TCP.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/decus-io/keeper-auction/auction"
	"github.com/decus-io/keeper-auction/config"
	"github.com/decus-io/keeper-auction/journal"
	"github.com/decus-io/keeper-auction/receipt"
	"github.com/decus-io/keeper-auction/timelock"
	"github.com/decus-io/keeper-auction/token"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	toks := make([]token.Token, 0, len(cfg.Assets))
	for _, ac := range cfg.Assets {
		supply := decimal.Zero
		if ac.Supply != "" {
			supply, err = decimal.NewFromString(ac.Supply)
			if err != nil {
				return fmt.Errorf("asset %s supply: %w", ac.Address, err)
			}
		}
		toks = append(toks, token.NewStandardToken(ac.Address, ac.Name, ac.Symbol, ac.Decimals, supply, ac.Holder))
		log.Printf("INFO: Asset %s (%s) registered with %d decimals", ac.Symbol, ac.Address, ac.Decimals)
	}

	tiers, err := cfg.TierMultipliers()
	if err != nil {
		return err
	}

	a, err := auction.New(auction.Params{
		Address:  cfg.Escrow,
		Operator: cfg.Operator,
		Tokens:   toks,
		Tiers:    tiers,
	})
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}

	var recorder journal.Recorder
	if cfg.Database.SQLitePath != "" {
		recorder, err = journal.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	} else {
		log.Printf("INFO: No journal database configured, events will not be persisted")
		recorder = journal.NewNoopRecorder()
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Printf("ERROR: Failed to close journal: %v", err)
		}
	}()

	signer, err := receipt.NewSigner()
	if err != nil {
		return fmt.Errorf("create receipt signer: %w", err)
	}

	var lock *timelock.Timelock
	if delay, _ := cfg.GovernanceDelay(); delay > 0 {
		lock, err = timelock.New(cfg.Operator, delay)
		if err != nil {
			return fmt.Errorf("create timelock: %w", err)
		}
		log.Printf("INFO: Governance timelock enabled with %s delay", delay)
	}

	server := NewAuctionServer(cfg.Listen, cfg.MaxWorkers, a, toks, recorder, signer, lock)
	return server.Start()
}

func main() {
	configPath := flag.String("config", "auctiond.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}
