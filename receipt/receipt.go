// Package receipt produces signed settlement receipts: COSE_Sign1 envelopes
// over the outcome of a finalization batch, signed with the operator's
// ECDSA P-256 key so custodians and auditors can verify what moved and when
// without trusting the transport.
package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
	"github.com/veraison/go-cose"
)

// AssetTotal is the finalized amount of one asset for one candidate.
type AssetTotal struct {
	Asset  string `cbor:"asset"`
	Amount string `cbor:"amount"` // exact decimal string
}

// CandidateTotals groups a finalized candidate's per-asset payouts.
type CandidateTotals struct {
	Candidate string       `cbor:"candidate"`
	Totals    []AssetTotal `cbor:"totals"`
}

// Settlement is the signed payload: one finalization batch.
type Settlement struct {
	Custodian string            `cbor:"custodian"`
	Position  int               `cbor:"position"`
	Finalized []CandidateTotals `cbor:"finalized"`
	IssuedAt  int64             `cbor:"issued_at"` // unix seconds
}

// NewAssetTotal keeps amounts exact through the decimal → string boundary.
func NewAssetTotal(asset string, amount decimal.Decimal) AssetTotal {
	return AssetTotal{Asset: asset, Amount: amount.String()}
}

// Signer issues settlement receipts under a single ECDSA P-256 key.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner generates a fresh signing key.
func NewSigner() (*Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate receipt key: %w", err)
	}
	return &Signer{key: key}, nil
}

// NewSignerFromKey wraps an existing key.
func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// PublicKey returns the verification key for this signer.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// Sign wraps the settlement in a COSE_Sign1 envelope. IssuedAt is stamped
// if unset.
func (s *Signer) Sign(settlement *Settlement) ([]byte, error) {
	if settlement.IssuedAt == 0 {
		settlement.IssuedAt = time.Now().Unix()
	}
	payload, err := cbor.Marshal(settlement)
	if err != nil {
		return nil, fmt.Errorf("marshal settlement: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, s.key)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload
	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("sign settlement: %w", err)
	}
	return msg.MarshalCBOR()
}

// Verify checks a receipt's signature against the issuer's public key and
// returns the embedded settlement.
func Verify(pub *ecdsa.PublicKey, data []byte) (*Settlement, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("receipt signature: %w", err)
	}

	var settlement Settlement
	if err := cbor.Unmarshal(msg.Payload, &settlement); err != nil {
		return nil, fmt.Errorf("decode settlement: %w", err)
	}
	return &settlement, nil
}
