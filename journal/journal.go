// Package journal records the auction's operation history for audit and
// analysis. The core ledger stays pure; the service layer feeds a Recorder
// after each successful operation.
package journal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event kinds, one per public mutating operation.
const (
	KindBid    = "BID"
	KindCancel = "CANCEL"
	KindRefund = "REFUND"
	KindSelect = "SELECT"
	KindEnd    = "END"
)

// Event is one journalled operation. Amounts travel as decimals and are
// persisted as exact strings.
type Event struct {
	ID       string
	Time     time.Time
	Kind     string
	Caller   string
	Asset    string
	Amount   decimal.Decimal
	BidIndex int
	Note     string
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind, caller string) *Event {
	return &Event{
		ID:       uuid.NewString(),
		Time:     time.Now().UTC(),
		Kind:     kind,
		Caller:   caller,
		BidIndex: -1,
	}
}

// Recorder persists events.
type Recorder interface {
	Record(evt *Event) error
	Close() error
}
