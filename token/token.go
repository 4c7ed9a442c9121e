// Package token defines the fungible-asset capability the auction escrows
// collateral through, plus an in-memory implementation used by tests and the
// demo service.
package token

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientAllowance is returned when a TransferFrom exceeds the
	// spender's remaining allowance.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrInsufficientBalance is returned when a transfer exceeds the sender's
	// balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Token is the transfer capability consumed by the auction. Callers pass
// identities explicitly; there is no ambient sender.
type Token interface {
	// Address is the asset identifier the ledger keys its balances by.
	Address() string

	// Decimals is the asset's intrinsic decimal precision.
	Decimals() int32

	BalanceOf(addr string) decimal.Decimal

	// Approve sets spender's allowance over owner's balance.
	Approve(owner, spender string, amount decimal.Decimal)

	Allowance(owner, spender string) decimal.Decimal

	// TransferFrom moves amount from `from` to `to` on behalf of `spender`,
	// consuming allowance. All-or-nothing.
	TransferFrom(spender, from, to string, amount decimal.Decimal) error

	// Transfer moves amount from `from` to `to` directly. All-or-nothing.
	Transfer(from, to string, amount decimal.Decimal) error
}
