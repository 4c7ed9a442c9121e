package token

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStandardToken_MintsSupplyToHolder(t *testing.T) {
	tok := NewStandardToken("0xhbtc", "Huobi Bitcoin", "HBTC", 18, d("8000000000000000000"), "holder")

	check.Equal(t, "0xhbtc", tok.Address())
	check.Equal(t, "HBTC", tok.Symbol())
	check.Equal(t, int32(18), tok.Decimals())
	check.True(t, d("8000000000000000000").Equal(tok.BalanceOf("holder")))
	check.True(t, tok.BalanceOf("other").IsZero())
}

func TestStandardToken_Transfer(t *testing.T) {
	tok := NewStandardToken("0x1", "Test", "TST", 8, d("1000"), "a")

	assert.NoError(t, tok.Transfer("a", "b", d("400")))
	check.True(t, d("600").Equal(tok.BalanceOf("a")))
	check.True(t, d("400").Equal(tok.BalanceOf("b")))

	err := tok.Transfer("a", "b", d("601"))
	check.True(t, errors.Is(err, ErrInsufficientBalance))
	check.True(t, d("600").Equal(tok.BalanceOf("a")))
}

func TestStandardToken_TransferFrom(t *testing.T) {
	tok := NewStandardToken("0x1", "Test", "TST", 8, d("1000"), "a")

	// No allowance yet.
	err := tok.TransferFrom("spender", "a", "escrow", d("100"))
	check.True(t, errors.Is(err, ErrInsufficientAllowance))

	tok.Approve("a", "spender", d("250"))
	check.True(t, d("250").Equal(tok.Allowance("a", "spender")))

	assert.NoError(t, tok.TransferFrom("spender", "a", "escrow", d("100")))
	check.True(t, d("100").Equal(tok.BalanceOf("escrow")))
	check.True(t, d("150").Equal(tok.Allowance("a", "spender")))

	// Allowance is consumed, not reset.
	err = tok.TransferFrom("spender", "a", "escrow", d("151"))
	check.True(t, errors.Is(err, ErrInsufficientAllowance))
}

func TestStandardToken_TransferFromChecksBalanceAfterAllowance(t *testing.T) {
	tok := NewStandardToken("0x1", "Test", "TST", 8, d("100"), "a")

	tok.Approve("a", "spender", d("500"))
	err := tok.TransferFrom("spender", "a", "escrow", d("200"))
	check.True(t, errors.Is(err, ErrInsufficientBalance))

	// A failed pull consumes no allowance.
	check.True(t, d("500").Equal(tok.Allowance("a", "spender")))
}
