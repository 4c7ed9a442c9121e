package token

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// StandardToken is a mutex-guarded in-memory fungible token with the usual
// balance/allowance semantics. The initial supply is minted to a single
// holder at construction.
type StandardToken struct {
	mu         sync.Mutex
	address    string
	name       string
	symbol     string
	decimals   int32
	balances   map[string]decimal.Decimal
	allowances map[string]map[string]decimal.Decimal
}

func NewStandardToken(address, name, symbol string, decimals int32, supply decimal.Decimal, holder string) *StandardToken {
	t := &StandardToken{
		address:    address,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]map[string]decimal.Decimal),
	}
	if supply.IsPositive() {
		t.balances[holder] = supply
	}
	return t
}

func (t *StandardToken) Address() string { return t.address }

func (t *StandardToken) Name() string { return t.name }

func (t *StandardToken) Symbol() string { return t.symbol }

func (t *StandardToken) Decimals() int32 { return t.decimals }

func (t *StandardToken) BalanceOf(addr string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[addr]
}

func (t *StandardToken) Approve(owner, spender string, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[string]decimal.Decimal)
		t.allowances[owner] = m
	}
	m[spender] = amount
}

func (t *StandardToken) Allowance(owner, spender string) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

func (t *StandardToken) TransferFrom(spender, from, to string, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	if allowed.LessThan(amount) {
		return fmt.Errorf("%s: transferFrom %s by %s: %w", t.symbol, from, spender, ErrInsufficientAllowance)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = allowed.Sub(amount)
	return nil
}

func (t *StandardToken) Transfer(from, to string, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// move assumes the lock is held.
func (t *StandardToken) move(from, to string, amount decimal.Decimal) error {
	if t.balances[from].LessThan(amount) {
		return fmt.Errorf("%s: transfer %s -> %s: %w", t.symbol, from, to, ErrInsufficientBalance)
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}
