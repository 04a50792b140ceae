// Package ledger holds the account balances the game escrows from and pays
// out to.
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/vreid/janken/internal/pkg/rps"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrBalanceOverflow = errors.New("balance overflow")
)

// Entry is one applied debit or credit. Debits carry a negative amount.
type Entry struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  int64  `json:"amount"`
	Event   string `json:"event"`
	Action  string `json:"action"`
}

// EntryKey identifies an entry for idempotency checks.
func EntryKey(event, action, account string) string {
	return event + "\x00" + action + "\x00" + account
}

func CheckAmount(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	return nil
}

// Add returns total+amount for a non-negative amount, refusing to wrap.
func Add(total, amount int64) (int64, error) {
	if total > math.MaxInt64-amount {
		return total, fmt.Errorf("%w: %d + %d", ErrBalanceOverflow, total, amount)
	}

	return total + amount, nil
}

type balanceKey struct {
	account string
	asset   string
}

type Memory struct {
	balances map[balanceKey]int64
	// issued is the deposited supply per asset. Escrow only moves it around,
	// so capping it keeps every balance and payout within int64.
	issued  map[string]int64
	applied map[string]struct{}
	journal []Entry
}

var _ rps.Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		balances: map[balanceKey]int64{},
		issued:   map[string]int64{},
		applied:  map[string]struct{}{},
	}
}

func (l *Memory) Balance(account, asset string) (int64, error) {
	return l.balances[balanceKey{account, asset}], nil
}

func (l *Memory) Debit(account, asset string, amount int64, event, action string) error {
	err := CheckAmount(amount)
	if err != nil {
		return err
	}

	if l.seen(event, action, account) {
		return nil
	}

	key := balanceKey{account, asset}
	if l.balances[key] < amount {
		return fmt.Errorf("%w: %s holds %d %s, debit of %d", rps.ErrInsufficientFunds, account, l.balances[key], asset, amount)
	}

	l.apply(key, -amount, event, action)

	return nil
}

func (l *Memory) Credit(account, asset string, amount int64, event, action string) error {
	err := CheckAmount(amount)
	if err != nil {
		return err
	}

	if l.seen(event, action, account) {
		return nil
	}

	key := balanceKey{account, asset}

	_, err = Add(l.balances[key], amount)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}

	if action == rps.ActionDeposit {
		l.issued[asset], err = Add(l.issued[asset], amount)
		if err != nil {
			return fmt.Errorf("failed to issue %s: %w", asset, err)
		}
	}

	l.apply(key, amount, event, action)

	return nil
}

func (l *Memory) Journal() []Entry {
	return append([]Entry(nil), l.journal...)
}

func (l *Memory) seen(event, action, account string) bool {
	_, ok := l.applied[EntryKey(event, action, account)]

	return ok
}

func (l *Memory) apply(key balanceKey, delta int64, event, action string) {
	l.balances[key] += delta
	l.applied[EntryKey(event, action, key.account)] = struct{}{}
	l.journal = append(l.journal, Entry{
		Account: key.account,
		Asset:   key.asset,
		Amount:  delta,
		Event:   event,
		Action:  action,
	})
}
