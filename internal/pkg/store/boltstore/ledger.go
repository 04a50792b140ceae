package boltstore

import (
	"fmt"

	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/ledger"
	"github.com/vreid/janken/internal/pkg/rps"
	bolt "go.etcd.io/bbolt"
)

// Ledger keeps balances and the journal of applied entries in the same bolt
// transaction as the Store it is paired with.
type Ledger struct {
	tx *bolt.Tx
}

var _ rps.Ledger = (*Ledger)(nil)

func NewLedger(tx *bolt.Tx) *Ledger {
	return &Ledger{tx: tx}
}

func balanceKey(account, asset string) []byte {
	return []byte(account + "\x00" + asset)
}

func (l *Ledger) Balance(account, asset string) (int64, error) {
	balances, err := bucket(l.tx, common.BalancesBucket)
	if err != nil {
		return 0, err
	}

	return common.BytesToInt64(balances.Get(balanceKey(account, asset)), 0), nil
}

func (l *Ledger) Debit(account, asset string, amount int64, event, action string) error {
	err := ledger.CheckAmount(amount)
	if err != nil {
		return err
	}

	balance, err := l.Balance(account, asset)
	if err != nil {
		return err
	}

	applied, err := l.applied(event, action, account)
	if err != nil || applied {
		return err
	}

	if balance < amount {
		return fmt.Errorf("%w: %s holds %d %s, debit of %d", rps.ErrInsufficientFunds, account, balance, asset, amount)
	}

	return l.apply(ledger.Entry{Account: account, Asset: asset, Amount: -amount, Event: event, Action: action})
}

func (l *Ledger) Credit(account, asset string, amount int64, event, action string) error {
	err := ledger.CheckAmount(amount)
	if err != nil {
		return err
	}

	applied, err := l.applied(event, action, account)
	if err != nil || applied {
		return err
	}

	balance, err := l.Balance(account, asset)
	if err != nil {
		return err
	}

	_, err = ledger.Add(balance, amount)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", account, err)
	}

	if action == rps.ActionDeposit {
		err = l.issue(asset, amount)
		if err != nil {
			return err
		}
	}

	return l.apply(ledger.Entry{Account: account, Asset: asset, Amount: amount, Event: event, Action: action})
}

// issue grows the deposited supply of asset, which bounds every balance.
func (l *Ledger) issue(asset string, amount int64) error {
	issued, err := bucket(l.tx, common.IssuedBucket)
	if err != nil {
		return err
	}

	total, err := ledger.Add(common.BytesToInt64(issued.Get([]byte(asset)), 0), amount)
	if err != nil {
		return fmt.Errorf("failed to issue %s: %w", asset, err)
	}

	err = issued.Put([]byte(asset), common.Int64ToBytes(total))
	if err != nil {
		return fmt.Errorf("failed to put issued supply: %w", err)
	}

	return nil
}

func (l *Ledger) Journal() ([]ledger.Entry, error) {
	journal, err := bucket(l.tx, common.JournalBucket)
	if err != nil {
		return nil, err
	}

	result := []ledger.Entry{}

	err = journal.ForEach(func(k, _ []byte) error {
		entry, err := get[ledger.Entry](journal, k)
		if err != nil {
			return err
		}

		result = append(result, *entry)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}

	return result, nil
}

func (l *Ledger) applied(event, action, account string) (bool, error) {
	journal, err := bucket(l.tx, common.JournalBucket)
	if err != nil {
		return false, err
	}

	return journal.Get([]byte(ledger.EntryKey(event, action, account))) != nil, nil
}

func (l *Ledger) apply(entry ledger.Entry) error {
	balances, err := bucket(l.tx, common.BalancesBucket)
	if err != nil {
		return err
	}

	journal, err := bucket(l.tx, common.JournalBucket)
	if err != nil {
		return err
	}

	key := balanceKey(entry.Account, entry.Asset)
	balance := common.BytesToInt64(balances.Get(key), 0) + entry.Amount

	err = balances.Put(key, common.Int64ToBytes(balance))
	if err != nil {
		return fmt.Errorf("failed to put balance: %w", err)
	}

	return put(journal, []byte(ledger.EntryKey(entry.Event, entry.Action, entry.Account)), entry)
}
