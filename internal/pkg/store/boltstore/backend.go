package boltstore

import (
	"github.com/vreid/janken/internal/pkg/rps"
	bolt "go.etcd.io/bbolt"
)

type Backend struct {
	DB *bolt.DB
}

func NewBackend(db *bolt.DB) *Backend {
	return &Backend{DB: db}
}

func (b *Backend) Update(fn func(store rps.Store, ledger rps.Ledger) error) error {
	//nolint:wrapcheck
	return b.DB.Update(func(tx *bolt.Tx) error {
		return fn(New(tx), NewLedger(tx))
	})
}

func (b *Backend) View(fn func(reader rps.Reader, balances rps.Balances) error) error {
	//nolint:wrapcheck
	return b.DB.View(func(tx *bolt.Tx) error {
		return fn(New(tx), NewLedger(tx))
	})
}
