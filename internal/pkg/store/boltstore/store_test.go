package boltstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/rps"
	"github.com/vreid/janken/internal/pkg/store/boltstore"
	"github.com/vreid/janken/internal/pkg/store/storetest"
	bolt "go.etcd.io/bbolt"
)

func openDB(t *testing.T) *bolt.DB {
	t.Helper()

	db, err := common.OpenDatabase(filepath.Join(t.TempDir(), "janken.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) storetest.Update {
		db := openDB(t)

		return func(fn func(store rps.Store) error) error {
			return db.Update(func(tx *bolt.Tx) error {
				return fn(boltstore.New(tx))
			})
		}
	})
}

func TestMissingBucket(t *testing.T) {
	t.Parallel()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "empty.db"), 0600, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	err = db.View(func(tx *bolt.Tx) error {
		_, err := boltstore.New(tx).Offer("a")

		return err
	})
	require.ErrorIs(t, err, boltstore.ErrBucketNotFound)
}
