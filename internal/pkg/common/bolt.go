package common

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/samber/do/v2"
	bolt "go.etcd.io/bbolt"
)

const (
	MetaBucket             = "meta"
	OffersBucket           = "rps:offers"
	OfferOrderBucket       = "rps:offers:order"
	OfferBookBucket        = "rps:offers:book"
	OfferExpiryBucket      = "rps:offers:expiry"
	MatchesBucket          = "rps:matches"
	MatchOrderBucket       = "rps:matches:order"
	MatchExpiryBucket      = "rps:matches:expiry"
	PairingsBucket         = "rps:pairings"
	OfferExpirationsBucket = "rps:expirations:offers"
	MatchExpirationsBucket = "rps:expirations:matches"
	BalancesBucket         = "ledger:balances"
	JournalBucket          = "ledger:journal"
	IssuedBucket           = "ledger:issued"
)

var Buckets = []string{
	MetaBucket,
	OffersBucket,
	OfferOrderBucket,
	OfferBookBucket,
	OfferExpiryBucket,
	MatchesBucket,
	MatchOrderBucket,
	MatchExpiryBucket,
	PairingsBucket,
	OfferExpirationsBucket,
	MatchExpirationsBucket,
	BalancesBucket,
	JournalBucket,
	IssuedBucket,
}

type DatabaseService struct {
	DB *bolt.DB
}

func NewDatabaseService(i do.Injector) (*DatabaseService, error) {
	dataDir := do.MustInvokeNamed[string](i, "data-dir")

	err := os.MkdirAll(dataDir, 0750)
	if err != nil {
		return nil, fmt.Errorf("failed to create database path: %w", err)
	}

	db, err := OpenDatabase(path.Join(dataDir, "janken.db"))
	if err != nil {
		return nil, err
	}

	return &DatabaseService{
		DB: db,
	}, nil
}

func OpenDatabase(dbPath string) (*bolt.DB, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range Buckets {
			_, err := tx.CreateBucketIfNotExists([]byte(bucket))
			if err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialize database buckets: %w", err)
	}

	return db, nil
}

func (s *DatabaseService) Shutdown() error {
	//nolint:wrapcheck
	return s.DB.Close()
}

// OrderedKey encodes non-negative integers big-endian so that byte order
// matches numeric order in a bucket cursor.
func OrderedKey(values ...int64) []byte {
	buf := make([]byte, 0, 8*len(values))
	for _, v := range values {
		//nolint:gosec // keys only hold non-negative values
		buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	}

	return buf
}

func OrderedValue(b []byte, n int) int64 {
	if len(b) < 8*(n+1) {
		return 0
	}

	//nolint:gosec // keys only hold non-negative values
	return int64(binary.BigEndian.Uint64(b[8*n:]))
}

func Int64ToBytes(i int64) []byte {
	buf := make([]byte, 8)
	//nolint:gosec // Intentional conversion for binary encoding
	binary.LittleEndian.PutUint64(buf, uint64(i))

	return buf
}

func BytesToInt64(b []byte, _default int64) int64 {
	if len(b) == 0 {
		return _default
	}

	//nolint:gosec // Intentional conversion from binary encoding
	return int64(binary.LittleEndian.Uint64(b))
}
