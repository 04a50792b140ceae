// Package boltstore persists offers, matches and balances in bbolt. A Store
// and a Ledger live for exactly one bolt transaction, which makes every
// admission or height boundary a single atomic commit.
package boltstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/rps"
	bolt "go.etcd.io/bbolt"
)

var ErrBucketNotFound = errors.New("bucket doesn't exist")

var positionKey = []byte("position")

type Store struct {
	tx *bolt.Tx
}

var _ rps.Store = (*Store)(nil)

func New(tx *bolt.Tx) *Store {
	return &Store{tx: tx}
}

func bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, name)
	}

	return b, nil
}

func get[T any](b *bolt.Bucket, key []byte) (*T, error) {
	data := b.Get(key)
	if data == nil {
		return nil, rps.ErrNotFound
	}

	var v T

	err := json.Unmarshal(data, &v)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return &v, nil
}

func put(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	//nolint:wrapcheck
	return b.Put(key, data)
}

func (s *Store) Position() (rps.Position, error) {
	meta, err := bucket(s.tx, common.MetaBucket)
	if err != nil {
		return rps.Position{}, err
	}

	pos, err := get[rps.Position](meta, positionKey)
	if errors.Is(err, rps.ErrNotFound) {
		return rps.Position{}, nil
	}

	if err != nil {
		return rps.Position{}, err
	}

	return *pos, nil
}

func (s *Store) SetPosition(pos rps.Position) error {
	meta, err := bucket(s.tx, common.MetaBucket)
	if err != nil {
		return err
	}

	return put(meta, positionKey, pos)
}

func (s *Store) Offer(hash string) (*rps.Offer, error) {
	offers, err := bucket(s.tx, common.OffersBucket)
	if err != nil {
		return nil, err
	}

	offer, err := get[rps.Offer](offers, []byte(hash))
	if errors.Is(err, rps.ErrNotFound) {
		return nil, fmt.Errorf("%w: offer %s", rps.ErrNotFound, hash)
	}

	return offer, err
}

func (s *Store) InsertOffer(offer *rps.Offer) error {
	offers, err := bucket(s.tx, common.OffersBucket)
	if err != nil {
		return err
	}

	if offers.Get([]byte(offer.Hash)) != nil {
		return fmt.Errorf("%w: offer %s", rps.ErrDuplicate, offer.Hash)
	}

	order, err := bucket(s.tx, common.OfferOrderBucket)
	if err != nil {
		return err
	}

	err = order.Put(common.OrderedKey(offer.Index), []byte(offer.Hash))
	if err != nil {
		return fmt.Errorf("failed to put offer order: %w", err)
	}

	err = put(offers, []byte(offer.Hash), offer)
	if err != nil {
		return err
	}

	return s.index(offer, true)
}

func (s *Store) UpdateOffer(offer *rps.Offer) error {
	previous, err := s.Offer(offer.Hash)
	if err != nil {
		return err
	}

	err = s.index(previous, false)
	if err != nil {
		return err
	}

	offers, err := bucket(s.tx, common.OffersBucket)
	if err != nil {
		return err
	}

	err = put(offers, []byte(offer.Hash), offer)
	if err != nil {
		return err
	}

	return s.index(offer, true)
}

// index adds or removes an open offer from the book and expiry buckets.
func (s *Store) index(offer *rps.Offer, add bool) error {
	if offer.Status != rps.OfferOpen {
		return nil
	}

	entries := []struct {
		bucket string
		key    []byte
	}{
		{common.OfferBookBucket, common.OrderedKey(offer.PossibleMoves, offer.Wager, offer.Index)},
		{common.OfferExpiryBucket, common.OrderedKey(offer.ExpireHeight, offer.Index)},
	}

	for _, entry := range entries {
		b, err := bucket(s.tx, entry.bucket)
		if err != nil {
			return err
		}

		if add {
			err = b.Put(entry.key, []byte(offer.Hash))
		} else {
			err = b.Delete(entry.key)
		}

		if err != nil {
			return fmt.Errorf("failed to index offer %s: %w", offer.Hash, err)
		}
	}

	return nil
}

func (s *Store) OldestOpen(query rps.OpenQuery) (*rps.Offer, error) {
	book, err := bucket(s.tx, common.OfferBookBucket)
	if err != nil {
		return nil, err
	}

	prefix := common.OrderedKey(query.PossibleMoves, query.Wager)

	c := book.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		offer, err := s.Offer(string(v))
		if err != nil {
			return nil, err
		}

		if query.Accepts(offer) {
			return offer, nil
		}
	}

	return nil, nil
}

func (s *Store) ExpiredOffers(height int64) ([]*rps.Offer, error) {
	hashes, err := s.below(common.OfferExpiryBucket, height)
	if err != nil {
		return nil, err
	}

	result := make([]*rps.Offer, 0, len(hashes))

	for _, hash := range hashes {
		offer, err := s.Offer(hash)
		if err != nil {
			return nil, err
		}

		result = append(result, offer)
	}

	return result, nil
}

// below collects the values of an expiry bucket whose leading key component
// is lower than height.
func (s *Store) below(name string, height int64) ([]string, error) {
	b, err := bucket(s.tx, name)
	if err != nil {
		return nil, err
	}

	var result []string

	c := b.Cursor()
	for k, v := c.First(); k != nil && common.OrderedValue(k, 0) < height; k, v = c.Next() {
		result = append(result, string(v))
	}

	return result, nil
}

func (s *Store) Offers(filter rps.OfferFilter) ([]*rps.Offer, error) {
	order, err := bucket(s.tx, common.OfferOrderBucket)
	if err != nil {
		return nil, err
	}

	result := []*rps.Offer{}

	err = order.ForEach(func(_, v []byte) error {
		offer, err := s.Offer(string(v))
		if err != nil {
			return err
		}

		if filter.Accepts(offer) {
			result = append(result, offer)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	return result, nil
}

func (s *Store) Match(id string) (*rps.Match, error) {
	matches, err := bucket(s.tx, common.MatchesBucket)
	if err != nil {
		return nil, err
	}

	m, err := get[rps.Match](matches, []byte(id))
	if errors.Is(err, rps.ErrNotFound) {
		return nil, fmt.Errorf("%w: match %s", rps.ErrNotFound, id)
	}

	return m, err
}

func (s *Store) InsertMatch(m *rps.Match) error {
	matches, err := bucket(s.tx, common.MatchesBucket)
	if err != nil {
		return err
	}

	if matches.Get([]byte(m.ID)) != nil {
		return fmt.Errorf("%w: match %s", rps.ErrDuplicate, m.ID)
	}

	seq, err := matches.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to allocate match sequence: %w", err)
	}

	//nolint:gosec // sequence stays far below MaxInt64
	m.Seq = int64(seq)

	err = put(matches, []byte(m.ID), m)
	if err != nil {
		return err
	}

	order, err := bucket(s.tx, common.MatchOrderBucket)
	if err != nil {
		return err
	}

	err = order.Put(common.OrderedKey(m.Seq), []byte(m.ID))
	if err != nil {
		return fmt.Errorf("failed to put match order: %w", err)
	}

	pairings, err := bucket(s.tx, common.PairingsBucket)
	if err != nil {
		return err
	}

	tx0, tx1 := m.Sides[0].Hash, m.Sides[1].Hash

	err = errors.Join(
		pairings.Put(pairingKey(tx0, m.ID), []byte(tx1)),
		pairings.Put(pairingKey(tx1, m.ID), []byte(tx0)),
	)
	if err != nil {
		return fmt.Errorf("failed to put pairings: %w", err)
	}

	return s.indexMatch(m, true)
}

func pairingKey(hash, id string) []byte {
	return []byte(hash + "\x00" + id)
}

func (s *Store) UpdateMatch(m *rps.Match) error {
	previous, err := s.Match(m.ID)
	if err != nil {
		return err
	}

	err = s.indexMatch(previous, false)
	if err != nil {
		return err
	}

	matches, err := bucket(s.tx, common.MatchesBucket)
	if err != nil {
		return err
	}

	err = put(matches, []byte(m.ID), m)
	if err != nil {
		return err
	}

	return s.indexMatch(m, true)
}

func (s *Store) indexMatch(m *rps.Match, add bool) error {
	if m.Status.Terminal() {
		return nil
	}

	expiry, err := bucket(s.tx, common.MatchExpiryBucket)
	if err != nil {
		return err
	}

	key := common.OrderedKey(m.ExpireHeight, m.Seq)

	if add {
		err = expiry.Put(key, []byte(m.ID))
	} else {
		err = expiry.Delete(key)
	}

	if err != nil {
		return fmt.Errorf("failed to index match %s: %w", m.ID, err)
	}

	return nil
}

func (s *Store) Counterparties(hash string) ([]string, error) {
	pairings, err := bucket(s.tx, common.PairingsBucket)
	if err != nil {
		return nil, err
	}

	prefix := []byte(hash + "\x00")

	var result []string

	c := pairings.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		result = append(result, string(v))
	}

	return result, nil
}

func (s *Store) ExpiredMatches(height int64) ([]*rps.Match, error) {
	ids, err := s.below(common.MatchExpiryBucket, height)
	if err != nil {
		return nil, err
	}

	result := make([]*rps.Match, 0, len(ids))

	for _, id := range ids {
		m, err := s.Match(id)
		if err != nil {
			return nil, err
		}

		result = append(result, m)
	}

	return result, nil
}

func (s *Store) Matches(filter rps.MatchFilter) ([]*rps.Match, error) {
	order, err := bucket(s.tx, common.MatchOrderBucket)
	if err != nil {
		return nil, err
	}

	result := []*rps.Match{}

	err = order.ForEach(func(_, v []byte) error {
		m, err := s.Match(string(v))
		if err != nil {
			return err
		}

		if filter.Accepts(m) {
			result = append(result, m)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	return result, nil
}

func (s *Store) AppendOfferExpiration(record rps.OfferExpiration) error {
	return s.appendRecord(common.OfferExpirationsBucket, common.OrderedKey(record.Height, record.Index), record)
}

func (s *Store) AppendMatchExpiration(record rps.MatchExpiration) error {
	return s.appendRecord(common.MatchExpirationsBucket, common.OrderedKey(record.Height, record.Seq), record)
}

func (s *Store) appendRecord(name string, key []byte, record any) error {
	b, err := bucket(s.tx, name)
	if err != nil {
		return err
	}

	if b.Get(key) != nil {
		return fmt.Errorf("%w: expiration record %x in %s", rps.ErrDuplicate, key, name)
	}

	return put(b, key, record)
}

func (s *Store) OfferExpirations(height int64) ([]rps.OfferExpiration, error) {
	return records[rps.OfferExpiration](s.tx, common.OfferExpirationsBucket, height)
}

func (s *Store) MatchExpirations(height int64) ([]rps.MatchExpiration, error) {
	return records[rps.MatchExpiration](s.tx, common.MatchExpirationsBucket, height)
}

func records[T any](tx *bolt.Tx, name string, height int64) ([]T, error) {
	b, err := bucket(tx, name)
	if err != nil {
		return nil, err
	}

	var prefix []byte
	if height != 0 {
		prefix = common.OrderedKey(height)
	}

	result := []T{}

	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var record T

		err := json.Unmarshal(v, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to decode expiration record: %w", err)
		}

		result = append(result, record)
	}

	return result, nil
}
