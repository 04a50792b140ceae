// Package memory keeps offers and matches in process memory. Open offers are
// indexed by (possible moves, wager, index) so the oldest compatible partner
// is found without scanning the book.
package memory

import (
	"cmp"
	"fmt"

	"github.com/google/btree"
	"github.com/vreid/janken/internal/pkg/rps"
)

const degree = 32

type bookKey struct {
	moves int64
	wager int64
	index int64
	hash  string
}

func lessBookKey(a, b bookKey) bool {
	if c := cmp.Compare(a.moves, b.moves); c != 0 {
		return c < 0
	}

	if c := cmp.Compare(a.wager, b.wager); c != 0 {
		return c < 0
	}

	return a.index < b.index
}

type expiryKey struct {
	height int64
	seq    int64
	id     string
}

func lessExpiryKey(a, b expiryKey) bool {
	if a.height != b.height {
		return a.height < b.height
	}

	return a.seq < b.seq
}

type Store struct {
	position rps.Position

	offers  map[string]*rps.Offer
	ordered []string

	book        *btree.BTreeG[bookKey]
	offerExpiry *btree.BTreeG[expiryKey]

	matches     map[string]*rps.Match
	matchOrder  []string
	matchExpiry *btree.BTreeG[expiryKey]
	paired      map[string][]string

	offerExpirations []rps.OfferExpiration
	matchExpirations []rps.MatchExpiration
}

var _ rps.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		offers:      map[string]*rps.Offer{},
		book:        btree.NewG(degree, lessBookKey),
		offerExpiry: btree.NewG(degree, lessExpiryKey),
		matches:     map[string]*rps.Match{},
		matchExpiry: btree.NewG(degree, lessExpiryKey),
		paired:      map[string][]string{},
	}
}

func (s *Store) Position() (rps.Position, error) {
	return s.position, nil
}

func (s *Store) SetPosition(pos rps.Position) error {
	s.position = pos

	return nil
}

func (s *Store) Offer(hash string) (*rps.Offer, error) {
	offer, ok := s.offers[hash]
	if !ok {
		return nil, fmt.Errorf("%w: offer %s", rps.ErrNotFound, hash)
	}

	return offer.Clone(), nil
}

func (s *Store) InsertOffer(offer *rps.Offer) error {
	if _, ok := s.offers[offer.Hash]; ok {
		return fmt.Errorf("%w: offer %s", rps.ErrDuplicate, offer.Hash)
	}

	s.offers[offer.Hash] = offer.Clone()
	s.ordered = append(s.ordered, offer.Hash)
	s.index(offer)

	return nil
}

func (s *Store) UpdateOffer(offer *rps.Offer) error {
	previous, ok := s.offers[offer.Hash]
	if !ok {
		return fmt.Errorf("%w: offer %s", rps.ErrNotFound, offer.Hash)
	}

	s.unindex(previous)
	s.offers[offer.Hash] = offer.Clone()
	s.index(offer)

	return nil
}

func (s *Store) index(offer *rps.Offer) {
	if offer.Status != rps.OfferOpen {
		return
	}

	s.book.ReplaceOrInsert(bookKeyOf(offer))
	s.offerExpiry.ReplaceOrInsert(expiryKey{height: offer.ExpireHeight, seq: offer.Index, id: offer.Hash})
}

func (s *Store) unindex(offer *rps.Offer) {
	if offer.Status != rps.OfferOpen {
		return
	}

	s.book.Delete(bookKeyOf(offer))
	s.offerExpiry.Delete(expiryKey{height: offer.ExpireHeight, seq: offer.Index, id: offer.Hash})
}

func bookKeyOf(offer *rps.Offer) bookKey {
	return bookKey{moves: offer.PossibleMoves, wager: offer.Wager, index: offer.Index, hash: offer.Hash}
}

func (s *Store) OldestOpen(query rps.OpenQuery) (*rps.Offer, error) {
	var found *rps.Offer

	pivot := bookKey{moves: query.PossibleMoves, wager: query.Wager, index: -1}

	s.book.AscendGreaterOrEqual(pivot, func(key bookKey) bool {
		if key.moves != query.PossibleMoves || key.wager != query.Wager {
			return false
		}

		offer := s.offers[key.hash]
		if query.Accepts(offer) {
			found = offer.Clone()

			return false
		}

		return true
	})

	return found, nil
}

func (s *Store) ExpiredOffers(height int64) ([]*rps.Offer, error) {
	var result []*rps.Offer

	s.offerExpiry.AscendLessThan(expiryKey{height: height, seq: -1}, func(key expiryKey) bool {
		result = append(result, s.offers[key.id].Clone())

		return true
	})

	return result, nil
}

func (s *Store) Offers(filter rps.OfferFilter) ([]*rps.Offer, error) {
	result := []*rps.Offer{}

	for _, hash := range s.ordered {
		offer := s.offers[hash]
		if filter.Accepts(offer) {
			result = append(result, offer.Clone())
		}
	}

	return result, nil
}

func (s *Store) Match(id string) (*rps.Match, error) {
	m, ok := s.matches[id]
	if !ok {
		return nil, fmt.Errorf("%w: match %s", rps.ErrNotFound, id)
	}

	return m.Clone(), nil
}

func (s *Store) InsertMatch(m *rps.Match) error {
	if _, ok := s.matches[m.ID]; ok {
		return fmt.Errorf("%w: match %s", rps.ErrDuplicate, m.ID)
	}

	m.Seq = int64(len(s.matchOrder)) + 1

	s.matches[m.ID] = m.Clone()
	s.matchOrder = append(s.matchOrder, m.ID)

	tx0, tx1 := m.Sides[0].Hash, m.Sides[1].Hash
	s.paired[tx0] = append(s.paired[tx0], tx1)
	s.paired[tx1] = append(s.paired[tx1], tx0)

	if !m.Status.Terminal() {
		s.matchExpiry.ReplaceOrInsert(matchExpiryKey(m))
	}

	return nil
}

func (s *Store) UpdateMatch(m *rps.Match) error {
	previous, ok := s.matches[m.ID]
	if !ok {
		return fmt.Errorf("%w: match %s", rps.ErrNotFound, m.ID)
	}

	s.matchExpiry.Delete(matchExpiryKey(previous))

	s.matches[m.ID] = m.Clone()

	if !m.Status.Terminal() {
		s.matchExpiry.ReplaceOrInsert(matchExpiryKey(m))
	}

	return nil
}

func matchExpiryKey(m *rps.Match) expiryKey {
	return expiryKey{height: m.ExpireHeight, seq: m.Seq, id: m.ID}
}

func (s *Store) Counterparties(hash string) ([]string, error) {
	return append([]string(nil), s.paired[hash]...), nil
}

func (s *Store) ExpiredMatches(height int64) ([]*rps.Match, error) {
	var result []*rps.Match

	s.matchExpiry.AscendLessThan(expiryKey{height: height, seq: -1}, func(key expiryKey) bool {
		result = append(result, s.matches[key.id].Clone())

		return true
	})

	return result, nil
}

func (s *Store) Matches(filter rps.MatchFilter) ([]*rps.Match, error) {
	result := []*rps.Match{}

	for _, id := range s.matchOrder {
		m := s.matches[id]
		if filter.Accepts(m) {
			result = append(result, m.Clone())
		}
	}

	return result, nil
}

func (s *Store) AppendOfferExpiration(record rps.OfferExpiration) error {
	s.offerExpirations = append(s.offerExpirations, record)

	return nil
}

func (s *Store) AppendMatchExpiration(record rps.MatchExpiration) error {
	s.matchExpirations = append(s.matchExpirations, record)

	return nil
}

func (s *Store) OfferExpirations(height int64) ([]rps.OfferExpiration, error) {
	result := []rps.OfferExpiration{}

	for _, record := range s.offerExpirations {
		if height == 0 || record.Height == height {
			result = append(result, record)
		}
	}

	return result, nil
}

func (s *Store) MatchExpirations(height int64) ([]rps.MatchExpiration, error) {
	result := []rps.MatchExpiration{}

	for _, record := range s.matchExpirations {
		if height == 0 || record.Height == height {
			result = append(result, record)
		}
	}

	return result, nil
}
