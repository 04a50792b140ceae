// Package storetest checks that an rps.Store implementation behaves the way
// the engine expects. Every backend runs the same suite.
package storetest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/rps"
)

// Update runs fn against the store inside one unit of work.
type Update func(fn func(store rps.Store) error) error

// Run runs the suite. open must return a fresh, empty store for each call.
func Run(t *testing.T, open func(t *testing.T) Update) {
	t.Helper()

	t.Run("position_starts_empty", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			pos, err := store.Position()
			require.NoError(t, err)
			assert.Equal(t, rps.Position{}, pos)

			require.NoError(t, store.SetPosition(rps.Position{Height: 7, NextIndex: 3}))
		})

		must(t, update, func(store rps.Store) {
			pos, err := store.Position()
			require.NoError(t, err)
			assert.Equal(t, rps.Position{Height: 7, NextIndex: 3}, pos)
		})
	})

	t.Run("offer_lifecycle", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			_, err := store.Offer("a")
			require.ErrorIs(t, err, rps.ErrNotFound)

			require.NoError(t, store.InsertOffer(offer(1, "a", "A", 10)))
			require.ErrorIs(t, store.InsertOffer(offer(2, "a", "A", 10)), rps.ErrDuplicate)
			require.ErrorIs(t, store.UpdateOffer(offer(3, "b", "B", 10)), rps.ErrNotFound)
		})

		must(t, update, func(store rps.Store) {
			got, err := store.Offer("a")
			require.NoError(t, err)
			assert.Equal(t, offer(1, "a", "A", 10), got)

			got.Status = rps.OfferInvalid
			got.Problems = []string{"non-positive wager"}
			require.NoError(t, store.UpdateOffer(got))
		})

		must(t, update, func(store rps.Store) {
			got, err := store.Offer("a")
			require.NoError(t, err)
			assert.Equal(t, "invalid: non-positive wager", got.Describe())
		})
	})

	t.Run("oldest_open_is_fifo", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			require.NoError(t, store.InsertOffer(offer(3, "c", "C", 10)))
			require.NoError(t, store.InsertOffer(offer(5, "e", "E", 20)))
			require.NoError(t, store.InsertOffer(offer(7, "g", "G", 10)))
			require.NoError(t, store.InsertOffer(offer(9, "i", "I", 10)))

			got, err := store.OldestOpen(rps.OpenQuery{PossibleMoves: 3, Wager: 10})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "c", got.Hash)

			got, err = store.OldestOpen(rps.OpenQuery{
				PossibleMoves: 3,
				Wager:         10,
				ExcludeSource: "C",
				Exclude:       map[string]struct{}{"g": {}},
			})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "i", got.Hash)

			got, err = store.OldestOpen(rps.OpenQuery{PossibleMoves: 5, Wager: 10})
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = store.OldestOpen(rps.OpenQuery{PossibleMoves: 3, Wager: 15})
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	})

	t.Run("closed_offers_leave_the_book", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			require.NoError(t, store.InsertOffer(offer(1, "a", "A", 10)))
			require.NoError(t, store.InsertOffer(offer(2, "b", "B", 10)))

			a, err := store.Offer("a")
			require.NoError(t, err)

			a.Status = rps.OfferMatched
			require.NoError(t, store.UpdateOffer(a))

			got, err := store.OldestOpen(rps.OpenQuery{PossibleMoves: 3, Wager: 10})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "b", got.Hash)

			expired, err := store.ExpiredOffers(1000)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, hashes(expired))

			a.Status = rps.OfferOpen
			require.NoError(t, store.UpdateOffer(a))

			got, err = store.OldestOpen(rps.OpenQuery{PossibleMoves: 3, Wager: 10})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "a", got.Hash)
		})
	})

	t.Run("expired_offers_are_strictly_below", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			for i, expireHeight := range []int64{15, 11, 10, 12} {
				o := offer(int64(i+1), string(rune('a'+i)), "A", 10)
				o.ExpireHeight = expireHeight
				require.NoError(t, store.InsertOffer(o))
			}

			expired, err := store.ExpiredOffers(12)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"b", "c"}, hashes(expired))

			expired, err = store.ExpiredOffers(10)
			require.NoError(t, err)
			assert.Empty(t, expired)
		})
	})

	t.Run("offers_filter", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			require.NoError(t, store.InsertOffer(offer(1, "a", "A", 10)))
			require.NoError(t, store.InsertOffer(offer(2, "b", "B", 10)))

			c := offer(3, "c", "A", 10)
			c.Height = 6
			c.Status = rps.OfferExpired
			require.NoError(t, store.InsertOffer(c))

			all, err := store.Offers(rps.OfferFilter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, hashes(all))

			bySource, err := store.Offers(rps.OfferFilter{Source: "A"})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, hashes(bySource))

			byStatus, err := store.Offers(rps.OfferFilter{Status: "open", Source: "A"})
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, hashes(byStatus))

			byHeight, err := store.Offers(rps.OfferFilter{Height: 6})
			require.NoError(t, err)
			assert.Equal(t, []string{"c"}, hashes(byHeight))
		})
	})

	t.Run("match_lifecycle", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			first := match("a", "b", 30)
			require.NoError(t, store.InsertMatch(first))
			assert.Equal(t, int64(1), first.Seq)

			second := match("c", "a", 25)
			require.NoError(t, store.InsertMatch(second))
			assert.Equal(t, int64(2), second.Seq)

			require.ErrorIs(t, store.InsertMatch(match("a", "b", 30)), rps.ErrDuplicate)
			require.ErrorIs(t, store.UpdateMatch(match("x", "y", 30)), rps.ErrNotFound)
		})

		must(t, update, func(store rps.Store) {
			got, err := store.Match("ab")
			require.NoError(t, err)
			assert.Equal(t, int64(1), got.Seq)
			assert.Equal(t, rps.StatusPending, got.Status)

			counterparties, err := store.Counterparties("a")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"b", "c"}, counterparties)

			counterparties, err = store.Counterparties("z")
			require.NoError(t, err)
			assert.Empty(t, counterparties)

			expired, err := store.ExpiredMatches(31)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"ab", "ca"}, ids(expired))

			expired, err = store.ExpiredMatches(30)
			require.NoError(t, err)
			assert.Equal(t, []string{"ca"}, ids(expired))

			got.Status = rps.StatusTie
			require.NoError(t, store.UpdateMatch(got))

			expired, err = store.ExpiredMatches(100)
			require.NoError(t, err)
			assert.Equal(t, []string{"ca"}, ids(expired))

			_, err = store.Match("ba")
			require.ErrorIs(t, err, rps.ErrNotFound)
		})
	})

	t.Run("matches_filter", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			require.NoError(t, store.InsertMatch(match("a", "b", 30)))

			m := match("c", "d", 40)
			m.Height = 20
			m.Status = rps.StatusSecondRevealed
			require.NoError(t, store.InsertMatch(m))

			all, err := store.Matches(rps.MatchFilter{})
			require.NoError(t, err)
			assert.Equal(t, []string{"ab", "cd"}, ids(all))

			byAddress, err := store.Matches(rps.MatchFilter{Address: "D"})
			require.NoError(t, err)
			assert.Equal(t, []string{"cd"}, ids(byAddress))

			byStatus, err := store.Matches(rps.MatchFilter{Status: "pending and resolved"})
			require.NoError(t, err)
			assert.Equal(t, []string{"cd"}, ids(byStatus))

			byHeight, err := store.Matches(rps.MatchFilter{Height: 10})
			require.NoError(t, err)
			assert.Equal(t, []string{"ab"}, ids(byHeight))
		})
	})

	t.Run("expiration_records", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			require.NoError(t, store.AppendOfferExpiration(rps.OfferExpiration{Index: 1, Hash: "a", Source: "A", Height: 11}))
			require.NoError(t, store.AppendOfferExpiration(rps.OfferExpiration{Index: 2, Hash: "b", Source: "B", Height: 12}))
			require.NoError(t, store.AppendMatchExpiration(rps.MatchExpiration{MatchID: "ab", Seq: 1, Tx0Address: "A", Tx1Address: "B", Height: 12}))
		})

		must(t, update, func(store rps.Store) {
			offers, err := store.OfferExpirations(12)
			require.NoError(t, err)
			assert.Equal(t, []rps.OfferExpiration{{Index: 2, Hash: "b", Source: "B", Height: 12}}, offers)

			offers, err = store.OfferExpirations(0)
			require.NoError(t, err)
			assert.Len(t, offers, 2)

			matches, err := store.MatchExpirations(12)
			require.NoError(t, err)
			assert.Equal(t, []rps.MatchExpiration{{MatchID: "ab", Seq: 1, Tx0Address: "A", Tx1Address: "B", Height: 12}}, matches)

			matches, err = store.MatchExpirations(11)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	})

	t.Run("returned_values_are_copies", func(t *testing.T) {
		update := open(t)

		must(t, update, func(store rps.Store) {
			require.NoError(t, store.InsertOffer(offer(1, "a", "A", 10)))

			got, err := store.Offer("a")
			require.NoError(t, err)

			got.Status = rps.OfferExpired

			again, err := store.Offer("a")
			require.NoError(t, err)
			assert.Equal(t, rps.OfferOpen, again.Status)
		})
	})
}

func must(t *testing.T, update Update, fn func(store rps.Store)) {
	t.Helper()

	require.NoError(t, update(func(store rps.Store) error {
		fn(store)

		return nil
	}))
}

func offer(index int64, hash, source string, wager int64) *rps.Offer {
	return &rps.Offer{
		Index:         index,
		Hash:          hash,
		Height:        5,
		Source:        source,
		PossibleMoves: 3,
		Wager:         wager,
		Commitment:    "00",
		Expiration:    10,
		ExpireHeight:  15,
		Status:        rps.OfferOpen,
	}
}

func match(tx0, tx1 string, expireHeight int64) *rps.Match {
	return &rps.Match{
		ID: rps.MatchID(tx0, tx1),
		Sides: [2]rps.Side{
			{Hash: tx0, Address: strings.ToUpper(tx0)},
			{Hash: tx1, Address: strings.ToUpper(tx1)},
		},
		Wager:         10,
		PossibleMoves: 3,
		Height:        10,
		ExpireHeight:  expireHeight,
		Status:        rps.StatusPending,
	}
}

func hashes(offers []*rps.Offer) []string {
	result := make([]string, 0, len(offers))
	for _, o := range offers {
		result = append(result, o.Hash)
	}

	return result
}

func ids(matches []*rps.Match) []string {
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		result = append(result, m.ID)
	}

	return result
}
