package chain_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/chain"
	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/rps"
	"github.com/vreid/janken/internal/pkg/store/boltstore"
)

var commitment = strings.Repeat("cd", rps.CommitmentSize)

type recorder struct {
	mu     sync.Mutex
	events []rps.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, events []rps.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, events...)

	return r.err
}

func (r *recorder) kinds() []rps.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]rps.EventKind, 0, len(r.events))
	for _, event := range r.events {
		result = append(result, event.Kind)
	}

	return result
}

func newService(t *testing.T, backend chain.Backend) (*chain.ChainService, *recorder) {
	t.Helper()

	log, _ := test.NewNullLogger()
	publisher := &recorder{}

	return chain.New(backend, rps.NewEngine(rps.DefaultConfig(), log), publisher, log), publisher
}

func boltBackend(t *testing.T) *boltstore.Backend {
	t.Helper()

	db, err := common.OpenDatabase(filepath.Join(t.TempDir(), "janken.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return boltstore.NewBackend(db)
}

func params(wager, expiration int64) rps.OpenParams {
	return rps.OpenParams{PossibleMoves: 3, Wager: wager, Commitment: commitment, Expiration: expiration}
}

func TestPublishesCommittedEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, publisher := newService(t, chain.NewMemoryBackend())

	require.NoError(t, s.Credit(ctx, "X", rps.DefaultAsset, 100, "genesis"))
	require.NoError(t, s.Credit(ctx, "Y", rps.DefaultAsset, 100, "genesis"))
	require.NoError(t, s.NewHeight(ctx, 1))

	_, err := s.Admit(ctx, rps.Tx{Index: 1, Hash: "x1", Height: 1, Source: "X"}, params(10, 5))
	require.NoError(t, err)

	_, err = s.Admit(ctx, rps.Tx{Index: 1, Hash: "x2", Height: 1, Source: "X"}, params(10, 5))
	require.ErrorIs(t, err, rps.ErrOutOfOrder)

	_, err = s.Admit(ctx, rps.Tx{Index: 2, Hash: "y1", Height: 1, Source: "Y"}, params(10, 5))
	require.NoError(t, err)

	m, err := s.SetStatus(ctx, "x1y1", rps.StatusSecondWins, 1)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusSecondWins, m.Status)

	assert.Equal(t, []rps.EventKind{
		rps.EventOfferInsert,
		rps.EventOfferInsert,
		rps.EventOfferUpdate,
		rps.EventOfferUpdate,
		rps.EventMatchInsert,
		rps.EventMatchUpdate,
	}, publisher.kinds())

	err = s.View(func(_ rps.Reader, balances rps.Balances) error {
		y, err := balances.Balance("Y", rps.DefaultAsset)
		require.NoError(t, err)
		assert.Equal(t, int64(110), y)

		return nil
	})
	require.NoError(t, err)
}

func TestPublishFailureKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, publisher := newService(t, chain.NewMemoryBackend())
	publisher.err = errors.New("connection refused")

	require.NoError(t, s.Credit(ctx, "X", rps.DefaultAsset, 100, "genesis"))
	require.NoError(t, s.NewHeight(ctx, 1))

	offer, err := s.Admit(ctx, rps.Tx{Index: 1, Hash: "x1", Height: 1, Source: "X"}, params(10, 5))
	require.NoError(t, err)
	assert.Equal(t, rps.OfferOpen, offer.Status)
}

type brokenLedger struct {
	rps.Ledger
}

func (brokenLedger) Debit(string, string, int64, string, string) error {
	return errors.New("journal unavailable")
}

type brokenBackend struct {
	*chain.MemoryBackend
}

func (b brokenBackend) Update(fn func(store rps.Store, ledger rps.Ledger) error) error {
	return fn(b.Store, brokenLedger{b.Ledger})
}

func TestHaltRefusesFurtherWork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, publisher := newService(t, brokenBackend{chain.NewMemoryBackend()})

	require.NoError(t, s.Credit(ctx, "X", rps.DefaultAsset, 100, "genesis"))
	require.NoError(t, s.NewHeight(ctx, 1))
	assert.Nil(t, s.Halted())

	_, err := s.Admit(ctx, rps.Tx{Index: 1, Hash: "x1", Height: 1, Source: "X"}, params(10, 5))

	h, ok := rps.IsHalt(err)
	require.True(t, ok)
	assert.Equal(t, int64(1), h.Height)
	assert.Equal(t, h, s.Halted())

	err = s.NewHeight(ctx, 2)
	require.ErrorIs(t, err, chain.ErrHalted)

	_, ok = rps.IsHalt(err)
	assert.True(t, ok)

	assert.Empty(t, publisher.kinds())
}

type step func(ctx context.Context, s *chain.ChainService) error

func script() []step {
	admit := func(index int64, hash, source string, wager, expiration int64) step {
		return func(ctx context.Context, s *chain.ChainService) error {
			pos := int64(0)

			err := s.View(func(reader rps.Reader, _ rps.Balances) error {
				p, err := reader.Position()
				pos = p.Height

				return err
			})
			if err != nil {
				return err
			}

			_, err = s.Admit(ctx, rps.Tx{Index: index, Hash: hash, Height: pos, Source: source}, params(wager, expiration))

			return err
		}
	}

	height := func(h int64) step {
		return func(ctx context.Context, s *chain.ChainService) error {
			return s.NewHeight(ctx, h)
		}
	}

	status := func(id string, status rps.MatchStatus, h int64) step {
		return func(ctx context.Context, s *chain.ChainService) error {
			_, err := s.SetStatus(ctx, id, status, h)

			return err
		}
	}

	credit := func(account string, amount int64) step {
		return func(ctx context.Context, s *chain.ChainService) error {
			return s.Credit(ctx, account, rps.DefaultAsset, amount, "genesis")
		}
	}

	return []step{
		credit("A", 1000),
		credit("B", 1000),
		credit("C", 1000),
		credit("D", 50),
		height(100),
		admit(1, "a1", "A", 100, 200),
		admit(2, "a2", "A", 100, 3),
		admit(3, "b1", "B", 100, 200),
		admit(4, "d1", "D", 100, 200),
		height(101),
		admit(5, "c1", "C", 50, 200),
		admit(6, "c2", "C", 100, 200),
		status("d1c1", rps.StatusFirstRevealed, 101),
		height(110),
		admit(7, "b2", "B", 70, 2),
		height(125),
		admit(8, "c3", "C", 100, 10),
		height(150),
		status("c2b1", rps.StatusTie, 150),
	}
}

func TestBackendsAgree(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	memory, _ := newService(t, chain.NewMemoryBackend())
	bolt, _ := newService(t, boltBackend(t))

	for i, run := range script() {
		errMemory := run(ctx, memory)
		errBolt := run(ctx, bolt)

		require.NoError(t, errMemory, "step %d", i)
		require.NoError(t, errBolt, "step %d", i)
	}

	want := snapshot(t, memory)
	assert.Equal(t, want, snapshot(t, bolt))
	assert.Len(t, want.Matches, 6)
	assert.Equal(t, rps.StatusTie, want.Matches[5].Status)
}

type state struct {
	Position         rps.Position
	Offers           []*rps.Offer
	Matches          []*rps.Match
	OfferExpirations []rps.OfferExpiration
	MatchExpirations []rps.MatchExpiration
	Balances         map[string]int64
}

func snapshot(t *testing.T, s *chain.ChainService) state {
	t.Helper()

	var result state

	err := s.View(func(reader rps.Reader, balances rps.Balances) error {
		var err error

		result.Position, err = reader.Position()
		require.NoError(t, err)

		result.Offers, err = reader.Offers(rps.OfferFilter{})
		require.NoError(t, err)

		result.Matches, err = reader.Matches(rps.MatchFilter{})
		require.NoError(t, err)

		result.OfferExpirations, err = reader.OfferExpirations(0)
		require.NoError(t, err)

		result.MatchExpirations, err = reader.MatchExpirations(0)
		require.NoError(t, err)

		result.Balances = map[string]int64{}

		for _, account := range []string{"A", "B", "C", "D"} {
			result.Balances[account], err = balances.Balance(account, rps.DefaultAsset)
			require.NoError(t, err)
		}

		return nil
	})
	require.NoError(t, err)

	return result
}
