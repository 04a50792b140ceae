package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"
	"github.com/vreid/janken/internal/pkg/common"
	"github.com/vreid/janken/internal/pkg/notify"
	"github.com/vreid/janken/internal/pkg/rps"
	"github.com/vreid/janken/internal/pkg/store/boltstore"
)

const (
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

var (
	ErrHalted         = errors.New("chain halted")
	ErrUnknownBackend = errors.New("unknown backend")
)

// ChainService serializes every state change. Each admission, status update
// and height boundary runs as one backend unit under a single lock, and the
// events of a unit are published only once it has committed.
type ChainService struct {
	Backend   Backend
	Engine    *rps.Engine
	Publisher notify.Publisher
	Log       logrus.FieldLogger

	mu     sync.Mutex
	halted *rps.HaltError
}

func NewChainService(i do.Injector) (*ChainService, error) {
	log := do.MustInvoke[*logrus.Logger](i)
	publisher := do.MustInvoke[notify.Publisher](i)

	config := rps.Config{
		Asset:         do.MustInvokeNamed[string](i, "asset"),
		MaxExpiration: do.MustInvokeNamed[int64](i, "max-expiration"),
		MatchWindow:   do.MustInvokeNamed[int64](i, "match-window"),
	}

	var backend Backend

	switch name := do.MustInvokeNamed[string](i, "backend"); name {
	case BackendMemory:
		backend = NewMemoryBackend()
	case BackendBolt:
		databaseService, err := do.Invoke[*common.DatabaseService](i)
		if err != nil {
			return nil, fmt.Errorf("failed to create database service: %w", err)
		}

		backend = boltstore.NewBackend(databaseService.DB)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}

	return New(backend, rps.NewEngine(config, log), publisher, log), nil
}

func New(backend Backend, engine *rps.Engine, publisher notify.Publisher, log logrus.FieldLogger) *ChainService {
	return &ChainService{
		Backend:   backend,
		Engine:    engine,
		Publisher: publisher,
		Log:       log,
	}
}

func (s *ChainService) Halted() *rps.HaltError {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.halted
}

func (s *ChainService) run(ctx context.Context, fn func(store rps.Store, ledger rps.Ledger) ([]rps.Event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, s.halted)
	}

	var events []rps.Event

	err := s.Backend.Update(func(store rps.Store, ledger rps.Ledger) error {
		var err error

		events, err = fn(store, ledger)

		return err
	})
	if err != nil {
		if h, ok := rps.IsHalt(err); ok {
			s.halted = h
			s.Log.WithFields(logrus.Fields{"height": h.Height, "reason": h.Reason}).Error("chain halted")
		}

		return err
	}

	if len(events) > 0 {
		err = s.Publisher.Publish(ctx, events)
		if err != nil {
			s.Log.WithError(err).Warn("failed to publish events")
		}
	}

	return nil
}

func (s *ChainService) NewHeight(ctx context.Context, height int64) error {
	return s.run(ctx, func(store rps.Store, ledger rps.Ledger) ([]rps.Event, error) {
		return s.Engine.OnNewHeight(store, ledger, height)
	})
}

func (s *ChainService) Admit(ctx context.Context, tx rps.Tx, params rps.OpenParams) (*rps.Offer, error) {
	var offer *rps.Offer

	err := s.run(ctx, func(store rps.Store, ledger rps.Ledger) ([]rps.Event, error) {
		var (
			events []rps.Event
			err    error
		)

		offer, events, err = s.Engine.Admit(store, ledger, tx, params)

		return events, err
	})

	return offer, err
}

func (s *ChainService) AdmitPayload(ctx context.Context, tx rps.Tx, payload []byte) (*rps.Offer, error) {
	var offer *rps.Offer

	err := s.run(ctx, func(store rps.Store, ledger rps.Ledger) ([]rps.Event, error) {
		var (
			events []rps.Event
			err    error
		)

		offer, events, err = s.Engine.AdmitPayload(store, ledger, tx, payload)

		return events, err
	})

	return offer, err
}

func (s *ChainService) SetStatus(ctx context.Context, id string, status rps.MatchStatus, height int64) (*rps.Match, error) {
	var m *rps.Match

	err := s.run(ctx, func(store rps.Store, ledger rps.Ledger) ([]rps.Event, error) {
		var (
			events []rps.Event
			err    error
		)

		m, events, err = s.Engine.SetStatus(store, ledger, id, status, height)

		return events, err
	})

	return m, err
}

// Credit funds an account from outside the game, e.g. a genesis allocation.
func (s *ChainService) Credit(ctx context.Context, account, asset string, amount int64, event string) error {
	return s.run(ctx, func(_ rps.Store, ledger rps.Ledger) ([]rps.Event, error) {
		return nil, ledger.Credit(account, asset, amount, event, rps.ActionDeposit)
	})
}

func (s *ChainService) View(fn func(reader rps.Reader, balances rps.Balances) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Backend.View(fn)
}
