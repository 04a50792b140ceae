package rps

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	DefaultAsset         = "XCP"
	DefaultMaxExpiration = 4 * 2016
	DefaultMatchWindow   = 20
)

type Config struct {
	Asset         string
	MaxExpiration int64
	MatchWindow   int64
}

func DefaultConfig() Config {
	return Config{
		Asset:         DefaultAsset,
		MaxExpiration: DefaultMaxExpiration,
		MatchWindow:   DefaultMatchWindow,
	}
}

// Engine applies offers, reveal updates and height boundaries to a store and
// a ledger. It holds no state of its own; every call works on the store it is
// given, so callers decide what one atomic unit is.
type Engine struct {
	Config Config
	Log    logrus.FieldLogger
}

func NewEngine(config Config, log logrus.FieldLogger) *Engine {
	return &Engine{
		Config: config,
		Log:    log,
	}
}

type unit struct {
	*Engine

	store  Store
	ledger Ledger
	height int64
	events []Event
}

func (e *Engine) begin(store Store, ledger Ledger, height int64) *unit {
	return &unit{
		Engine: e,
		store:  store,
		ledger: ledger,
		height: height,
	}
}

func (u *unit) emit(kind EventKind, offer, match, status string) {
	u.events = append(u.events, Event{
		Kind:   kind,
		Height: u.height,
		Offer:  offer,
		Match:  match,
		Status: status,
	})
}

// Admit records an open offer carried by tx. Invalid parameters never fail
// the call; the offer is stored as invalid instead.
func (e *Engine) Admit(store Store, ledger Ledger, tx Tx, params OpenParams) (*Offer, []Event, error) {
	return e.admit(store, ledger, tx, &params)
}

// AdmitPayload decodes an encoded open offer and admits it. A payload that
// cannot be decoded is recorded as an invalid offer.
func (e *Engine) AdmitPayload(store Store, ledger Ledger, tx Tx, payload []byte) (*Offer, []Event, error) {
	params, err := DecodePayload(payload)
	if err != nil {
		e.Log.WithFields(logrus.Fields{"offer": tx.Hash, "error": err}).Debug("undecodable offer payload")

		return e.admit(store, ledger, tx, nil)
	}

	return e.admit(store, ledger, tx, &params)
}

//nolint:funlen
func (e *Engine) admit(store Store, ledger Ledger, tx Tx, params *OpenParams) (*Offer, []Event, error) {
	pos, err := store.Position()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load position: %w", err)
	}

	if tx.Height != pos.Height || tx.Index < pos.NextIndex {
		return nil, nil, fmt.Errorf("%w: tx %d at height %d, expected index >= %d at height %d",
			ErrOutOfOrder, tx.Index, tx.Height, pos.NextIndex, pos.Height)
	}

	_, err = store.Offer(tx.Hash)
	if err == nil {
		return nil, nil, fmt.Errorf("%w: offer %s", ErrDuplicate, tx.Hash)
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load offer: %w", err)
	}

	u := e.begin(store, ledger, tx.Height)

	offer := &Offer{
		Index:        tx.Index,
		Hash:         tx.Hash,
		Height:       tx.Height,
		Source:       tx.Source,
		ExpireHeight: tx.Height,
		Status:       OfferInvalid,
		Problems:     []string{ErrMalformedPayload.Error()},
	}

	if params != nil {
		balance, err := ledger.Balance(tx.Source, e.Config.Asset)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load balance: %w", err)
		}

		wager := min(params.Wager, balance)

		offer.PossibleMoves = params.PossibleMoves
		offer.Wager = wager
		offer.Commitment = params.Commitment
		offer.Expiration = params.Expiration

		truncated := *params
		truncated.Wager = wager

		offer.Problems = Validate(truncated, e.Config.MaxExpiration)
		if len(offer.Problems) == 0 {
			offer.Status = OfferOpen
			offer.Problems = nil
			offer.ExpireHeight = tx.Height + params.Expiration
		}
	}

	if offer.Status == OfferOpen {
		err = ledger.Debit(offer.Source, e.Config.Asset, offer.Wager, OfferEvent(offer.Hash), ActionOpen)
		if err != nil {
			return nil, nil, u.fail(err, "failed to escrow wager of offer %s", offer.Hash)
		}
	}

	err = store.InsertOffer(offer)
	if err != nil {
		return nil, nil, u.fail(err, "failed to insert offer %s", offer.Hash)
	}

	u.emit(EventOfferInsert, offer.Hash, "", offer.Describe())

	e.Log.WithFields(logrus.Fields{
		"height": tx.Height,
		"offer":  offer.Hash,
		"wager":  offer.Wager,
		"status": offer.Describe(),
	}).Debug("offer admitted")

	if offer.Status == OfferOpen {
		err = u.match(offer.Hash)
		if err != nil {
			return nil, nil, err
		}
	}

	err = store.SetPosition(Position{Height: pos.Height, NextIndex: tx.Index + 1})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store position: %w", err)
	}

	admitted, err := store.Offer(offer.Hash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload offer: %w", err)
	}

	return admitted, u.events, nil
}

// fail turns an error raised while state is half-applied into a halt, unless
// it already is one.
func (u *unit) fail(err error, format string, args ...any) error {
	if _, ok := IsHalt(err); ok {
		return err
	}

	return halt(u.height, "%s: %v", fmt.Sprintf(format, args...), err)
}
