package rps

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetStatus is the entry point of the reveal step. It accepts the half and
// fully resolved statuses only; repeating the current status is a no-op.
func (e *Engine) SetStatus(store Store, ledger Ledger, id string, status MatchStatus, height int64) (*Match, []Event, error) {
	if status == StatusPending || status == StatusExpired {
		return nil, nil, fmt.Errorf("%w: %s cannot be set by a reveal", ErrInvalidStatus, status)
	}

	pos, err := store.Position()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load position: %w", err)
	}

	if height != pos.Height {
		return nil, nil, fmt.Errorf("%w: status update at height %d, current height %d", ErrOutOfOrder, height, pos.Height)
	}

	m, err := store.Match(id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load match %s: %w", id, err)
	}

	if m.Status == status {
		return m, nil, nil
	}

	if !transitionAllowed(m.Status, status) {
		return nil, nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, m.Status, status)
	}

	u := e.begin(store, ledger, height)

	err = u.transition(m, status)
	if err != nil {
		return nil, nil, err
	}

	return m, u.events, nil
}

func transitionAllowed(from, to MatchStatus) bool {
	if from.Terminal() {
		return false
	}

	if to.Terminal() {
		return true
	}

	return from == StatusPending
}

// transition moves m to status and settles the escrow when status is terminal.
func (u *unit) transition(m *Match, status MatchStatus) error {
	if m.Status.Terminal() {
		return halt(u.height, "match %s already settled as %s", m.ID, m.Status)
	}

	if status.Terminal() {
		err := u.settle(m, status)
		if err != nil {
			return err
		}
	}

	m.Status = status

	err := u.store.UpdateMatch(m)
	if err != nil {
		return u.fail(err, "failed to update match %s", m.ID)
	}

	u.emit(EventMatchUpdate, "", m.ID, status.String())

	u.Log.WithFields(logrus.Fields{
		"height": u.height,
		"match":  m.ID,
		"status": status.String(),
	}).Debug("match status updated")

	return nil
}

func (u *unit) settle(m *Match, status MatchStatus) error {
	asset := u.Config.Asset

	var err error

	switch status.Outcome {
	case OutcomeExpired, OutcomeTie:
		for _, side := range m.Sides {
			err = errors.Join(err, u.ledger.Credit(side.Address, asset, m.Wager, MatchEvent(m.ID), ActionRecredit))
		}
	case OutcomeFirstWins:
		err = u.ledger.Credit(m.Sides[0].Address, asset, 2*m.Wager, MatchEvent(m.ID), ActionWins)
	case OutcomeSecondWins:
		err = u.ledger.Credit(m.Sides[1].Address, asset, 2*m.Wager, MatchEvent(m.ID), ActionWins)
	case OutcomeNone:
		return halt(u.height, "match %s settled without an outcome", m.ID)
	}

	if err != nil {
		return u.fail(err, "failed to settle match %s", m.ID)
	}

	return nil
}
