package rps

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// OnNewHeight opens height and runs the expiration passes for it. It must run
// before any offer of that height is admitted.
func (e *Engine) OnNewHeight(store Store, ledger Ledger, height int64) ([]Event, error) {
	pos, err := store.Position()
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	if height <= pos.Height {
		return nil, fmt.Errorf("%w: height %d after height %d", ErrOutOfOrder, height, pos.Height)
	}

	u := e.begin(store, ledger, height)

	err = u.expireOffers()
	if err != nil {
		return nil, err
	}

	err = u.expireMatches()
	if err != nil {
		return nil, err
	}

	err = store.SetPosition(Position{Height: height, NextIndex: pos.NextIndex})
	if err != nil {
		return nil, fmt.Errorf("failed to store position: %w", err)
	}

	return u.events, nil
}

func (u *unit) expireOffers() error {
	offers, err := u.store.ExpiredOffers(u.height)
	if err != nil {
		return u.fail(err, "failed to load expired offers")
	}

	slices.SortFunc(offers, func(a, b *Offer) int { return cmp.Compare(a.Index, b.Index) })

	for _, offer := range offers {
		if offer.Status != OfferOpen || offer.ExpireHeight >= u.height {
			return halt(u.height, "offer %s is not an expired open offer", offer.Hash)
		}

		offer.Status = OfferExpired

		err = u.store.UpdateOffer(offer)
		if err != nil {
			return u.fail(err, "failed to expire offer %s", offer.Hash)
		}

		u.emit(EventOfferUpdate, offer.Hash, "", offer.Describe())

		err = u.ledger.Credit(offer.Source, u.Config.Asset, offer.Wager, OfferEvent(offer.Hash), ActionRecredit)
		if err != nil {
			return u.fail(err, "failed to recredit offer %s", offer.Hash)
		}

		err = u.store.AppendOfferExpiration(OfferExpiration{
			Index:  offer.Index,
			Hash:   offer.Hash,
			Source: offer.Source,
			Height: u.height,
		})
		if err != nil {
			return u.fail(err, "failed to record expiration of offer %s", offer.Hash)
		}

		u.emit(EventOfferExpiration, offer.Hash, "", offer.Describe())

		u.Log.WithFields(logrus.Fields{"height": u.height, "offer": offer.Hash}).Debug("offer expired")
	}

	return nil
}

// timeoutStatus is the status an unresolved match takes when its window
// closes. A side that revealed wins against a side that did not.
func timeoutStatus(status MatchStatus) MatchStatus {
	switch status.Revealed {
	case RevealedFirst:
		return StatusFirstWins
	case RevealedSecond:
		return StatusSecondWins
	case RevealedNone:
		return StatusExpired
	}

	return StatusExpired
}

func (u *unit) expireMatches() error {
	matches, err := u.store.ExpiredMatches(u.height)
	if err != nil {
		return u.fail(err, "failed to load expired matches")
	}

	slices.SortFunc(matches, func(a, b *Match) int { return cmp.Compare(a.Seq, b.Seq) })

	for _, m := range matches {
		if m.Status.Terminal() || m.ExpireHeight >= u.height {
			return halt(u.height, "match %s is not an expired unresolved match", m.ID)
		}

		status := timeoutStatus(m.Status)

		err = u.transition(m, status)
		if err != nil {
			return err
		}

		err = u.store.AppendMatchExpiration(MatchExpiration{
			MatchID:    m.ID,
			Seq:        m.Seq,
			Tx0Address: m.Sides[0].Address,
			Tx1Address: m.Sides[1].Address,
			Height:     u.height,
		})
		if err != nil {
			return u.fail(err, "failed to record expiration of match %s", m.ID)
		}

		u.emit(EventMatchExpiration, "", m.ID, status.String())

		if status == StatusExpired {
			err = u.relist(m)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// relist reopens the offers of a match nobody revealed in, as long as the
// offers themselves are still live, and lets them look for a new partner.
func (u *unit) relist(m *Match) error {
	queue := make([]*Offer, 0, len(m.Sides))

	for _, side := range m.Sides {
		offer, err := u.store.Offer(side.Hash)
		if errors.Is(err, ErrNotFound) {
			return halt(u.height, "match %s refers to unknown offer %s", m.ID, side.Hash)
		}

		if err != nil {
			return u.fail(err, "failed to load offer %s", side.Hash)
		}

		if offer.Status == OfferMatched && offer.ExpireHeight >= u.height {
			queue = append(queue, offer)
		}
	}

	slices.SortFunc(queue, func(a, b *Offer) int { return cmp.Compare(a.Index, b.Index) })

	for len(queue) > 0 {
		offer := queue[0]
		queue = queue[1:]

		err := u.ledger.Debit(offer.Source, u.Config.Asset, offer.Wager, MatchEvent(m.ID), ActionReopen)
		if err != nil {
			return u.fail(err, "failed to escrow wager of reopened offer %s", offer.Hash)
		}

		offer.Status = OfferOpen

		err = u.store.UpdateOffer(offer)
		if err != nil {
			return u.fail(err, "failed to reopen offer %s", offer.Hash)
		}

		u.emit(EventOfferUpdate, offer.Hash, m.ID, offer.Describe())

		u.Log.WithFields(logrus.Fields{
			"height": u.height,
			"offer":  offer.Hash,
			"match":  m.ID,
		}).Debug("offer reopened")

		err = u.match(offer.Hash)
		if err != nil {
			return err
		}
	}

	return nil
}
