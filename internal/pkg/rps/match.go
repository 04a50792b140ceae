package rps

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// match pairs the open offer hash with the oldest compatible open offer it
// has never been paired with before.
func (u *unit) match(hash string) error {
	offer, err := u.store.Offer(hash)
	if errors.Is(err, ErrNotFound) {
		return halt(u.height, "offer %s vanished before matching", hash)
	}

	if err != nil {
		return u.fail(err, "failed to load offer %s", hash)
	}

	if offer.Status != OfferOpen {
		return nil
	}

	counterparties, err := u.store.Counterparties(hash)
	if err != nil {
		return u.fail(err, "failed to load counterparties of %s", hash)
	}

	exclude := make(map[string]struct{}, len(counterparties))
	for _, counterparty := range counterparties {
		exclude[counterparty] = struct{}{}
	}

	partner, err := u.partner(offer, exclude)
	if err != nil {
		return err
	}

	if partner == nil {
		return nil
	}

	for _, o := range []*Offer{partner, offer} {
		o.Status = OfferMatched

		err = u.store.UpdateOffer(o)
		if err != nil {
			return u.fail(err, "failed to mark offer %s matched", o.Hash)
		}

		u.emit(EventOfferUpdate, o.Hash, "", o.Describe())
	}

	m := &Match{
		ID:            MatchID(partner.Hash, offer.Hash),
		Sides:         [2]Side{sideOf(partner), sideOf(offer)},
		Wager:         offer.Wager,
		PossibleMoves: offer.PossibleMoves,
		Height:        u.height,
		ExpireHeight:  u.height + u.Config.MatchWindow,
		Status:        StatusPending,
	}

	err = u.store.InsertMatch(m)
	if err != nil {
		return u.fail(err, "failed to insert match %s", m.ID)
	}

	u.emit(EventMatchInsert, "", m.ID, m.Status.String())

	u.Log.WithFields(logrus.Fields{
		"height": u.height,
		"match":  m.ID,
		"tx0":    partner.Hash,
		"tx1":    offer.Hash,
	}).Debug("offers matched")

	return nil
}

// partner returns the oldest eligible open offer whose match id with offer is
// still free. Ids are plain concatenations, so distinct pairs can collide.
func (u *unit) partner(offer *Offer, exclude map[string]struct{}) (*Offer, error) {
	query := OpenQuery{
		PossibleMoves: offer.PossibleMoves,
		Wager:         offer.Wager,
		ExcludeSource: offer.Source,
		Exclude:       exclude,
	}

	for {
		partner, err := u.store.OldestOpen(query)
		if err != nil {
			return nil, u.fail(err, "failed to look up partner of %s", offer.Hash)
		}

		if partner == nil {
			return nil, nil
		}

		id := MatchID(partner.Hash, offer.Hash)

		_, err = u.store.Match(id)
		if errors.Is(err, ErrNotFound) {
			return partner, nil
		}

		if err != nil {
			return nil, u.fail(err, "failed to load match %s", id)
		}

		u.Log.WithFields(logrus.Fields{
			"height":  u.height,
			"offer":   offer.Hash,
			"partner": partner.Hash,
			"match":   id,
		}).Warn("match id taken, skipping partner")

		query.Exclude[partner.Hash] = struct{}{}
	}
}
