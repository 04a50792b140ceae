package rps

import (
	"fmt"
	"strings"
)

type OfferStatus uint8

const (
	OfferOpen OfferStatus = iota
	OfferMatched
	OfferExpired
	OfferInvalid
)

var offerStatusNames = map[OfferStatus]string{
	OfferOpen:    "open",
	OfferMatched: "matched",
	OfferExpired: "expired",
	OfferInvalid: "invalid",
}

func (s OfferStatus) String() string {
	name, ok := offerStatusNames[s]
	if !ok {
		return fmt.Sprintf("unknown(%d)", s)
	}

	return name
}

func (s OfferStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *OfferStatus) UnmarshalText(text []byte) error {
	for status, name := range offerStatusNames {
		if name == string(text) {
			*s = status

			return nil
		}
	}

	return fmt.Errorf("%w: offer status %q", ErrInvalidStatus, text)
}

// Tx identifies the ledger transaction carrying an open offer.
type Tx struct {
	Index  int64  `json:"tx_index"`
	Hash   string `json:"tx_hash"`
	Height int64  `json:"height"`
	Source string `json:"source"`
}

type OpenParams struct {
	PossibleMoves int64  `json:"possible_moves"`
	Wager         int64  `json:"wager"`
	Commitment    string `json:"commitment"`
	Expiration    int64  `json:"expiration"`
}

type Offer struct {
	Index  int64  `json:"tx_index"`
	Hash   string `json:"tx_hash"`
	Height int64  `json:"height"`
	Source string `json:"source"`

	PossibleMoves int64  `json:"possible_moves"`
	Wager         int64  `json:"wager"`
	Commitment    string `json:"commitment"`
	Expiration    int64  `json:"expiration"`
	ExpireHeight  int64  `json:"expire_height"`

	Status   OfferStatus `json:"status"`
	Problems []string    `json:"problems,omitempty"`
}

// Describe renders the status the way it is reported for audit, including
// the joined validation problems of an invalid offer.
func (o *Offer) Describe() string {
	if o.Status == OfferInvalid {
		return "invalid: " + strings.Join(o.Problems, ", ")
	}

	return o.Status.String()
}

func (o *Offer) Clone() *Offer {
	c := *o
	if o.Problems != nil {
		c.Problems = append([]string(nil), o.Problems...)
	}

	return &c
}

// Revealed records which side of a match has revealed its move so far.
type Revealed uint8

const (
	RevealedNone Revealed = iota
	RevealedFirst
	RevealedSecond
)

type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeExpired
	OutcomeFirstWins
	OutcomeSecondWins
	OutcomeTie
)

// MatchStatus is a reveal progress paired with a terminal outcome. Once the
// outcome is set the reveal progress is cleared.
type MatchStatus struct {
	Revealed Revealed
	Outcome  Outcome
}

var (
	StatusPending        = MatchStatus{Revealed: RevealedNone, Outcome: OutcomeNone}
	StatusFirstRevealed  = MatchStatus{Revealed: RevealedFirst, Outcome: OutcomeNone}
	StatusSecondRevealed = MatchStatus{Revealed: RevealedSecond, Outcome: OutcomeNone}
	StatusExpired        = MatchStatus{Revealed: RevealedNone, Outcome: OutcomeExpired}
	StatusFirstWins      = MatchStatus{Revealed: RevealedNone, Outcome: OutcomeFirstWins}
	StatusSecondWins     = MatchStatus{Revealed: RevealedNone, Outcome: OutcomeSecondWins}
	StatusTie            = MatchStatus{Revealed: RevealedNone, Outcome: OutcomeTie}
)

var matchStatusNames = []struct {
	status MatchStatus
	name   string
}{
	{StatusPending, "pending"},
	{StatusFirstRevealed, "resolved and pending"},
	{StatusSecondRevealed, "pending and resolved"},
	{StatusExpired, "expired"},
	{StatusFirstWins, "concluded: first player wins"},
	{StatusSecondWins, "concluded: second player wins"},
	{StatusTie, "concluded: tie"},
}

func ParseMatchStatus(s string) (MatchStatus, error) {
	for _, entry := range matchStatusNames {
		if entry.name == s {
			return entry.status, nil
		}
	}

	return MatchStatus{}, fmt.Errorf("%w: match status %q", ErrInvalidStatus, s)
}

func (s MatchStatus) String() string {
	for _, entry := range matchStatusNames {
		if entry.status == s {
			return entry.name
		}
	}

	return fmt.Sprintf("unknown(%d/%d)", s.Revealed, s.Outcome)
}

func (s MatchStatus) Terminal() bool {
	return s.Outcome != OutcomeNone
}

func (s MatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MatchStatus) UnmarshalText(text []byte) error {
	status, err := ParseMatchStatus(string(text))
	if err != nil {
		return err
	}

	*s = status

	return nil
}

// Side is one constituent offer of a match. Side 0 is the offer that was
// already open, side 1 the offer whose admission triggered the match.
type Side struct {
	Index      int64  `json:"tx_index"`
	Hash       string `json:"tx_hash"`
	Address    string `json:"address"`
	Commitment string `json:"commitment"`
	Height     int64  `json:"height"`
	Expiration int64  `json:"expiration"`
}

type Match struct {
	ID  string `json:"id"`
	Seq int64  `json:"seq"`

	Sides [2]Side `json:"sides"`

	Wager         int64 `json:"wager"`
	PossibleMoves int64 `json:"possible_moves"`

	Height       int64       `json:"height"`
	ExpireHeight int64       `json:"match_expire_height"`
	Status       MatchStatus `json:"status"`
}

func (m *Match) Clone() *Match {
	c := *m

	return &c
}

func (m *Match) Counterparty(hash string) (string, bool) {
	switch hash {
	case m.Sides[0].Hash:
		return m.Sides[1].Hash, true
	case m.Sides[1].Hash:
		return m.Sides[0].Hash, true
	default:
		return "", false
	}
}

func MatchID(tx0Hash, tx1Hash string) string {
	return tx0Hash + tx1Hash
}

func sideOf(o *Offer) Side {
	return Side{
		Index:      o.Index,
		Hash:       o.Hash,
		Address:    o.Source,
		Commitment: o.Commitment,
		Height:     o.Height,
		Expiration: o.Expiration,
	}
}

type OfferExpiration struct {
	Index  int64  `json:"tx_index"`
	Hash   string `json:"tx_hash"`
	Source string `json:"source"`
	Height int64  `json:"height"`
}

type MatchExpiration struct {
	MatchID    string `json:"match_id"`
	Seq        int64  `json:"seq"`
	Tx0Address string `json:"tx0_address"`
	Tx1Address string `json:"tx1_address"`
	Height     int64  `json:"height"`
}

// Position is the replay cursor. Admissions are accepted only at Height and
// only with an index of at least NextIndex.
type Position struct {
	Height    int64 `json:"height"`
	NextIndex int64 `json:"next_index"`
}

type EventKind string

const (
	EventOfferInsert     EventKind = "offer.insert"
	EventOfferUpdate     EventKind = "offer.update"
	EventMatchInsert     EventKind = "match.insert"
	EventMatchUpdate     EventKind = "match.update"
	EventOfferExpiration EventKind = "offer.expiration"
	EventMatchExpiration EventKind = "match.expiration"
)

type Event struct {
	Kind   EventKind `json:"kind"`
	Height int64     `json:"height"`
	Offer  string    `json:"offer,omitempty"`
	Match  string    `json:"match,omitempty"`
	Status string    `json:"status"`
}
