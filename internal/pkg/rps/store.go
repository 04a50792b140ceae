package rps

// Reader exposes the audit side of the offer and match stores.
type Reader interface {
	Position() (Position, error)

	Offer(hash string) (*Offer, error)
	Offers(filter OfferFilter) ([]*Offer, error)

	Match(id string) (*Match, error)
	Matches(filter MatchFilter) ([]*Match, error)

	OfferExpirations(height int64) ([]OfferExpiration, error)
	MatchExpirations(height int64) ([]MatchExpiration, error)
}

// Store is the mutable view handed to the engine for the duration of one
// atomic unit.
type Store interface {
	Reader

	SetPosition(pos Position) error

	InsertOffer(offer *Offer) error
	UpdateOffer(offer *Offer) error

	// OldestOpen returns the open offer with the lowest index that satisfies
	// the query, or nil when there is none.
	OldestOpen(query OpenQuery) (*Offer, error)
	// ExpiredOffers returns the open offers whose expire height is below height.
	ExpiredOffers(height int64) ([]*Offer, error)

	// InsertMatch assigns the next match sequence number.
	InsertMatch(match *Match) error
	UpdateMatch(match *Match) error

	// Counterparties returns the hashes of every offer already paired with hash.
	Counterparties(hash string) ([]string, error)
	// ExpiredMatches returns the unresolved matches whose expire height is below height.
	ExpiredMatches(height int64) ([]*Match, error)

	AppendOfferExpiration(record OfferExpiration) error
	AppendMatchExpiration(record MatchExpiration) error
}

type Balances interface {
	Balance(account, asset string) (int64, error)
}

// Ledger is the account ledger collaborator. Debit and Credit are idempotent
// per (event, action, account).
type Ledger interface {
	Balances

	Debit(account, asset string, amount int64, event, action string) error
	Credit(account, asset string, amount int64, event, action string) error
}

// OfferEvent and MatchEvent name the ledger events of an offer and a match.
// Hashes and match ids are free-form, so the kind keeps them from sharing an
// idempotency key.
func OfferEvent(hash string) string {
	return "offer:" + hash
}

func MatchEvent(id string) string {
	return "match:" + id
}

const (
	ActionOpen     = "open RPS"
	ActionRecredit = "recredit wager"
	ActionWins     = "wins"
	ActionReopen   = "reopen RPS after matching expiration"
	ActionDeposit  = "deposit"
)

type OpenQuery struct {
	PossibleMoves int64
	Wager         int64
	// ExcludeSource is the account of the offer looking for a partner.
	ExcludeSource string
	Exclude       map[string]struct{}
}

// Accepts reports whether the open offer o is an eligible partner.
func (q OpenQuery) Accepts(o *Offer) bool {
	if o.Status != OfferOpen || o.PossibleMoves != q.PossibleMoves || o.Wager != q.Wager {
		return false
	}

	if o.Source == q.ExcludeSource {
		return false
	}

	_, excluded := q.Exclude[o.Hash]

	return !excluded
}

// OfferFilter selects offers for audit queries. Zero fields match everything.
type OfferFilter struct {
	Source string
	Status string
	Height int64
}

func (f OfferFilter) Accepts(o *Offer) bool {
	if f.Source != "" && f.Source != o.Source {
		return false
	}

	if f.Status != "" && f.Status != o.Status.String() {
		return false
	}

	return f.Height == 0 || f.Height == o.Height
}

// MatchFilter selects matches for audit queries. Address matches either side.
type MatchFilter struct {
	Address string
	Status  string
	Height  int64
}

func (f MatchFilter) Accepts(m *Match) bool {
	if f.Address != "" && f.Address != m.Sides[0].Address && f.Address != m.Sides[1].Address {
		return false
	}

	if f.Status != "" && f.Status != m.Status.String() {
		return false
	}

	return f.Height == 0 || f.Height == m.Height
}
