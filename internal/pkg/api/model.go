package api

type OfferRequest struct {
	TxIndex int64  `json:"tx_index"`
	TxHash  string `json:"tx_hash"`
	Height  int64  `json:"height"`
	Source  string `json:"source"`

	// Payload is the hex encoded wire payload. When set, the explicit fields
	// below are ignored.
	Payload string `json:"payload,omitempty"`

	PossibleMoves int64  `json:"possible_moves"`
	Wager         int64  `json:"wager"`
	Commitment    string `json:"commitment"`
	Expiration    int64  `json:"expiration"`
}

type OfferResponse struct {
	OfferID string `json:"offer_id"`
	Status  string `json:"status"`
	Wager   int64  `json:"wager"`
}

type HeightRequest struct {
	Height int64 `json:"height"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Height int64  `json:"height"`
}

type CreditRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Amount  int64  `json:"amount"`
	Event   string `json:"event"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Balance int64  `json:"balance"`
}
