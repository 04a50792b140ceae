package rps

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

const CommitmentSize = 32

// MaxWager keeps the winner's payout of twice the wager within int64.
const MaxWager int64 = math.MaxInt64 / 2

// Validate lists every rule the offer parameters break. An empty result
// means the offer may be opened.
func Validate(params OpenParams, maxExpiration int64) []string {
	problems := []string{}

	commitment, err := hex.DecodeString(params.Commitment)
	if err != nil {
		return append(problems, "commitment must be a hexadecimal string")
	}

	if params.PossibleMoves < 3 {
		problems = append(problems, "possible moves must be at least 3")
	}

	if params.PossibleMoves%2 == 0 {
		problems = append(problems, "possible moves must be odd")
	}

	if params.Wager <= 0 {
		problems = append(problems, "non-positive wager")
	}

	if params.Wager > MaxWager {
		problems = append(problems, "wager overflow")
	}

	if params.Expiration <= 0 {
		problems = append(problems, "non-positive expiration")
	}

	if params.Expiration > maxExpiration {
		problems = append(problems, "expiration overflow")
	}

	if len(commitment) != CommitmentSize {
		problems = append(problems, fmt.Sprintf("commitment must be %d bytes in hexadecimal format", CommitmentSize))
	}

	return problems
}

// Compose validates params and returns the wire payload of an open offer.
func Compose(params OpenParams, maxExpiration int64) ([]byte, error) {
	problems := Validate(params, maxExpiration)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOffer, strings.Join(problems, ", "))
	}

	return EncodePayload(params)
}
