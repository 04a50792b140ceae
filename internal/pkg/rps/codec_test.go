package rps_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vreid/janken/internal/pkg/rps"
)

func TestPayloadLayout(t *testing.T) {
	t.Parallel()

	params := rps.OpenParams{
		PossibleMoves: 5,
		Wager:         1_000_000,
		Commitment:    hex.EncodeToString(make([]byte, rps.CommitmentSize)),
		Expiration:    10,
	}

	payload, err := rps.EncodePayload(params)
	require.NoError(t, err)
	require.Len(t, payload, rps.PayloadSize)

	assert.Equal(t, []byte{0x00, 0x05}, payload[0:2])
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0x0f, 0x42, 0x40}, payload[2:10])
	assert.Equal(t, []byte{0, 0, 0, 0x0a}, payload[42:46])

	decoded, err := rps.DecodePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestDecodePayloadRejects(t *testing.T) {
	t.Parallel()

	_, err := rps.DecodePayload(make([]byte, rps.PayloadSize-1))
	require.ErrorIs(t, err, rps.ErrMalformedPayload)

	_, err = rps.DecodePayload(nil)
	require.ErrorIs(t, err, rps.ErrMalformedPayload)

	huge := make([]byte, rps.PayloadSize)
	huge[2] = 0x80
	_, err = rps.DecodePayload(huge)
	require.ErrorIs(t, err, rps.ErrMalformedPayload)
}

func TestEncodePayloadRange(t *testing.T) {
	t.Parallel()

	_, err := rps.EncodePayload(rps.OpenParams{PossibleMoves: 1 << 16, Wager: 1, Commitment: commitment, Expiration: 1})
	require.ErrorIs(t, err, rps.ErrPayloadRange)

	_, err = rps.EncodePayload(rps.OpenParams{PossibleMoves: 3, Wager: 1, Commitment: "abc", Expiration: 1})
	require.ErrorIs(t, err, rps.ErrPayloadRange)
}

func TestCompose(t *testing.T) {
	t.Parallel()

	payload, err := rps.Compose(rps.OpenParams{PossibleMoves: 3, Wager: 7, Commitment: commitment, Expiration: 9}, rps.DefaultMaxExpiration)
	require.NoError(t, err)
	assert.Len(t, payload, rps.PayloadSize)

	_, err = rps.Compose(rps.OpenParams{PossibleMoves: 4, Wager: 0, Commitment: commitment, Expiration: 9}, rps.DefaultMaxExpiration)
	require.ErrorIs(t, err, rps.ErrInvalidOffer)
	assert.Contains(t, err.Error(), "possible moves must be odd, non-positive wager")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	t.Parallel()

	problems := rps.Validate(rps.OpenParams{
		PossibleMoves: 2,
		Wager:         -1,
		Commitment:    "00",
		Expiration:    0,
	}, rps.DefaultMaxExpiration)

	assert.Equal(t, []string{
		"possible moves must be at least 3",
		"possible moves must be odd",
		"non-positive wager",
		"non-positive expiration",
		"commitment must be 32 bytes in hexadecimal format",
	}, problems)

	assert.Equal(t, []string{"wager overflow"}, rps.Validate(rps.OpenParams{
		PossibleMoves: 3,
		Wager:         rps.MaxWager + 1,
		Commitment:    commitment,
		Expiration:    1,
	}, rps.DefaultMaxExpiration))

	assert.Empty(t, rps.Validate(rps.OpenParams{
		PossibleMoves: 3,
		Wager:         rps.MaxWager,
		Commitment:    commitment,
		Expiration:    rps.DefaultMaxExpiration,
	}, rps.DefaultMaxExpiration))
}

func TestCommitment(t *testing.T) {
	t.Parallel()

	random := []byte(strings.Repeat("r", 16))

	a := rps.Commitment(1, random)
	b := rps.Commitment(2, random)

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, rps.Commitment(1, random))
	assert.Empty(t, rps.Validate(rps.OpenParams{
		PossibleMoves: 3,
		Wager:         1,
		Commitment:    hex.EncodeToString(a[:]),
		Expiration:    1,
	}, rps.DefaultMaxExpiration))
}

func TestMatchStatusText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text   string
		status rps.MatchStatus
	}{
		{"pending", rps.StatusPending},
		{"resolved and pending", rps.StatusFirstRevealed},
		{"pending and resolved", rps.StatusSecondRevealed},
		{"expired", rps.StatusExpired},
		{"concluded: first player wins", rps.StatusFirstWins},
		{"concluded: second player wins", rps.StatusSecondWins},
		{"concluded: tie", rps.StatusTie},
	}

	for _, tt := range tests {
		status, err := rps.ParseMatchStatus(tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.status, status)
		assert.Equal(t, tt.text, status.String())
	}

	_, err := rps.ParseMatchStatus("concluded")
	require.ErrorIs(t, err, rps.ErrInvalidStatus)

	assert.False(t, rps.StatusSecondRevealed.Terminal())
	assert.True(t, rps.StatusExpired.Terminal())
}
