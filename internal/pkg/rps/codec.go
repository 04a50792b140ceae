package rps

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// PayloadSize is the length of an encoded open offer:
// possible moves (uint16), wager (uint64), commitment (32 bytes) and
// expiration (uint32), all big-endian.
const PayloadSize = 2 + 8 + CommitmentSize + 4

var ErrPayloadRange = errors.New("value does not fit the payload")

func EncodePayload(params OpenParams) ([]byte, error) {
	if params.PossibleMoves < 0 || params.PossibleMoves > math.MaxUint16 {
		return nil, fmt.Errorf("%w: possible moves %d", ErrPayloadRange, params.PossibleMoves)
	}

	if params.Wager < 0 {
		return nil, fmt.Errorf("%w: wager %d", ErrPayloadRange, params.Wager)
	}

	if params.Expiration < 0 || params.Expiration > math.MaxUint32 {
		return nil, fmt.Errorf("%w: expiration %d", ErrPayloadRange, params.Expiration)
	}

	commitment, err := hex.DecodeString(params.Commitment)
	if err != nil || len(commitment) != CommitmentSize {
		return nil, fmt.Errorf("%w: commitment %q", ErrPayloadRange, params.Commitment)
	}

	buf := make([]byte, PayloadSize)
	//nolint:gosec // range checked above
	binary.BigEndian.PutUint16(buf[0:2], uint16(params.PossibleMoves))
	//nolint:gosec // range checked above
	binary.BigEndian.PutUint64(buf[2:10], uint64(params.Wager))
	copy(buf[10 : 10+CommitmentSize], commitment)
	//nolint:gosec // range checked above
	binary.BigEndian.PutUint32(buf[10+CommitmentSize:], uint32(params.Expiration))

	return buf, nil
}

func DecodePayload(data []byte) (OpenParams, error) {
	if len(data) != PayloadSize {
		return OpenParams{}, fmt.Errorf("%w: payload is %d bytes, expected %d", ErrMalformedPayload, len(data), PayloadSize)
	}

	wager := binary.BigEndian.Uint64(data[2:10])
	if wager > math.MaxInt64 {
		return OpenParams{}, fmt.Errorf("%w: wager %d overflows", ErrMalformedPayload, wager)
	}

	return OpenParams{
		PossibleMoves: int64(binary.BigEndian.Uint16(data[0:2])),
		Wager:         int64(wager), //nolint:gosec // overflow checked above
		Commitment:    hex.EncodeToString(data[10 : 10+CommitmentSize]),
		Expiration:    int64(binary.BigEndian.Uint32(data[10+CommitmentSize:])),
	}, nil
}
