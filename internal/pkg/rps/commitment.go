package rps

import (
	"crypto/sha256"
	"encoding/binary"
)

// Commitment binds a move to a secret random value. Only the reveal step
// checks it; admission treats the digest as opaque.
func Commitment(move uint16, random []byte) [CommitmentSize]byte {
	data := make([]byte, 0, len(random)+2)
	data = append(data, random...)
	data = binary.BigEndian.AppendUint16(data, move)

	first := sha256.Sum256(data)

	return sha256.Sum256(first[:])
}
