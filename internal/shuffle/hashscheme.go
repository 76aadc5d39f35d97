package shuffle

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/lox/fairtable/poker"
)

const hashBlindingSize = 32

// HashScheme commits with a salted BLAKE2b-256 digest of the position, the
// card and a 32 byte blinding value.
type HashScheme struct{}

func (HashScheme) Name() string { return "hash" }

func (HashScheme) NewBlinding(stream cipher.Stream) ([]byte, error) {
	b := make([]byte, hashBlindingSize)
	stream.XORKeyStream(b, b)
	return b, nil
}

func (HashScheme) Commit(position int, card poker.Card, blinding []byte) ([]byte, error) {
	if !card.Valid() {
		return nil, fmt.Errorf("invalid card %d", uint8(card))
	}
	if len(blinding) != hashBlindingSize {
		return nil, fmt.Errorf("blinding must be %d bytes", hashBlindingSize)
	}
	buf := make([]byte, 0, len(domainHashLeaf)+3+hashBlindingSize)
	buf = append(buf, domainHashLeaf...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(position))
	buf = append(buf, byte(card))
	buf = append(buf, blinding...)
	sum := blake2b.Sum256(buf)
	return sum[:], nil
}

func (s HashScheme) Open(position int, card poker.Card, blinding, leaf []byte) error {
	want, err := s.Commit(position, card, blinding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if subtle.ConstantTimeCompare(want, leaf) != 1 {
		return fmt.Errorf("%w: position %d does not open to %s", ErrVerification, position, card)
	}
	return nil
}
