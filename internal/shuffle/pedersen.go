package shuffle

import (
	"crypto/cipher"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/suites"

	"github.com/lox/fairtable/poker"
)

var suite = suites.MustFind("Ed25519")

// PedersenScheme commits to card c at a position as (c+1)*G + r*H on
// Ed25519, where H is a second generator with no known discrete log relative
// to G. The position is bound through the commitment root rather than the
// point itself.
type PedersenScheme struct {
	h kyber.Point
}

// NewPedersenScheme derives H by hashing a fixed label onto the curve.
func NewPedersenScheme() *PedersenScheme {
	h := suite.Point().Pick(suite.XOF([]byte(domainPedersenH)))
	return &PedersenScheme{h: h}
}

func (*PedersenScheme) Name() string { return "pedersen" }

func (*PedersenScheme) NewBlinding(stream cipher.Stream) ([]byte, error) {
	return suite.Scalar().Pick(stream).MarshalBinary()
}

func (p *PedersenScheme) Commit(_ int, card poker.Card, blinding []byte) ([]byte, error) {
	if !card.Valid() {
		return nil, fmt.Errorf("invalid card %d", uint8(card))
	}
	r := suite.Scalar()
	if err := r.UnmarshalBinary(blinding); err != nil {
		return nil, fmt.Errorf("blinding: %w", err)
	}
	m := suite.Scalar().SetInt64(int64(card) + 1)
	point := suite.Point().Add(suite.Point().Mul(m, nil), suite.Point().Mul(r, p.h))
	return point.MarshalBinary()
}

func (p *PedersenScheme) Open(position int, card poker.Card, blinding, leaf []byte) error {
	got := suite.Point()
	if err := got.UnmarshalBinary(leaf); err != nil {
		return fmt.Errorf("%w: leaf %d: %v", ErrVerification, position, err)
	}
	raw, err := p.Commit(position, card, blinding)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	want := suite.Point()
	if err := want.UnmarshalBinary(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if !got.Equal(want) {
		return fmt.Errorf("%w: position %d does not open to %s", ErrVerification, position, card)
	}
	return nil
}
