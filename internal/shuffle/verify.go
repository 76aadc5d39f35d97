package shuffle

import (
	"bytes"
	"fmt"

	"github.com/lox/fairtable/poker"
)

// VerifyCard checks a single dealt card against the commitment.
func VerifyCard(c Commitment, o CardOpening) error {
	if o.Position < 0 || o.Position >= len(c.Leaves) {
		return fmt.Errorf("%w: position %d out of range", ErrVerification, o.Position)
	}
	s, err := LookupScheme(c.Scheme)
	if err != nil {
		return err
	}
	return s.Open(o.Position, o.Card, o.Blinding, c.Leaves[o.Position])
}

// VerifyCommitment checks that order and the blindings derived from proof
// reproduce the commitment's leaves and root, and that any signature is
// valid. It does not check that order was derived from the seed.
func VerifyCommitment(c Commitment, order []poker.Card, proof Proof) error {
	if proof.Scheme != c.Scheme {
		return fmt.Errorf("%w: proof scheme %q, commitment scheme %q", ErrVerification, proof.Scheme, c.Scheme)
	}
	s, err := LookupScheme(c.Scheme)
	if err != nil {
		return err
	}
	if err := checkDeck(order); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if err := checkRoot(c); err != nil {
		return err
	}
	if !bytes.Equal(seedDigest(proof.Seed), c.SeedDigest) {
		return fmt.Errorf("%w: seed does not match digest", ErrVerification)
	}
	blinds, err := blindings(s, proof.Seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	for i, card := range order {
		if err := s.Open(i, card, blinds[i], c.Leaves[i]); err != nil {
			return err
		}
	}
	return VerifySignature(c)
}

// VerifyShuffle is the full audit of a finished hand: VerifyCommitment plus
// re-deriving the order from the seed and re-running the order screen.
func VerifyShuffle(c Commitment, order []poker.Card, proof Proof) error {
	if err := VerifyCommitment(c, order, proof); err != nil {
		return err
	}
	derived, err := Permute(proof.Seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if !equalOrder(derived, order) {
		return fmt.Errorf("%w: order was not derived from the seed", ErrVerification)
	}
	if err := screenOrder(order); err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	return nil
}

// Verified reports whether VerifyShuffle accepts the hand.
func Verified(c Commitment, order []poker.Card, proof Proof) bool {
	return VerifyShuffle(c, order, proof) == nil
}
