package shuffle

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
)

// Signer signs commitment roots with a long-lived dealer key so that players
// can tell which dealer published a deck.
type Signer struct {
	private kyber.Scalar
	public  kyber.Point
}

// NewSigner generates a fresh dealer key.
func NewSigner() *Signer {
	priv := suite.Scalar().Pick(suite.RandomStream())
	return &Signer{private: priv, public: suite.Point().Mul(priv, nil)}
}

// SignerFromHex loads a dealer key from its hex encoded scalar.
func SignerFromHex(s string) (*Signer, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode dealer key: %w", err)
	}
	priv := suite.Scalar()
	if err := priv.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("decode dealer key: %w", err)
	}
	return &Signer{private: priv, public: suite.Point().Mul(priv, nil)}, nil
}

// PublicKey returns the encoded public key.
func (s *Signer) PublicKey() []byte {
	b, _ := s.public.MarshalBinary()
	return b
}

// PrivateKeyHex returns the hex encoded private scalar, for persisting a
// generated key.
func (s *Signer) PrivateKeyHex() string {
	b, _ := s.private.MarshalBinary()
	return hex.EncodeToString(b)
}

// Sign attaches a signature over c.Root.
func (s *Signer) Sign(c *Commitment) error {
	sig, err := schnorr.Sign(suite, s.private, c.Root)
	if err != nil {
		return fmt.Errorf("sign commitment: %w", err)
	}
	c.Signature = sig
	c.DealerKey = s.PublicKey()
	return nil
}

// VerifySignature checks the dealer signature on c. A commitment without a
// signature passes; callers that require one check c.Signature themselves.
func VerifySignature(c Commitment) error {
	if len(c.Signature) == 0 {
		return nil
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(c.DealerKey); err != nil {
		return fmt.Errorf("%w: dealer key: %v", ErrVerification, err)
	}
	if err := schnorr.Verify(suite, pub, c.Root, c.Signature); err != nil {
		return fmt.Errorf("%w: signature: %v", ErrVerification, err)
	}
	return nil
}
