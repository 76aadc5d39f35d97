package shuffle

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/lox/fairtable/poker"
)

// Scheme commits to one card at one deck position. Implementations must be
// hiding (a leaf reveals nothing without its blinding) and binding (no other
// card opens the same leaf).
type Scheme interface {
	// Name identifies the scheme inside commitments.
	Name() string
	// NewBlinding draws the blinding value for one position from stream.
	NewBlinding(stream cipher.Stream) ([]byte, error)
	// Commit returns the leaf for card at position.
	Commit(position int, card poker.Card, blinding []byte) ([]byte, error)
	// Open checks that leaf commits to card at position under blinding.
	Open(position int, card poker.Card, blinding, leaf []byte) error
}

var (
	schemesMu sync.RWMutex
	schemes   = map[string]Scheme{}
)

// Register makes a scheme available to LookupScheme and to verification of
// commitments that name it.
func Register(s Scheme) {
	schemesMu.Lock()
	defer schemesMu.Unlock()
	schemes[s.Name()] = s
}

// LookupScheme returns the registered scheme with the given name.
func LookupScheme(name string) (Scheme, error) {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	s, ok := schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return s, nil
}

// Schemes lists the registered scheme names.
func Schemes() []string {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(HashScheme{})
	Register(NewPedersenScheme())
}

// Commitment is published before the first card is dealt.
type Commitment struct {
	Scheme     string   `json:"scheme"`
	TableID    string   `json:"table_id"`
	HandID     string   `json:"hand_id"`
	SeedDigest []byte   `json:"seed_digest"`
	Leaves     [][]byte `json:"leaves"`
	Root       []byte   `json:"root"`
	// Signature is the dealer's Schnorr signature over Root, when signing is
	// enabled, and DealerKey the matching public key.
	Signature []byte `json:"signature,omitempty"`
	DealerKey []byte `json:"dealer_key,omitempty"`
}

// CardOpening proves the card dealt from one position.
type CardOpening struct {
	Position int        `json:"position"`
	Card     poker.Card `json:"card"`
	Blinding []byte     `json:"blinding"`
}

// Proof is released once the hand is over. With the commitment and the
// revealed order it lets anyone re-derive and check the whole deck.
type Proof struct {
	Scheme string `json:"scheme"`
	Seed   []byte `json:"seed"`
}

func seedDigest(seed []byte) []byte {
	sum := blake2b.Sum256(append([]byte(domainSeedDigest), seed...))
	return sum[:]
}

func commitmentRoot(c Commitment) []byte {
	h, _ := blake2b.New256(nil)
	writeField(h, []byte(domainRoot))
	writeField(h, []byte(c.Scheme))
	writeField(h, []byte(c.TableID))
	writeField(h, []byte(c.HandID))
	writeField(h, c.SeedDigest)
	for _, leaf := range c.Leaves {
		writeField(h, leaf)
	}
	return h.Sum(nil)
}

// writeField writes a length-prefixed field so that adjacent fields cannot be
// re-split into a different commitment.
func writeField(w interface{ Write([]byte) (int, error) }, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	_, _ = w.Write(n[:])
	_, _ = w.Write(b)
}

// blindings derives one blinding value per position from seed.
func blindings(s Scheme, seed []byte) ([][]byte, error) {
	ks, err := newKeystream(seed, domainBlinding)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, poker.DeckSize)
	for i := range out {
		if out[i], err = s.NewBlinding(ks); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// commit builds the commitment for order under s.
func commit(s Scheme, tableID, handID string, seed []byte, order []poker.Card, blinds [][]byte) (Commitment, error) {
	c := Commitment{
		Scheme:     s.Name(),
		TableID:    tableID,
		HandID:     handID,
		SeedDigest: seedDigest(seed),
		Leaves:     make([][]byte, len(order)),
	}
	for i, card := range order {
		leaf, err := s.Commit(i, card, blinds[i])
		if err != nil {
			return Commitment{}, fmt.Errorf("commit position %d: %w", i, err)
		}
		c.Leaves[i] = leaf
	}
	c.Root = commitmentRoot(c)
	return c, nil
}

// checkRoot confirms the root binds the published leaves and metadata.
func checkRoot(c Commitment) error {
	if len(c.Leaves) != poker.DeckSize {
		return fmt.Errorf("%w: commitment has %d leaves", ErrVerification, len(c.Leaves))
	}
	if !bytes.Equal(commitmentRoot(c), c.Root) {
		return fmt.Errorf("%w: root does not match leaves", ErrVerification)
	}
	return nil
}
