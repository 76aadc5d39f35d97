package shuffle

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"github.com/lox/fairtable/poker"
)

// SeedSize is the length of a deck seed in bytes.
const SeedSize = 32

const (
	domainSeed       = "fairtable/v1/deck-seed"
	domainShuffle    = "fairtable/v1/shuffle-stream"
	domainBlinding   = "fairtable/v1/blinding-stream"
	domainSeedDigest = "fairtable/v1/seed-digest"
	domainRoot       = "fairtable/v1/commitment-root"
	domainHashLeaf   = "fairtable/v1/hash-leaf"
	domainPedersenH  = "fairtable/v1/pedersen-h"
)

// keystream is a ChaCha20 stream keyed from a seed and a domain label.
type keystream struct {
	*chacha20.Cipher
	word [4]byte
}

func newKeystream(seed []byte, label string) (*keystream, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	key := make([]byte, chacha20.KeySize)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, seed, []byte(label)), key); err != nil {
		return nil, err
	}
	defer clear(key)
	c, err := chacha20.NewUnauthenticatedCipher(key, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, err
	}
	return &keystream{Cipher: c}, nil
}

// Read fills p with keystream bytes.
func (k *keystream) Read(p []byte) (int, error) {
	clear(p)
	k.XORKeyStream(p, p)
	return len(p), nil
}

func (k *keystream) uint32() uint32 {
	k.word = [4]byte{}
	k.XORKeyStream(k.word[:], k.word[:])
	return binary.LittleEndian.Uint32(k.word[:])
}

// intn returns a uniform value in [0, n). Draws that fall in the final
// partial block of the 32-bit range are rejected so that no residue is
// favoured.
func (k *keystream) intn(n uint32) uint32 {
	const span = uint64(1) << 32
	limit := span - span%uint64(n)
	for {
		if v := uint64(k.uint32()); v < limit {
			return uint32(v % uint64(n))
		}
	}
}

// Permute derives the deck order for seed: Fisher-Yates over the factory
// order driven by the shuffle keystream. The same seed always yields the same
// order, which is what lets an auditor re-derive it.
func Permute(seed []byte) ([]poker.Card, error) {
	ks, err := newKeystream(seed, domainShuffle)
	if err != nil {
		return nil, err
	}
	order := poker.FactoryOrder()
	for i := len(order) - 1; i > 0; i-- {
		j := ks.intn(uint32(i + 1))
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
