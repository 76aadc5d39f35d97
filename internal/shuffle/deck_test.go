package shuffle

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/poker"
)

func randomBlock(t *testing.T, seed int64) []byte {
	t.Helper()
	// 64 bytes from a keystream so the block passes screening but is stable.
	s := make([]byte, SeedSize)
	s[0] = byte(seed)
	s[1] = byte(seed >> 8)
	s[31] = 0x5a
	ks, err := newKeystream(s, "test-block")
	require.NoError(t, err)
	out := make([]byte, sourceBytes)
	_, _ = ks.Read(out)
	return out
}

func fixedDealer(t *testing.T, opts ...DealerOption) *Dealer {
	t.Helper()
	c := NewCollector(WithSource(FixedSource{Bytes: randomBlock(t, 1)}, true))
	return NewDealer(c, opts...)
}

func TestNewDeckHasAllCards(t *testing.T) {
	t.Parallel()

	deck, err := NewDealer(nil).NewDeck(context.Background(), "t1", "h1")
	require.NoError(t, err)
	assert.Equal(t, poker.DeckSize, deck.Remaining())

	var seen poker.Hand
	for range poker.DeckSize {
		o, err := deck.Next()
		require.NoError(t, err)
		require.False(t, seen.Has(o.Card), "duplicate %s", o.Card)
		seen = seen.Add(o.Card)
	}
	assert.Equal(t, poker.DeckSize, seen.Count())

	_, err = deck.Next()
	assert.ErrorIs(t, err, ErrDeckExhausted)
}

func TestPermuteIsDeterministic(t *testing.T) {
	t.Parallel()

	seed := bytes.Repeat([]byte{0x42, 0x17}, SeedSize/2)
	a, err := Permute(seed)
	require.NoError(t, err)
	b, err := Permute(seed)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	seed[0] ^= 1
	c, err := Permute(seed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = Permute(seed[:10])
	assert.Error(t, err)
}

func TestZeroEntropyFailsClosed(t *testing.T) {
	t.Parallel()

	c := NewCollector(WithSource(FixedSource{}, true))
	d := NewDealer(c, WithMaxAttempts(2))

	deck, err := d.NewDeck(context.Background(), "t1", "h1")
	require.ErrorIs(t, err, ErrWeakEntropy)
	assert.Nil(t, deck)
}

func TestOptionalGarbageSourceStillFails(t *testing.T) {
	t.Parallel()

	c := NewCollector(
		WithSource(SystemSource{}, true),
		WithSource(FixedSource{Label: "stuck", Bytes: []byte{0xAA}}, false),
	)
	_, err := c.Seed(context.Background(), "t", "h")
	assert.ErrorIs(t, err, ErrWeakEntropy)
}

type failingSource struct{}

func (failingSource) Name() string { return "down" }
func (failingSource) Read(context.Context, []byte) error {
	return ErrSourceUnavailable
}

func TestUnavailableOptionalSourceIsSkipped(t *testing.T) {
	t.Parallel()

	c := NewCollector(
		WithSource(SystemSource{}, true),
		WithSource(failingSource{}, false),
	)
	seed, err := c.Seed(context.Background(), "t", "h")
	require.NoError(t, err)
	assert.Len(t, seed, SeedSize)
}

func TestUnavailableRequiredSourceFails(t *testing.T) {
	t.Parallel()

	c := NewCollector(WithSource(failingSource{}, true))
	_, err := c.Seed(context.Background(), "t", "h")
	assert.ErrorIs(t, err, ErrWeakEntropy)
}

func TestSeedIsBoundToHand(t *testing.T) {
	t.Parallel()

	c := NewCollector(WithSource(FixedSource{Bytes: randomBlock(t, 2)}, true))
	a, err := c.Seed(context.Background(), "t", "h1")
	require.NoError(t, err)
	b, err := c.Seed(context.Background(), "t", "h2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRevealMustBeInSequence(t *testing.T) {
	t.Parallel()

	deck, err := fixedDealer(t).NewDeck(context.Background(), "t1", "h1")
	require.NoError(t, err)

	_, err = deck.Reveal(1)
	assert.ErrorIs(t, err, ErrOutOfSequenceReveal)

	_, err = deck.Reveal(0)
	require.NoError(t, err)
	_, err = deck.Reveal(0)
	assert.ErrorIs(t, err, ErrOutOfSequenceReveal)

	burned, err := deck.Burn()
	require.NoError(t, err)
	assert.Equal(t, 1, burned.Position)
	assert.Equal(t, 2, deck.Position())
}

func TestGenuineDeckVerifies(t *testing.T) {
	t.Parallel()

	for _, scheme := range []string{"hash", "pedersen"} {
		t.Run(scheme, func(t *testing.T) {
			t.Parallel()

			s, err := LookupScheme(scheme)
			require.NoError(t, err)
			deck, err := fixedDealer(t, WithScheme(s)).NewDeck(context.Background(), "t1", "h1")
			require.NoError(t, err)
			c := deck.Commitment()
			assert.Equal(t, scheme, c.Scheme)

			for range 9 {
				o, err := deck.Next()
				require.NoError(t, err)
				assert.NoError(t, VerifyCard(c, o))

				forged := o
				forged.Card = (o.Card + 1) % poker.DeckSize
				assert.ErrorIs(t, VerifyCard(c, forged), ErrVerification)
			}

			proof, order, err := deck.Finalize()
			require.NoError(t, err)
			assert.NoError(t, VerifyShuffle(c, order, proof))
			assert.True(t, Verified(c, order, proof))

			_, err = deck.Next()
			assert.ErrorIs(t, err, ErrDeckClosed)
		})
	}
}

func TestTamperedOrderFailsVerification(t *testing.T) {
	t.Parallel()

	deck, err := fixedDealer(t).NewDeck(context.Background(), "t1", "h1")
	require.NoError(t, err)
	c := deck.Commitment()
	proof, order, err := deck.Finalize()
	require.NoError(t, err)

	swapped := append([]poker.Card(nil), order...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	assert.ErrorIs(t, VerifyShuffle(c, swapped, proof), ErrVerification)

	badSeed := proof
	badSeed.Seed = append([]byte(nil), proof.Seed...)
	badSeed.Seed[0] ^= 0xFF
	assert.ErrorIs(t, VerifyShuffle(c, order, badSeed), ErrVerification)

	badRoot := c
	badRoot.Root = append([]byte(nil), c.Root...)
	badRoot.Root[0] ^= 1
	assert.ErrorIs(t, VerifyShuffle(badRoot, order, proof), ErrVerification)

	assert.ErrorIs(t, VerifyShuffle(c, order[:51], proof), ErrVerification)
}

func TestStackedDeckFailsShuffleAudit(t *testing.T) {
	t.Parallel()

	order := poker.FactoryOrder()
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	deck, err := StackDeck("hash", "t1", "h1", order)
	require.NoError(t, err)

	o, err := deck.Next()
	require.NoError(t, err)
	assert.Equal(t, order[0], o.Card)

	c := deck.Commitment()
	proof, got, err := deck.Finalize()
	require.NoError(t, err)
	assert.Equal(t, order, got)
	assert.NoError(t, VerifyCommitment(c, got, proof))
	assert.ErrorIs(t, VerifyShuffle(c, got, proof), ErrVerification)
}

func TestSignedCommitment(t *testing.T) {
	t.Parallel()

	signer := NewSigner()
	deck, err := fixedDealer(t, WithSigner(signer)).NewDeck(context.Background(), "t1", "h1")
	require.NoError(t, err)
	c := deck.Commitment()
	require.NotEmpty(t, c.Signature)
	assert.Equal(t, signer.PublicKey(), c.DealerKey)
	assert.NoError(t, VerifySignature(c))

	proof, order, err := deck.Finalize()
	require.NoError(t, err)
	assert.NoError(t, VerifyShuffle(c, order, proof))

	other := NewSigner()
	c.DealerKey = other.PublicKey()
	assert.ErrorIs(t, VerifySignature(c), ErrVerification)

	reloaded, err := SignerFromHex(signer.PrivateKeyHex())
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), reloaded.PublicKey())
}

func TestWipeClosesDeck(t *testing.T) {
	t.Parallel()

	deck, err := fixedDealer(t).NewDeck(context.Background(), "t1", "h1")
	require.NoError(t, err)
	deck.Wipe()
	assert.Equal(t, 0, deck.Remaining())
	_, _, err = deck.Finalize()
	assert.True(t, errors.Is(err, ErrDeckClosed))
}

func TestUnknownScheme(t *testing.T) {
	t.Parallel()

	_, err := LookupScheme("rot13")
	assert.ErrorIs(t, err, ErrUnknownScheme)
	assert.Equal(t, []string{"hash", "pedersen"}, Schemes())
}
