package shuffle

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lox/fairtable/poker"
)

// CommittedDeck is a shuffled deck whose commitment has been fixed. Cards
// come off it strictly in position order.
type CommittedDeck struct {
	mu         sync.Mutex
	commitment Commitment
	scheme     Scheme
	seed       []byte
	order      []poker.Card
	blindings  [][]byte
	next       int
	closed     bool
}

func newCommittedDeck(s Scheme, tableID, handID string, seed []byte, order []poker.Card) (*CommittedDeck, error) {
	blinds, err := blindings(s, seed)
	if err != nil {
		return nil, err
	}
	c, err := commit(s, tableID, handID, seed, order, blinds)
	if err != nil {
		return nil, err
	}
	return &CommittedDeck{
		commitment: c,
		scheme:     s,
		seed:       seed,
		order:      order,
		blindings:  blinds,
	}, nil
}

// StackDeck commits to a caller-chosen order. The blindings and seed digest
// come from a fresh random seed, but the order is not derived from it, so
// VerifyShuffle rejects the result while VerifyCommitment accepts it. It is
// meant for tests that need known cards.
func StackDeck(scheme, tableID, handID string, order []poker.Card) (*CommittedDeck, error) {
	s, err := LookupScheme(scheme)
	if err != nil {
		return nil, err
	}
	if err := checkDeck(order); err != nil {
		return nil, err
	}
	seed := make([]byte, SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return newCommittedDeck(s, tableID, handID, seed, append([]poker.Card(nil), order...))
}

// Commitment returns the published commitment.
func (d *CommittedDeck) Commitment() Commitment {
	return d.commitment
}

// Reveal deals the card at position, which must be the next undealt one.
func (d *CommittedDeck) Reveal(position int) (CardOpening, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reveal(position)
}

func (d *CommittedDeck) reveal(position int) (CardOpening, error) {
	if d.closed {
		return CardOpening{}, ErrDeckClosed
	}
	if d.next >= len(d.order) {
		return CardOpening{}, ErrDeckExhausted
	}
	if position != d.next {
		return CardOpening{}, fmt.Errorf("%w: asked for %d, next is %d", ErrOutOfSequenceReveal, position, d.next)
	}
	d.next++
	return CardOpening{
		Position: position,
		Card:     d.order[position],
		Blinding: append([]byte(nil), d.blindings[position]...),
	}, nil
}

// Next deals the next card.
func (d *CommittedDeck) Next() (CardOpening, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reveal(d.next)
}

// Burn discards the next card. The opening is returned so it can be
// disclosed after the hand.
func (d *CommittedDeck) Burn() (CardOpening, error) {
	return d.Next()
}

// Position returns the index of the next card to be dealt.
func (d *CommittedDeck) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next
}

// Remaining returns how many cards have not been dealt.
func (d *CommittedDeck) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return len(d.order) - d.next
}

// Finalize closes the deck and releases the proof and the full order. The
// deck keeps no copy of the seed afterwards.
func (d *CommittedDeck) Finalize() (Proof, []poker.Card, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Proof{}, nil, ErrDeckClosed
	}
	proof := Proof{Scheme: d.scheme.Name(), Seed: append([]byte(nil), d.seed...)}
	order := append([]poker.Card(nil), d.order...)
	d.wipe()
	return proof, order, nil
}

// Wipe discards all secret material without producing a proof, for a voided
// hand.
func (d *CommittedDeck) Wipe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wipe()
}

func (d *CommittedDeck) wipe() {
	clear(d.seed)
	clear(d.order)
	for _, b := range d.blindings {
		clear(b)
	}
	d.seed, d.order, d.blindings = nil, nil, nil
	d.closed = true
}

// Dealer produces committed decks.
type Dealer struct {
	collector   *Collector
	scheme      Scheme
	signer      *Signer
	maxAttempts int
	logger      zerolog.Logger
}

// DealerOption configures a Dealer.
type DealerOption func(*Dealer)

// WithScheme selects the commitment scheme. The default is "hash".
func WithScheme(s Scheme) DealerOption {
	return func(d *Dealer) { d.scheme = s }
}

// WithSigner signs every commitment with the given dealer key.
func WithSigner(s *Signer) DealerOption {
	return func(d *Dealer) { d.signer = s }
}

// WithMaxAttempts bounds the number of seeds tried per deck.
func WithMaxAttempts(n int) DealerOption {
	return func(d *Dealer) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithLogger sets the dealer's logger.
func WithLogger(logger zerolog.Logger) DealerOption {
	return func(d *Dealer) { d.logger = logger }
}

// NewDealer creates a dealer drawing entropy from collector.
func NewDealer(collector *Collector, opts ...DealerOption) *Dealer {
	d := &Dealer{
		collector:   collector,
		scheme:      HashScheme{},
		maxAttempts: 3,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.collector == nil {
		d.collector = NewCollector()
	}
	return d
}

// Scheme returns the dealer's commitment scheme.
func (d *Dealer) Scheme() Scheme { return d.scheme }

// NewDeck collects a seed, derives and screens the order, and commits to it.
// Weak entropy is retried up to the attempt limit; any other failure returns
// at once.
func (d *Dealer) NewDeck(ctx context.Context, tableID, handID string) (*CommittedDeck, error) {
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		deck, err := d.tryDeck(ctx, tableID, handID)
		if err == nil {
			return deck, nil
		}
		if !errors.Is(err, ErrWeakEntropy) {
			return nil, err
		}
		lastErr = err
		d.logger.Warn().Err(err).
			Str("table_id", tableID).
			Str("hand_id", handID).
			Int("attempt", attempt).
			Msg("Deck rejected, retrying entropy collection")
	}
	return nil, lastErr
}

func (d *Dealer) tryDeck(ctx context.Context, tableID, handID string) (*CommittedDeck, error) {
	seed, err := d.collector.Seed(ctx, tableID, handID)
	if err != nil {
		return nil, err
	}
	order, err := Permute(seed)
	if err != nil {
		clear(seed)
		return nil, err
	}
	if err := screenOrder(order); err != nil {
		clear(seed)
		return nil, fmt.Errorf("%w: %v", ErrWeakEntropy, err)
	}
	deck, err := newCommittedDeck(d.scheme, tableID, handID, seed, order)
	if err != nil {
		clear(seed)
		return nil, err
	}
	if d.signer != nil {
		if err := d.signer.Sign(&deck.commitment); err != nil {
			deck.Wipe()
			return nil, err
		}
	}
	return deck, nil
}

func checkDeck(order []poker.Card) error {
	if len(order) != poker.DeckSize {
		return fmt.Errorf("deck has %d cards", len(order))
	}
	var seen poker.Hand
	for i, c := range order {
		if !c.Valid() || seen.Has(c) {
			return fmt.Errorf("position %d: invalid or duplicate card %s", i, c)
		}
		seen = seen.Add(c)
	}
	return nil
}
