package shuffle

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/lox/fairtable/poker"
)

// minSourceBytes is the least a source may contribute to a seed.
const minSourceBytes = 32

// maxPeriod is the longest repeating pattern screenBytes looks for.
const maxPeriod = 16

// monobitSigmas bounds how far the count of set bits may stray from half.
const monobitSigmas = 6.0

// screenBytes rejects entropy that is obviously broken: too short, constant,
// periodic, or heavily biased towards zeros or ones. Passing says nothing
// about unpredictability; it only catches failed or stubbed sources.
func screenBytes(b []byte) error {
	if len(b) < minSourceBytes {
		return fmt.Errorf("%d bytes, need %d", len(b), minSourceBytes)
	}
	for p := 1; p <= maxPeriod && p < len(b)/2; p++ {
		if periodic(b, p) {
			return fmt.Errorf("repeats with period %d", p)
		}
	}
	ones := 0
	for _, v := range b {
		ones += bits.OnesCount8(v)
	}
	n := float64(len(b) * 8)
	if dev := math.Abs(float64(ones) - n/2); dev > monobitSigmas*math.Sqrt(n)/2 {
		return fmt.Errorf("monobit bias: %d of %.0f bits set", ones, n)
	}
	return nil
}

func periodic(b []byte, p int) bool {
	for i := p; i < len(b); i++ {
		if b[i] != b[i-p] {
			return false
		}
	}
	return true
}

// maxFactoryRun is the longest run of cards still in factory order that a
// shuffled deck may contain. Six in a row happens by chance roughly once in
// ten million decks.
const maxFactoryRun = 6

// screenOrder checks a full deck order: 52 valid unique cards, no long run in
// factory order, and not the output of a known weak seed.
func screenOrder(order []poker.Card) error {
	if len(order) != poker.DeckSize {
		return fmt.Errorf("deck has %d cards", len(order))
	}
	var seen poker.Hand
	for i, c := range order {
		if !c.Valid() {
			return fmt.Errorf("position %d holds invalid card %d", i, uint8(c))
		}
		if seen.Has(c) {
			return fmt.Errorf("duplicate %s at position %d", c, i)
		}
		seen = seen.Add(c)
	}
	run := 1
	for i := 1; i < len(order); i++ {
		if order[i] == order[i-1]+1 {
			run++
			if run >= maxFactoryRun {
				return fmt.Errorf("%d cards in factory order ending at position %d", run, i)
			}
			continue
		}
		run = 1
	}
	for _, weak := range weakOrders {
		if equalOrder(order, weak) {
			return fmt.Errorf("order matches a known weak seed")
		}
	}
	return nil
}

func equalOrder(a, b []poker.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// weakOrders are the decks produced by degenerate seeds.
var weakOrders = func() [][]poker.Card {
	var out [][]poker.Card
	for _, fill := range []byte{0x00, 0xFF} {
		seed := make([]byte, SeedSize)
		for i := range seed {
			seed[i] = fill
		}
		order, err := Permute(seed)
		if err != nil {
			panic(err)
		}
		out = append(out, order)
	}
	return out
}()
