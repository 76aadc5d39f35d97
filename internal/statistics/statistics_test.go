package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
)

func history(bb int64, shown bool, pot int64, stacks ...[3]any) *hand.History {
	h := &hand.History{BigBlind: bb, Pots: []betting.Pot{{Amount: pot}}}
	for i, s := range stacks {
		h.Players = append(h.Players, hand.HistoryPlayer{
			ID:            s[0].(string),
			Seat:          i,
			StartingStack: int64(s[1].(int)),
			EndingStack:   int64(s[2].(int)),
			Shown:         shown,
		})
	}
	return h
}

func TestPlayerEmpty(t *testing.T) {
	t.Parallel()
	var p Player
	assert.Zero(t, p.Mean())
	assert.Zero(t, p.Variance())
	assert.Zero(t, p.StdError())
	assert.Zero(t, p.Median())
}

func TestPlayerMoments(t *testing.T) {
	t.Parallel()
	var p Player
	for _, v := range []float64{1, 2, 3, 4} {
		p.add(v, false)
	}
	assert.InDelta(t, 2.5, p.Mean(), 1e-9)
	assert.InDelta(t, 5.0/3.0, p.Variance(), 1e-9)
	assert.InDelta(t, 2.5, p.Median(), 1e-9)
	lo, hi := p.ConfidenceInterval95()
	assert.Less(t, lo, p.Mean())
	assert.Greater(t, hi, p.Mean())
	assert.Equal(t, 4, p.NonShowdownWins)
}

func TestSessionAdd(t *testing.T) {
	t.Parallel()
	s := NewSession()

	s.Add(history(2, false, 3,
		[3]any{"alice", 100, 101},
		[3]any{"bob", 100, 99},
	))
	s.Add(history(2, true, 40,
		[3]any{"alice", 101, 81},
		[3]any{"bob", 99, 119},
	))

	assert.Equal(t, 2, s.Hands)
	assert.Equal(t, 1, s.Showdowns)
	assert.Equal(t, int64(40), s.MaxPotChips)
	assert.InDelta(t, 20.0, s.MaxPotBB, 1e-9)
	require.NoError(t, s.Validate())

	alice := s.Player("alice")
	require.NotNil(t, alice)
	assert.Equal(t, 2, alice.Hands)
	assert.InDelta(t, -9.5, alice.SumBB, 1e-9)
	assert.InDelta(t, -10.0, alice.ShowdownBB, 1e-9)
	assert.Equal(t, 1, alice.NonShowdownWins)

	bob := s.Player("bob")
	assert.Equal(t, 1, bob.ShowdownWins)

	players := s.Players()
	require.Len(t, players, 2)
	assert.Equal(t, "alice", players[0].ID)
	assert.Nil(t, s.Player("carol"))
}

func TestSessionDetectsLedgerDrift(t *testing.T) {
	t.Parallel()
	s := NewSession()
	s.Add(history(2, false, 2,
		[3]any{"alice", 100, 102},
		[3]any{"bob", 100, 99},
	))
	assert.ErrorContains(t, s.Validate(), "off by 1")
}

func TestSessionCountsVoids(t *testing.T) {
	t.Parallel()
	s := NewSession()
	h := history(2, false, 0,
		[3]any{"alice", 100, 100},
		[3]any{"bob", 100, 100},
	)
	h.Voided = true
	s.Add(h)
	assert.Equal(t, 1, s.Voided)
	require.NoError(t, s.Validate())
}
