package archive

import (
	"context"
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/shuffle"
)

// playHand deals a heads-up hand at tableID and applies actions in turn.
func playHand(t *testing.T, tableID, handID string, actions ...betting.Action) *hand.History {
	t.Helper()
	h, err := hand.New(hand.Config{
		TableID:    tableID,
		HandID:     handID,
		HandNumber: 1,
		SmallBlind: 1,
		BigBlind:   2,
		Seats: []hand.Seat{
			{PlayerID: "alice", Seat: 0, Stack: 100},
			{PlayerID: "bob", Seat: 1, Stack: 100},
		},
		Deck:  shuffle.NewDealer(shuffle.NewCollector()),
		Clock: quartz.NewMock(t),
	})
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	for _, a := range actions {
		seat, _, ok := h.ToAct()
		require.True(t, ok)
		require.NoError(t, h.Act(seat, a))
	}
	require.True(t, h.Phase().Done())
	return h.History()
}

func foldedHand(t *testing.T, tableID, handID string) *hand.History {
	return playHand(t, tableID, handID, betting.Action{Kind: betting.Fold})
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	b, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	m := Multi{a, b, Nop{}}
	defer m.Close()

	ctx := context.Background()
	h := foldedHand(t, "t1", "h1")
	require.NoError(t, m.SaveHand(ctx, h))
	for _, s := range []*SQLite{a, b} {
		got, err := s.LoadHand(ctx, "h1")
		require.NoError(t, err)
		require.Equal(t, h.HandID, got.HandID)
	}

	// The duplicate fails in both stores and both errors are reported.
	err = m.SaveHand(ctx, h)
	require.Error(t, err)
}
