package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
)

func openTempStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteHandRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	h := playHand(t, "t1", "h1",
		betting.Action{Kind: betting.Call}, betting.Action{Kind: betting.Check},
		betting.Action{Kind: betting.Check}, betting.Action{Kind: betting.Check},
		betting.Action{Kind: betting.Check}, betting.Action{Kind: betting.Check},
		betting.Action{Kind: betting.Check}, betting.Action{Kind: betting.Check},
	)
	require.NoError(t, s.SaveHand(ctx, h))

	got, err := s.LoadHand(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, h.Players, got.Players)
	assert.Equal(t, h.Actions, got.Actions)
	assert.Equal(t, h.Board, got.Board)
	assert.Equal(t, h.Awards, got.Awards)
	assert.Equal(t, h.Deck, got.Deck)
	require.NoError(t, got.Audit())
	require.NoError(t, hand.VerifyReplay(ctx, *got))

	assert.Error(t, s.SaveHand(ctx, h), "hands are immutable")

	_, err = s.LoadHand(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteListsHandsInOrder(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	for i, id := range []string{"b", "a", "c"} {
		h := foldedHand(t, "t1", id)
		h.HandNumber = uint64(i + 1)
		require.NoError(t, s.SaveHand(ctx, h))
	}
	require.NoError(t, s.SaveHand(ctx, foldedHand(t, "t2", "other")))

	ids, err := s.HandIDs(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestSQLiteStackDeltas(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveStackDeltas(ctx, "t1", "h1", []StackDelta{
		{PlayerID: "alice", Delta: -1, Stack: 99},
		{PlayerID: "bob", Delta: 1, Stack: 101},
	}))
	require.NoError(t, s.SaveStackDeltas(ctx, "t1", "h2", []StackDelta{
		{PlayerID: "alice", Delta: 10, Stack: 109},
		{PlayerID: "bob", Delta: -10, Stack: 91, CashOut: 91},
	}))

	net, err := s.PlayerNet(ctx, "t1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(9), net)

	net, err = s.PlayerNet(ctx, "t1", "nobody")
	require.NoError(t, err)
	assert.Zero(t, net)
}

func TestSQLiteIncidents(t *testing.T) {
	t.Parallel()

	s := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.ReportIncident(ctx, Incident{TableID: "t1", HandID: "h1", Severity: "fairness", Error: "weak entropy", At: at}))
	require.NoError(t, s.ReportIncident(ctx, Incident{TableID: "t1", Severity: "assertion", Error: "chips appeared", At: at.Add(time.Minute)}))

	got, err := s.Incidents(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "weak entropy", got[0].Error)
	assert.Equal(t, at, got[0].At)
	assert.Empty(t, got[1].HandID)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := OpenSQLite(" ")
	assert.Error(t, err)
}
