package betting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/internal/randutil"
)

func newPlayers(stacks ...int64) []*Player {
	ids := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi", "ivan"}
	players := make([]*Player, len(stacks))
	for i, s := range stacks {
		players[i] = &Player{ID: ids[i], Seat: i, Stack: s}
	}
	return players
}

func mustApply(t *testing.T, r *Round, seat int, a Action) Result {
	t.Helper()
	res, err := r.ApplyAction(seat, a)
	require.NoError(t, err, "seat %d %s", seat, a)
	return res
}

// assertPotsBalance checks that the pots built from players hold exactly
// what they contributed.
func assertPotsBalance(t *testing.T, players []*Player) {
	t.Helper()
	pots, err := BuildPots(players)
	require.NoError(t, err)
	contributed, err := TotalContribution(players)
	require.NoError(t, err)
	inPots, err := TotalPot(pots)
	require.NoError(t, err)
	assert.Equal(t, contributed, inPots)
}

func snapshot(players []*Player) []Player {
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = *p
	}
	return out
}

func TestSidePotFromPreflopAllIn(t *testing.T) {
	t.Parallel()

	// alice has the button with 30 behind; bob and carol post 1/2.
	players := newPlayers(30, 100, 100)
	_, err := players[1].Commit(1)
	require.NoError(t, err)
	_, err = players[2].Commit(2)
	require.NoError(t, err)

	r := NewRound(Preflop, players, 0, 2)
	seat, ok := r.ToAct()
	require.True(t, ok)
	assert.Equal(t, 0, seat)

	res := mustApply(t, r, 0, Action{Kind: AllInKind})
	assert.Equal(t, int64(30), res.Action.Amount)
	assert.Equal(t, AllIn, players[0].Status)
	mustApply(t, r, 1, Action{Kind: Call})
	res = mustApply(t, r, 2, Action{Kind: Call})
	assert.True(t, res.Complete)

	p, amount := ReturnUncalled(players)
	assert.Nil(t, p)
	assert.Zero(t, amount)
	ClearBets(players)

	r = NewRound(Flop, players, 1, 2)
	mustApply(t, r, 1, Action{Kind: Bet, Amount: 20})
	res = mustApply(t, r, 2, Action{Kind: Call})
	assert.True(t, res.Complete)

	pots, err := BuildPots(players)
	require.NoError(t, err)
	require.Len(t, pots, 2)
	assert.Equal(t, int64(90), pots[0].Amount)
	assert.Equal(t, []string{"alice", "bob", "carol"}, pots[0].Eligible)
	assert.Equal(t, int64(40), pots[1].Amount)
	assert.Equal(t, []string{"bob", "carol"}, pots[1].Eligible)
	assertPotsBalance(t, players)
}

func TestShortAllInBelowCallDoesNotReopen(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 5, 100)
	r := NewRound(Flop, players, 0, 2)

	mustApply(t, r, 0, Action{Kind: Bet, Amount: 10})
	res := mustApply(t, r, 1, Action{Kind: AllInKind})
	assert.Equal(t, int64(5), res.Action.Amount)
	assert.Equal(t, int64(10), r.CurrentBet, "short all-in leaves the bet unchanged")

	res = mustApply(t, r, 2, Action{Kind: Call})
	assert.True(t, res.Complete, "bettor already acted and faces nothing larger")
	_, ok := r.ToAct()
	assert.False(t, ok)
}

func TestShortAllInRaiseClosesActedPlayers(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 14, 100)
	r := NewRound(Flop, players, 0, 2)

	mustApply(t, r, 0, Action{Kind: Bet, Amount: 10})
	mustApply(t, r, 1, Action{Kind: AllInKind})
	assert.Equal(t, int64(14), r.CurrentBet)
	assert.Equal(t, int64(10), r.MinRaise, "short raise keeps the previous increment")

	// carol had not acted, so she may still raise.
	legal := r.LegalActions(2)
	assert.Contains(t, legal, LegalAction{Kind: Raise, Min: 24, Max: 100})
	mustApply(t, r, 2, Action{Kind: Call})

	legal = r.LegalActions(0)
	assert.Equal(t, []LegalAction{{Kind: Fold}, {Kind: Call, Min: 4, Max: 4}}, legal)

	before := snapshot(players)
	_, err := r.ApplyAction(0, Action{Kind: Raise, Amount: 40})
	require.ErrorIs(t, err, ErrIllegalAction)
	assert.Equal(t, before, snapshot(players))

	res := mustApply(t, r, 0, Action{Kind: Call})
	assert.True(t, res.Complete)
}

func TestFullRaiseReopensAction(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 100, 100)
	r := NewRound(Flop, players, 0, 2)

	mustApply(t, r, 0, Action{Kind: Bet, Amount: 10})
	mustApply(t, r, 1, Action{Kind: Call})

	_, err := r.ApplyAction(2, Action{Kind: Raise, Amount: 15})
	require.ErrorIs(t, err, ErrIllegalAction)
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 2, ae.Seat)

	mustApply(t, r, 2, Action{Kind: Raise, Amount: 20})
	assert.Equal(t, int64(10), r.MinRaise)
	assert.Equal(t, 2, r.LastAggressor)

	legal := r.LegalActions(0)
	assert.Contains(t, legal, LegalAction{Kind: Raise, Min: 30, Max: 100})
}

func TestActionValidation(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 100)
	_, _ = players[0].Commit(1)
	_, _ = players[1].Commit(2)
	r := NewRound(Preflop, players, 0, 2)

	tests := []struct {
		name   string
		seat   int
		action Action
		err    error
	}{
		{"out of turn", 1, Action{Kind: Check}, ErrNotYourTurn},
		{"check facing bet", 0, Action{Kind: Check}, ErrIllegalAction},
		{"bet facing bet", 0, Action{Kind: Bet, Amount: 10}, ErrIllegalAction},
		{"raise too small", 0, Action{Kind: Raise, Amount: 3}, ErrIllegalAction},
		{"raise over stack", 0, Action{Kind: Raise, Amount: 500}, ErrIllegalAction},
		{"unknown", 0, Action{Kind: Kind(42)}, ErrIllegalAction},
	}
	for _, tt := range tests {
		before := snapshot(players)
		_, err := r.ApplyAction(tt.seat, tt.action)
		assert.ErrorIs(t, err, tt.err, tt.name)
		assert.Equal(t, before, snapshot(players), tt.name)
	}
}

func TestBigBlindOption(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 100)
	_, _ = players[0].Commit(1)
	_, _ = players[1].Commit(2)
	r := NewRound(Preflop, players, 0, 2)

	res := mustApply(t, r, 0, Action{Kind: Call})
	assert.False(t, res.Complete, "big blind still has the option")
	seat, _ := r.ToAct()
	assert.Equal(t, 1, seat)
	assert.Equal(t, Action{Kind: Check}, r.DefaultAction(1))

	res = mustApply(t, r, 1, Action{Kind: Check})
	assert.True(t, res.Complete)
}

func TestCallForWholeStackIsAllIn(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 30)
	r := NewRound(Turn, players, 0, 2)
	mustApply(t, r, 0, Action{Kind: Bet, Amount: 50})
	res := mustApply(t, r, 1, Action{Kind: Call})
	assert.Equal(t, AllInKind, res.Action.Kind)
	assert.Equal(t, int64(30), res.Paid)
	assert.True(t, res.Complete)

	p, amount := ReturnUncalled(players)
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, int64(20), amount)
	assert.Equal(t, int64(70), players[0].Stack)
	assert.Equal(t, int64(30), players[0].Contribution)
}

func TestFoldToLastPlayer(t *testing.T) {
	t.Parallel()

	players := newPlayers(100, 100, 100)
	r := NewRound(River, players, 0, 2)
	mustApply(t, r, 0, Action{Kind: Bet, Amount: 40})
	mustApply(t, r, 1, Action{Kind: Fold})
	res := mustApply(t, r, 2, Action{Kind: Fold})
	assert.True(t, res.Complete)
	assert.True(t, res.Uncontested)

	p, amount := ReturnUncalled(players)
	require.NotNil(t, p)
	assert.Equal(t, int64(40), amount)
	assert.Equal(t, int64(100), players[0].Stack)

	_, err := r.ApplyAction(0, Action{Kind: Check})
	assert.ErrorIs(t, err, ErrRoundComplete)
}

func TestPotsMatchContributionsAfterEveryAction(t *testing.T) {
	t.Parallel()

	rng := randutil.New(99)
	for game := 0; game < 300; game++ {
		n := 2 + rng.IntN(5)
		stacks := make([]int64, n)
		for i := range stacks {
			stacks[i] = int64(5 + rng.IntN(200))
		}
		players := newPlayers(stacks...)
		totals := make([]int64, n)
		for i, p := range players {
			totals[i] = p.Stack
		}

		for street := Preflop; street <= River; street++ {
			r := NewRound(street, players, rng.IntN(n), 2)
			for !r.Complete() {
				seat, ok := r.ToAct()
				require.True(t, ok)
				legal := r.LegalActions(seat)
				require.NotEmpty(t, legal)
				choice := legal[rng.IntN(len(legal))]
				a := Action{Kind: choice.Kind}
				if choice.Kind == Bet || choice.Kind == Raise {
					a.Amount = choice.Min + rng.Int64N(choice.Max-choice.Min+1)
				}
				_, err := r.ApplyAction(seat, a)
				require.NoError(t, err, "legal action %v rejected", a)

				assertPotsBalance(t, players)
				for i, p := range players {
					require.GreaterOrEqual(t, p.Stack, int64(0))
					require.Equal(t, totals[i], p.Stack+p.Contribution)
				}
			}
			ReturnUncalled(players)
			ClearBets(players)
			assertPotsBalance(t, players)
		}
	}
}
