package betting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPots(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		players []*Player
		want    []Pot
	}{
		{
			name: "no all-in is one pot",
			players: []*Player{
				{ID: "a", Contribution: 100},
				{ID: "b", Contribution: 100},
				{ID: "c", Contribution: 40, Status: Folded},
			},
			want: []Pot{{Amount: 240, Eligible: []string{"a", "b"}, Cap: 100}},
		},
		{
			name: "all-in matched by everyone merges",
			players: []*Player{
				{ID: "a", Contribution: 30, Status: AllIn},
				{ID: "b", Contribution: 30},
				{ID: "c", Contribution: 30},
			},
			want: []Pot{{Amount: 90, Eligible: []string{"a", "b", "c"}, Cap: 30}},
		},
		{
			name: "two all-ins make three pots",
			players: []*Player{
				{ID: "a", Contribution: 20, Status: AllIn},
				{ID: "b", Contribution: 50, Status: AllIn},
				{ID: "c", Contribution: 80},
				{ID: "d", Contribution: 80},
			},
			want: []Pot{
				{Amount: 80, Eligible: []string{"a", "b", "c", "d"}, Cap: 20},
				{Amount: 90, Eligible: []string{"b", "c", "d"}, Cap: 50},
				{Amount: 60, Eligible: []string{"c", "d"}, Cap: 80},
			},
		},
		{
			name: "folded excess rolls down",
			players: []*Player{
				{ID: "a", Contribution: 50, Status: AllIn},
				{ID: "b", Contribution: 30, Status: AllIn},
				{ID: "c", Contribution: 100, Status: Folded},
			},
			want: []Pot{
				{Amount: 90, Eligible: []string{"a", "b"}, Cap: 30},
				{Amount: 90, Eligible: []string{"a"}, Cap: 50},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := BuildPots(tt.players)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assertPotsBalance(t, tt.players)
		})
	}

	empty, err := BuildPots([]*Player{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestBuildPotsOverflowFails(t *testing.T) {
	t.Parallel()

	players := newPlayers(5e18, 5e18)
	for _, p := range players {
		_, err := p.Commit(p.Stack)
		require.NoError(t, err)
	}

	pots, err := BuildPots(players)
	assert.ErrorIs(t, err, ErrChipOverflow)
	assert.Nil(t, pots)
	_, err = TotalContribution(players)
	assert.ErrorIs(t, err, ErrChipOverflow)
	_, err = TotalPot([]Pot{{Amount: math.MaxInt64}, {Amount: 1}})
	assert.ErrorIs(t, err, ErrChipOverflow)
}

func TestAddChipsOverflow(t *testing.T) {
	t.Parallel()

	v, err := AddChips(40, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = AddChips(math.MaxInt64, 1)
	assert.ErrorIs(t, err, ErrChipOverflow)
	_, err = AddChips(-1, 1)
	assert.ErrorIs(t, err, ErrChipOverflow)

	_, err = SumChips(math.MaxInt64/2, math.MaxInt64/2, 2)
	assert.ErrorIs(t, err, ErrChipOverflow)
}

func TestCommitOverflowLeavesPlayerUntouched(t *testing.T) {
	t.Parallel()

	p := &Player{ID: "a", Stack: 10, Bet: math.MaxInt64 - 5, Contribution: math.MaxInt64 - 5}
	before := *p
	_, err := p.Commit(10)
	require.ErrorIs(t, err, ErrChipOverflow)
	assert.Equal(t, before, *p)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"fold", "check", "call", "bet", "raise", "allin", "all-in"} {
		_, err := ParseKind(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseKind("muck")
	assert.ErrorIs(t, err, ErrIllegalAction)
}
