package hand

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// Forced bet labels used in ActionRecord.Forced.
const (
	ForcedAnte       = "ante"
	ForcedSmallBlind = "small_blind"
	ForcedBigBlind   = "big_blind"
)

// Reasons an action was taken on a player's behalf.
const (
	ReasonTimeout = "timeout"
	ReasonLeft    = "left"
)

// ActionRecord is one entry in a hand's action log.
type ActionRecord struct {
	Seq      int            `json:"seq" toml:"seq"`
	Street   betting.Street `json:"street" toml:"street"`
	Seat     int            `json:"seat" toml:"seat"`
	PlayerID string         `json:"player_id" toml:"player_id"`
	Action   betting.Action `json:"action" toml:"action"`
	Paid     int64          `json:"paid" toml:"paid"`
	// Forced names the forced bet for antes and blinds.
	Forced string `json:"forced,omitempty" toml:"forced,omitempty"`
	// Reason is set when the engine acted for the player.
	Reason string `json:"reason,omitempty" toml:"reason,omitempty"`
}

// Award is the share of one pot paid to one player.
type Award struct {
	Pot      int            `json:"pot" toml:"pot"`
	PlayerID string         `json:"player_id" toml:"player_id"`
	Amount   int64          `json:"amount" toml:"amount"`
	Rank     poker.HandRank `json:"rank,omitempty" toml:"rank,omitempty"`
}

// HistoryPlayer is one player's record in a finished hand.
type HistoryPlayer struct {
	ID            string       `json:"id"`
	Seat          int          `json:"seat"`
	StartingStack int64        `json:"starting_stack"`
	EndingStack   int64        `json:"ending_stack"`
	HoleCards     []poker.Card `json:"hole_cards,omitempty"`
	Shown         bool         `json:"shown,omitempty"`
	Folded        bool         `json:"folded,omitempty"`
}

// History is the immutable record of a settled or voided hand.
type History struct {
	TableID    string    `json:"table_id"`
	HandID     string    `json:"hand_id"`
	HandNumber uint64    `json:"hand_number"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`

	SmallBlind int64 `json:"small_blind"`
	BigBlind   int64 `json:"big_blind"`
	Ante       int64 `json:"ante"`
	Button     int   `json:"button"`

	Players []HistoryPlayer `json:"players"`
	Actions []ActionRecord  `json:"actions"`
	Board   []poker.Card    `json:"board"`
	Pots    []betting.Pot   `json:"pots"`
	Awards  []Award         `json:"awards"`

	Commitment shuffle.Commitment `json:"commitment"`
	Proof      shuffle.Proof      `json:"proof"`
	// Deck is the full revealed order; Dealt counts the positions used.
	Deck  []poker.Card `json:"deck,omitempty"`
	Dealt int          `json:"dealt"`

	Voided     bool   `json:"voided,omitempty"`
	VoidReason string `json:"void_reason,omitempty"`
}

// Deltas returns each player's net result for the hand.
func (h *History) Deltas() map[string]int64 {
	out := make(map[string]int64, len(h.Players))
	for _, p := range h.Players {
		out[p.ID] = p.EndingStack - p.StartingStack
	}
	return out
}

// Payouts sums the awards per player.
func (h *History) Payouts() map[string]int64 {
	out := make(map[string]int64)
	for _, a := range h.Awards {
		out[a.PlayerID] += a.Amount
	}
	return out
}

// Audit checks the shuffle proof recorded in h against its commitment.
func (h *History) Audit() error {
	if h.Voided {
		return nil
	}
	return shuffle.VerifyShuffle(h.Commitment, h.Deck, h.Proof)
}

// ErrNotReplayable is returned for histories that cannot be replayed.
var ErrNotReplayable = errors.New("hand: history cannot be replayed")

// Replay deals the recorded deck again, applies every recorded player
// action through the engine and returns the resulting history. For an
// intact history the awards and ending stacks are identical to the
// original's.
func Replay(ctx context.Context, h History) (*History, error) {
	if h.Voided {
		return nil, fmt.Errorf("%w: hand was voided", ErrNotReplayable)
	}
	if len(h.Deck) != poker.DeckSize {
		return nil, fmt.Errorf("%w: deck has %d cards", ErrNotReplayable, len(h.Deck))
	}
	seats := make([]Seat, len(h.Players))
	for i, p := range h.Players {
		seats[i] = Seat{PlayerID: p.ID, Seat: p.Seat, Stack: p.StartingStack}
	}
	cfg := Config{
		TableID:    h.TableID,
		HandID:     h.HandID,
		HandNumber: h.HandNumber,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		Ante:       h.Ante,
		Button:     h.Button,
		Seats:      seats,
		Deck:       &StackedDecks{Orders: [][]poker.Card{h.Deck}},
		Audit:      func(shuffle.Commitment, []poker.Card, shuffle.Proof) error { return nil },
	}
	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	for _, rec := range h.Actions {
		if rec.Forced != "" {
			continue
		}
		if r.Phase().Done() {
			return nil, fmt.Errorf("%w: action %d after the hand ended", ErrNotReplayable, rec.Seq)
		}
		if err := r.Act(rec.Seat, rec.Action); err != nil {
			return nil, fmt.Errorf("replay action %d: %w", rec.Seq, err)
		}
	}
	out := r.History()
	if out == nil {
		return nil, fmt.Errorf("%w: hand did not finish", ErrNotReplayable)
	}
	return out, nil
}

// VerifyReplay replays h and compares awards and ending stacks.
func VerifyReplay(ctx context.Context, h History) error {
	got, err := Replay(ctx, h)
	if err != nil {
		return err
	}
	if len(got.Awards) != len(h.Awards) {
		return fmt.Errorf("replay produced %d awards, history has %d", len(got.Awards), len(h.Awards))
	}
	for i := range got.Awards {
		if got.Awards[i] != h.Awards[i] {
			return fmt.Errorf("award %d: replay %+v, history %+v", i, got.Awards[i], h.Awards[i])
		}
	}
	for i, p := range got.Players {
		if p.EndingStack != h.Players[i].EndingStack {
			return fmt.Errorf("player %s: replay ends with %d, history %d", p.ID, p.EndingStack, h.Players[i].EndingStack)
		}
	}
	return nil
}
