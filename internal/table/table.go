// Package table manages a poker table across hands and runs each table as
// a single-writer actor.
package table

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/fairtable/internal/archive"
	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
)

// SeatState is one occupied seat.
type SeatState struct {
	PlayerID   string `json:"player_id"`
	Seat       int    `json:"seat"`
	Stack      int64  `json:"stack"`
	SittingOut bool   `json:"sitting_out,omitempty"`
	// Leaving is set when the player asked to leave during a hand they are
	// dealt into. They are removed when it settles.
	Leaving bool `json:"leaving,omitempty"`
}

// Settlement is what a finished hand leaves behind for persistence.
type Settlement struct {
	History *hand.History
	Deltas  []archive.StackDelta
}

// Table holds seating and the hand in progress. It is not safe for
// concurrent use; Actor serializes access.
type Table struct {
	cfg    Config
	deck   hand.DeckSource
	audit  hand.AuditFunc
	clock  quartz.Clock
	logger zerolog.Logger
	emit   func(hand.Event)

	seats      []*SeatState
	button     int
	handNumber uint64
	active     *hand.Hand
}

// New creates an empty table. audit may be nil for the default shuffle
// audit; emit may be nil.
func New(cfg Config, deck hand.DeckSource, audit hand.AuditFunc, clock quartz.Clock, logger zerolog.Logger, emit func(hand.Event)) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Table{
		cfg:    cfg,
		deck:   deck,
		audit:  audit,
		clock:  clock,
		logger: logger.With().Str("component", "table").Str("table_id", cfg.ID).Logger(),
		emit:   emit,
		seats:  make([]*SeatState, cfg.MaxSeats),
		button: -1,
	}, nil
}

// Config returns the table configuration.
func (t *Table) Config() Config { return t.cfg }

// Hand returns the hand in progress, or nil.
func (t *Table) Hand() *hand.Hand { return t.active }

func (t *Table) handLive() bool {
	return t.active != nil && !t.active.Phase().Done()
}

func (t *Table) find(playerID string) *SeatState {
	for _, s := range t.seats {
		if s != nil && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// dealtIn reports whether playerID holds cards in the live hand.
func (t *Table) dealtIn(playerID string) bool {
	if !t.handLive() {
		return false
	}
	_, ok := t.active.Snapshot().Player(playerID)
	return ok
}

// SeatPlayer seats a player with a buy-in the wallet has already debited.
// seat < 0 takes the lowest free seat.
func (t *Table) SeatPlayer(playerID string, buyIn int64, seat int) (int, error) {
	if playerID == "" {
		return -1, fmt.Errorf("%w: empty player id", ErrNotSeated)
	}
	if t.find(playerID) != nil {
		return -1, fmt.Errorf("%w: %s", ErrAlreadySeated, playerID)
	}
	if buyIn < t.cfg.BuyInMin || buyIn > t.cfg.BuyInMax {
		return -1, fmt.Errorf("%w: %d not in %d-%d", ErrBuyInOutOfRange, buyIn, t.cfg.BuyInMin, t.cfg.BuyInMax)
	}
	if err := t.checkTableChips(buyIn); err != nil {
		return -1, err
	}
	if seat < 0 {
		for i, s := range t.seats {
			if s == nil {
				seat = i
				break
			}
		}
		if seat < 0 {
			return -1, ErrTableFull
		}
	}
	if seat >= len(t.seats) {
		return -1, fmt.Errorf("%w: seat %d does not exist", ErrSeatTaken, seat)
	}
	if t.seats[seat] != nil {
		return -1, fmt.Errorf("%w: seat %d", ErrSeatTaken, seat)
	}
	t.seats[seat] = &SeatState{PlayerID: playerID, Seat: seat, Stack: buyIn}
	t.logger.Info().Str("player_id", playerID).Int("seat", seat).Int64("buy_in", buyIn).Msg("Player seated")
	return seat, nil
}

// RemovePlayer unseats a player and returns the stack to cash out. A player
// dealt into the live hand is folded when action reaches them and removed
// when the hand settles; deferred is true and the cash-out is reported in
// the settlement. If folding the player ends the hand, the hand settles
// here and the returned settlement carries the cash-out.
func (t *Table) RemovePlayer(playerID string) (cashOut int64, deferred bool, st *Settlement, err error) {
	s := t.find(playerID)
	if s == nil {
		return 0, false, nil, fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	if t.dealtIn(playerID) {
		s.Leaving = true
		st, err = t.afterHandCall(t.active.Leave(playerID))
		if st == nil {
			if err == nil {
				t.logger.Info().Str("player_id", playerID).Msg("Player leaving after this hand")
			}
			return 0, true, nil, err
		}
		for _, d := range st.Deltas {
			if d.PlayerID == playerID {
				cashOut = d.CashOut
			}
		}
		return cashOut, false, st, err
	}
	t.seats[s.Seat] = nil
	t.logger.Info().Str("player_id", playerID).Int64("cash_out", s.Stack).Msg("Player removed")
	return s.Stack, false, nil, nil
}

// TopUp adds chips to a seated player between hands, within the buy-in
// maximum. A player sitting out for lack of chips is dealt in again.
func (t *Table) TopUp(playerID string, amount int64) error {
	s := t.find(playerID)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	if t.dealtIn(playerID) {
		return fmt.Errorf("%w: cannot add chips during a hand", ErrHandInProgress)
	}
	stack, err := betting.AddChips(s.Stack, amount)
	if err != nil {
		return err
	}
	if amount <= 0 || stack > t.cfg.BuyInMax || stack < t.cfg.BuyInMin {
		return fmt.Errorf("%w: stack would be %d, allowed %d-%d", ErrBuyInOutOfRange, stack, t.cfg.BuyInMin, t.cfg.BuyInMax)
	}
	if err := t.checkTableChips(amount); err != nil {
		return err
	}
	if s.Stack == 0 {
		s.SittingOut = false
	}
	s.Stack = stack
	return nil
}

// checkTableChips fails with betting.ErrChipOverflow when extra chips on
// top of every seated stack could not be summed into one pot.
func (t *Table) checkTableChips(extra int64) error {
	amounts := []int64{extra}
	for _, s := range t.seats {
		if s != nil {
			amounts = append(amounts, s.Stack)
		}
	}
	if _, err := betting.SumChips(amounts...); err != nil {
		return fmt.Errorf("table chips: %w", err)
	}
	return nil
}

// SitOut excludes a player from the next hands until SitIn.
func (t *Table) SitOut(playerID string) error {
	s := t.find(playerID)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	s.SittingOut = true
	return nil
}

// SitIn deals a player in again from the next hand.
func (t *Table) SitIn(playerID string) error {
	s := t.find(playerID)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotSeated, playerID)
	}
	if s.Stack == 0 {
		return fmt.Errorf("%w: no chips, top up first", ErrBuyInOutOfRange)
	}
	s.SittingOut = false
	return nil
}

// ready lists the seats that will be dealt in, marking broke players as
// sitting out.
func (t *Table) ready() []*SeatState {
	var out []*SeatState
	for _, s := range t.seats {
		if s == nil {
			continue
		}
		if s.Stack == 0 {
			s.SittingOut = true
		}
		if !s.SittingOut && !s.Leaving {
			out = append(out, s)
		}
	}
	return out
}

// CanStart reports whether StartNextHand would deal.
func (t *Table) CanStart() bool {
	if t.handLive() {
		return false
	}
	n := 0
	for _, s := range t.seats {
		if s != nil && !s.SittingOut && !s.Leaving && s.Stack > 0 {
			n++
		}
	}
	return n >= 2
}

// StartNextHand moves the button to the next ready seat clockwise and deals
// a hand. With fewer than two ready players the table stays idle. A hand
// voided while dealing still counts, and its settlement is returned along
// with the error.
func (t *Table) StartNextHand(ctx context.Context) (*Settlement, error) {
	if t.handLive() {
		return nil, ErrHandInProgress
	}
	players := t.ready()
	if len(players) < 2 {
		return nil, fmt.Errorf("%w: %d ready, need 2", ErrInsufficientPlayers, len(players))
	}
	t.button = t.nextButton(players)
	t.handNumber++

	seats := make([]hand.Seat, len(players))
	for i, s := range players {
		seats[i] = hand.Seat{PlayerID: s.PlayerID, Seat: s.Seat, Stack: s.Stack}
	}
	h, err := hand.New(hand.Config{
		TableID:    t.cfg.ID,
		HandID:     newHandID(),
		HandNumber: t.handNumber,
		SmallBlind: t.cfg.SmallBlind,
		BigBlind:   t.cfg.BigBlind,
		Ante:       t.cfg.Ante,
		Button:     t.button,
		Seats:      seats,
		Deck:       t.deck,
		Audit:      t.audit,
		Emit:       t.emit,
		Clock:      t.clock,
		Logger:     t.logger,
	})
	if err != nil {
		return nil, err
	}
	t.active = h
	err = h.Start(ctx)
	return t.afterHandCall(err)
}

func (t *Table) nextButton(ready []*SeatState) int {
	for _, s := range ready {
		if s.Seat > t.button {
			return s.Seat
		}
	}
	return ready[0].Seat
}

func newHandID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Act applies a player action to the live hand.
func (t *Table) Act(playerID string, a betting.Action) (*Settlement, error) {
	if !t.handLive() {
		return nil, hand.ErrNoBettingRound
	}
	seat, id, ok := t.active.ToAct()
	if !ok || id != playerID {
		return nil, &betting.ActionError{Seat: seat, Action: a, Reason: playerID + " is not to act", Err: betting.ErrNotYourTurn}
	}
	return t.afterHandCall(t.active.Act(seat, a))
}

// Timeout acts for the player whose time bank ran out.
func (t *Table) Timeout() (*Settlement, error) {
	if !t.handLive() {
		return nil, hand.ErrNoBettingRound
	}
	seat, _, ok := t.active.ToAct()
	if !ok {
		return nil, hand.ErrNoBettingRound
	}
	return t.afterHandCall(t.active.Timeout(seat))
}

// afterHandCall settles the table once the hand is over. Validation errors
// leave everything as it was; a voided hand still produces a settlement
// with the refunded stacks.
func (t *Table) afterHandCall(err error) (*Settlement, error) {
	if t.active == nil || !t.active.Phase().Done() {
		return nil, err
	}
	return t.settle(), err
}

// settle copies the final stacks back to the seats and removes players who
// asked to leave.
func (t *Table) settle() *Settlement {
	hist := t.active.History()
	st := &Settlement{History: hist}
	deltas := hist.Deltas()
	for _, hp := range hist.Players {
		s := t.find(hp.ID)
		if s == nil {
			continue
		}
		s.Stack = hp.EndingStack
		d := archive.StackDelta{PlayerID: hp.ID, Delta: deltas[hp.ID], Stack: s.Stack}
		if s.Leaving {
			d.CashOut = s.Stack
			t.seats[s.Seat] = nil
			t.logger.Info().Str("player_id", s.PlayerID).Int64("cash_out", s.Stack).Msg("Player removed after hand")
		} else if s.Stack == 0 {
			s.SittingOut = true
		}
		st.Deltas = append(st.Deltas, d)
	}
	return st
}

// Seats returns copies of the occupied seats.
func (t *Table) Seats() []SeatState {
	var out []SeatState
	for _, s := range t.seats {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Button returns the button seat, -1 before the first hand.
func (t *Table) Button() int { return t.button }

// HandNumber counts hands dealt at this table.
func (t *Table) HandNumber() uint64 { return t.handNumber }
