// Package hand runs one hand of no-limit hold'em from the forced bets to
// settlement: dealing from a committed deck, driving the betting rounds,
// awarding pots at showdown and producing the audit history.
package hand

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// Hand is the state machine for a single hand. It is not safe for
// concurrent use; the table actor serializes every call.
type Hand struct {
	cfg    Config
	logger zerolog.Logger

	phase   Phase
	players []*betting.Player
	start   map[string]int64
	leaving map[string]bool
	shown   map[string]bool

	buttonIdx, sbIdx, bbIdx int

	deck       *shuffle.CommittedDeck
	commitment shuffle.Commitment
	holes      map[string][]shuffle.CardOpening
	board      []poker.Card
	openings   []shuffle.CardOpening

	round   *betting.Round
	actions []ActionRecord
	pots    []betting.Pot
	awards  []Award

	startedAt time.Time
	history   *History
}

// New validates cfg and prepares a hand in the dealing phase.
func New(cfg Config) (*Hand, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	h := &Hand{
		cfg: cfg,
		logger: cfg.Logger.With().
			Str("component", "hand").
			Str("table_id", cfg.TableID).
			Str("hand_id", cfg.HandID).
			Logger(),
		start:   make(map[string]int64, len(cfg.Seats)),
		leaving: make(map[string]bool),
		shown:   make(map[string]bool),
		holes:   make(map[string][]shuffle.CardOpening, len(cfg.Seats)),
	}
	seats := append([]Seat(nil), cfg.Seats...)
	sortSeats(seats)
	for i, s := range seats {
		h.players = append(h.players, &betting.Player{ID: s.PlayerID, Seat: s.Seat, Stack: s.Stack})
		h.start[s.PlayerID] = s.Stack
		if s.Seat == cfg.Button {
			h.buttonIdx = i
		}
	}
	n := len(h.players)
	if n == 2 {
		// Heads-up the button posts the small blind and acts first preflop.
		h.sbIdx = h.buttonIdx
	} else {
		h.sbIdx = (h.buttonIdx + 1) % n
	}
	h.bbIdx = (h.sbIdx + 1) % n
	return h, nil
}

func sortSeats(seats []Seat) {
	for i := 1; i < len(seats); i++ {
		for j := i; j > 0 && seats[j].Seat < seats[j-1].Seat; j-- {
			seats[j], seats[j-1] = seats[j-1], seats[j]
		}
	}
}

// Phase returns the current phase.
func (h *Hand) Phase() Phase { return h.phase }

// ID returns the hand id.
func (h *Hand) ID() string { return h.cfg.HandID }

// ActionCount is the number of actions applied so far, forced bets
// included. It changes on every turn, so callers use it to tell whether a
// pending timeout is still current.
func (h *Hand) ActionCount() int { return len(h.actions) }

// Commitment returns the deck commitment once the hand has been dealt.
func (h *Hand) Commitment() shuffle.Commitment { return h.commitment }

// History returns the record of a finished hand, or nil while it runs.
func (h *Hand) History() *History { return h.history }

// ToAct returns the seat and player whose decision the hand waits on.
func (h *Hand) ToAct() (int, string, bool) {
	if !h.phase.Betting() || h.round == nil {
		return -1, "", false
	}
	seat, ok := h.round.ToAct()
	if !ok {
		return -1, "", false
	}
	return seat, h.bySeat(seat).ID, true
}

// LegalActions returns the options open to playerID, empty when it is not
// their turn.
func (h *Hand) LegalActions(playerID string) []betting.LegalAction {
	seat, id, ok := h.ToAct()
	if !ok || id != playerID {
		return nil
	}
	return h.round.LegalActions(seat)
}

// Start posts the forced bets, obtains a committed deck and deals the hole
// cards. A deck failure voids the hand and refunds the forced bets.
func (h *Hand) Start(ctx context.Context) error {
	if h.phase != Dealing || h.startedAt != (time.Time{}) {
		return fmt.Errorf("%w: hand already started", ErrInvariant)
	}
	h.startedAt = h.cfg.Clock.Now()

	if err := h.postForced(); err != nil {
		return err
	}

	deck, err := h.cfg.Deck.NewDeck(ctx, h.cfg.TableID, h.cfg.HandID)
	if err != nil {
		return h.void(fmt.Errorf("create deck: %w", err))
	}
	h.deck = deck
	h.commitment = deck.Commitment()

	if err := h.dealHoles(); err != nil {
		return h.fail(err)
	}

	h.phase = Preflop
	h.round = betting.NewRound(betting.Preflop, h.players, h.bbIdx+1, h.cfg.BigBlind)
	h.logger.Info().
		Int("players", len(h.players)).
		Int("button", h.cfg.Button).
		Hex("commitment_root", h.commitment.Root).
		Msg("Hand started")
	h.emit(Event{Type: EventHandStarted})
	return h.progress()
}

// postForced takes antes from everyone, then the blinds. Forced bets are
// not validated as actions: a short stack simply goes all-in.
func (h *Hand) postForced() error {
	if h.cfg.Ante > 0 {
		for _, p := range h.players {
			paid, err := p.Commit(h.cfg.Ante)
			if err != nil {
				return err
			}
			// Antes are dead money and do not count towards the round bet.
			p.Bet -= paid
			h.record(ActionRecord{Seat: p.Seat, PlayerID: p.ID, Action: betting.Action{Kind: betting.Bet, Amount: paid}, Paid: paid, Forced: ForcedAnte})
		}
	}
	for _, blind := range []struct {
		idx    int
		amount int64
		label  string
	}{
		{h.sbIdx, h.cfg.SmallBlind, ForcedSmallBlind},
		{h.bbIdx, h.cfg.BigBlind, ForcedBigBlind},
	} {
		p := h.players[blind.idx]
		if blind.amount == 0 || p.Stack == 0 {
			continue
		}
		paid, err := p.Commit(blind.amount)
		if err != nil {
			return err
		}
		h.record(ActionRecord{Seat: p.Seat, PlayerID: p.ID, Action: betting.Action{Kind: betting.Bet, Amount: p.Bet}, Paid: paid, Forced: blind.label})
	}
	return nil
}

// dealHoles deals two rounds of one card each, starting left of the button.
func (h *Hand) dealHoles() error {
	n := len(h.players)
	for range 2 {
		for k := 1; k <= n; k++ {
			p := h.players[(h.buttonIdx+k)%n]
			o, err := h.deck.Next()
			if err != nil {
				return err
			}
			p.HoleCards = append(p.HoleCards, o.Card)
			h.holes[p.ID] = append(h.holes[p.ID], o)
			h.openings = append(h.openings, o)
		}
	}
	return nil
}

// Act applies a player's action.
func (h *Hand) Act(seat int, a betting.Action) error {
	if !h.phase.Betting() {
		return fmt.Errorf("%w: hand is %s", ErrNoBettingRound, h.phase)
	}
	if err := h.apply(seat, a, ""); err != nil {
		return err
	}
	return h.progress()
}

// Timeout acts for seat when its time bank runs out: check when possible,
// otherwise fold.
func (h *Hand) Timeout(seat int) error {
	if !h.phase.Betting() {
		return fmt.Errorf("%w: hand is %s", ErrNoBettingRound, h.phase)
	}
	if cur, ok := h.round.ToAct(); !ok || cur != seat {
		return fmt.Errorf("%w: seat %d is not to act", betting.ErrNotYourTurn, seat)
	}
	a := h.round.DefaultAction(seat)
	h.logger.Warn().Int("seat", seat).Str("action", a.String()).Msg("Player timed out")
	if err := h.apply(seat, a, ReasonTimeout); err != nil {
		return err
	}
	return h.progress()
}

// Leave marks a player as leaving. They are folded as soon as action
// reaches them; their chips stay in play until the hand settles.
func (h *Hand) Leave(playerID string) error {
	if h.phase.Done() {
		return nil
	}
	h.leaving[playerID] = true
	if h.phase.Betting() {
		return h.progress()
	}
	return nil
}

func (h *Hand) apply(seat int, a betting.Action, reason string) error {
	res, err := h.round.ApplyAction(seat, a)
	if err != nil {
		return err
	}
	p := h.bySeat(seat)
	rec := h.record(ActionRecord{
		Street:   h.phase.street(),
		Seat:     seat,
		PlayerID: p.ID,
		Action:   res.Action,
		Paid:     res.Paid,
		Reason:   reason,
	})
	h.logger.Debug().
		Int("seat", seat).
		Str("player_id", p.ID).
		Str("action", res.Action.String()).
		Int64("paid", res.Paid).
		Int64("stack", p.Stack).
		Str("reason", reason).
		Msg("Action applied")
	h.emit(Event{Type: EventPlayerActed, Action: &rec})
	return nil
}

func (h *Hand) record(rec ActionRecord) ActionRecord {
	rec.Seq = len(h.actions)
	h.actions = append(h.actions, rec)
	return rec
}

// progress checks invariants, closes finished rounds and folds leaving
// players until the hand waits on a real decision or ends.
func (h *Hand) progress() error {
	for !h.phase.Done() {
		if err := h.checkInvariants(); err != nil {
			return h.fail(err)
		}
		if h.round.Complete() {
			if err := h.endRound(); err != nil {
				return err
			}
			continue
		}
		seat, _ := h.round.ToAct()
		if p := h.bySeat(seat); h.leaving[p.ID] {
			if err := h.apply(seat, betting.Action{Kind: betting.Fold}, ReasonLeft); err != nil {
				return h.fail(err)
			}
			continue
		}
		return nil
	}
	return nil
}

// endRound closes the current betting round and either deals the next
// street or settles the hand. Streets where fewer than two players can
// still bet complete immediately, which runs the board out.
func (h *Hand) endRound() error {
	if p, amount := betting.ReturnUncalled(h.players); p != nil {
		h.logger.Debug().Str("player_id", p.ID).Int64("amount", amount).Msg("Returned uncalled bet")
	}
	betting.ClearBets(h.players)
	pots, err := betting.BuildPots(h.players)
	if err != nil {
		return h.fail(err)
	}
	h.pots = pots

	if h.inHand() <= 1 || h.phase == River {
		return h.settle()
	}

	h.phase++
	burn, err := h.deck.Burn()
	if err != nil {
		return h.fail(err)
	}
	// Burned cards are disclosed only in the history.
	h.openings = append(h.openings, burn)
	var revealed []shuffle.CardOpening
	for range h.phase.boardCards() {
		o, err := h.deck.Next()
		if err != nil {
			return h.fail(err)
		}
		h.board = append(h.board, o.Card)
		revealed = append(revealed, o)
	}
	h.openings = append(h.openings, revealed...)

	cards := make([]poker.Card, len(revealed))
	for i, o := range revealed {
		cards[i] = o.Card
	}
	h.logger.Debug().Str("phase", h.phase.String()).Str("cards", poker.FormatCards(cards)).Msg("Community cards revealed")
	h.round = betting.NewRound(h.phase.street(), h.players, h.buttonIdx+1, h.cfg.BigBlind)
	h.emit(Event{Type: EventCommunityCardsRevealed, Cards: cards, Openings: revealed})
	return nil
}

func (h *Hand) inHand() int {
	n := 0
	for _, p := range h.players {
		if p.InHand() {
			n++
		}
	}
	return n
}

func (h *Hand) bySeat(seat int) *betting.Player {
	for _, p := range h.players {
		if p.Seat == seat {
			return p
		}
	}
	return nil
}

func (h *Hand) byID(id string) *betting.Player {
	for _, p := range h.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (h *Hand) emit(e Event) {
	if h.cfg.Emit == nil {
		return
	}
	e.Snapshot = h.Snapshot()
	h.cfg.Emit(e)
}

// Snapshot returns a deep copy of the public and private state. Callers
// redact it per viewer before sending it anywhere.
func (h *Hand) Snapshot() Snapshot {
	s := Snapshot{
		TableID:        h.cfg.TableID,
		HandID:         h.cfg.HandID,
		HandNumber:     h.cfg.HandNumber,
		Phase:          h.phase,
		Button:         h.cfg.Button,
		SmallBlindSeat: h.players[h.sbIdx].Seat,
		BigBlindSeat:   h.players[h.bbIdx].Seat,
		Board:          append([]poker.Card(nil), h.board...),
		Pots:           clonePots(h.currentPots()),
		ToAct:          -1,
		ActionCount:    len(h.actions),
		CommitmentRoot: append([]byte(nil), h.commitment.Root...),
	}
	for _, p := range h.players {
		s.Players = append(s.Players, PlayerState{
			ID:           p.ID,
			Seat:         p.Seat,
			Stack:        p.Stack,
			Bet:          p.Bet,
			Contribution: p.Contribution,
			Status:       p.Status,
			HoleCards:    append([]poker.Card(nil), p.HoleCards...),
			Openings:     append([]shuffle.CardOpening(nil), h.holes[p.ID]...),
			Shown:        h.shown[p.ID],
		})
	}
	if seat, _, ok := h.ToAct(); ok {
		s.ToAct = seat
		s.Legal = h.round.LegalActions(seat)
	}
	if h.round != nil && h.phase.Betting() {
		s.CurrentBet = h.round.CurrentBet
		s.MinRaise = h.round.MinRaise
	}
	return s
}

func (h *Hand) currentPots() []betting.Pot {
	if h.phase.Betting() || h.phase == Dealing {
		// New rejects stacks that could overflow a pot.
		pots, _ := betting.BuildPots(h.players)
		return pots
	}
	return h.pots
}

func clonePots(pots []betting.Pot) []betting.Pot {
	out := make([]betting.Pot, len(pots))
	for i, p := range pots {
		out[i] = p
		out[i].Eligible = append([]string(nil), p.Eligible...)
	}
	return out
}
