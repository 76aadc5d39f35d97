package phh

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// ErrNoFairness is returned when a PHH hand has no _fairness table and so
// cannot be audited.
var ErrNoFairness = errors.New("phh: hand has no fairness record")

// positionOrder returns indexes into players (sorted by seat) starting at
// the small blind.
func positionOrder(players []hand.HistoryPlayer, button int) []int {
	n := len(players)
	start := 0
	for i, p := range players {
		if p.Seat == button {
			start = i
			if n > 2 {
				start = (i + 1) % n
			}
			break
		}
	}
	order := make([]int, n)
	for pos := range order {
		order[pos] = (start + pos) % n
	}
	return order
}

// boardFor returns the board cards revealed on street.
func boardFor(street betting.Street, board []poker.Card) []poker.Card {
	lo, hi := 0, 3
	switch street {
	case betting.Preflop:
		return nil
	case betting.Turn:
		lo, hi = 3, 4
	case betting.River:
		lo, hi = 4, 5
	}
	if hi > len(board) {
		return nil
	}
	return board[lo:hi]
}

// lastStreet is the street whose cards complete a board of n cards.
func lastStreet(n int) betting.Street {
	switch {
	case n >= 5:
		return betting.River
	case n == 4:
		return betting.Turn
	case n >= 3:
		return betting.Flop
	}
	return betting.Preflop
}

// FromHistory converts a finished hand to PHH.
func FromHistory(h *hand.History) *HandHistory {
	order := positionOrder(h.Players, h.Button)
	n := len(order)
	posOf := make(map[string]int, n)

	hh := &HandHistory{
		Variant:           Variant,
		Table:             h.TableID,
		SeatCount:         n,
		Seats:             make([]int, n),
		Antes:             make([]int64, n),
		BlindsOrStraddles: make([]int64, n),
		MinBet:            h.BigBlind,
		StartingStacks:    make([]int64, n),
		FinishingStacks:   make([]int64, n),
		Winnings:          make([]int64, n),
		Players:           make([]string, n),
		HandID:            h.HandID,
	}
	payouts := h.Payouts()
	for pos, idx := range order {
		p := h.Players[idx]
		posOf[p.ID] = pos
		hh.Seats[pos] = p.Seat + 1
		hh.Players[pos] = p.ID
		hh.StartingStacks[pos] = p.StartingStack
		hh.FinishingStacks[pos] = p.EndingStack
		hh.Winnings[pos] = payouts[p.ID]
		if len(p.HoleCards) > 0 {
			hh.Actions = append(hh.Actions, fmt.Sprintf("d dh p%d %s", pos+1, FormatCards(p.HoleCards)))
		}
	}

	bets := make([]int64, n)
	var streetMax int64
	street := betting.Preflop
	dealBoard := func(to betting.Street) {
		for street < to && street < betting.River {
			street++
			if cards := boardFor(street, h.Board); len(cards) > 0 {
				hh.Actions = append(hh.Actions, "d db "+FormatCards(cards))
			}
			clear(bets)
			streetMax = 0
		}
	}

	for _, rec := range h.Actions {
		pos, ok := posOf[rec.PlayerID]
		if !ok {
			continue
		}
		switch rec.Forced {
		case hand.ForcedAnte:
			hh.Antes[pos] = rec.Paid
			continue
		case hand.ForcedSmallBlind, hand.ForcedBigBlind:
			hh.BlindsOrStraddles[pos] = rec.Paid
			bets[pos] += rec.Paid
			streetMax = max(streetMax, bets[pos])
			continue
		}
		dealBoard(rec.Street)
		total := bets[pos] + rec.Paid
		kind := rec.Action.Kind
		if kind == betting.AllInKind {
			kind = betting.Call
			if total > streetMax {
				kind = betting.Raise
			}
		}
		if line, ok := FormatAction(pos, kind, total); ok {
			hh.Actions = append(hh.Actions, line)
		}
		bets[pos] = total
		streetMax = max(streetMax, total)
	}
	if !h.Voided {
		dealBoard(lastStreet(len(h.Board)))
		for pos, idx := range order {
			p := h.Players[idx]
			if p.Shown && len(p.HoleCards) > 0 {
				hh.Actions = append(hh.Actions, fmt.Sprintf("p%d sm %s", pos+1, FormatCards(p.HoleCards)))
			}
		}
	}

	populateTimeFields(hh, h)
	hh.Fairness = fairnessOf(h)
	return hh
}

func populateTimeFields(hh *HandHistory, h *hand.History) {
	if h.StartedAt.IsZero() {
		return
	}
	utc := h.StartedAt.UTC()
	hh.Time = utc.Format("15:04:05")
	hh.TimeZone = "UTC"
	hh.Day = utc.Day()
	hh.Month = int(utc.Month())
	hh.Year = utc.Year()
}

func fairnessOf(h *hand.History) *Fairness {
	c := h.Commitment
	f := &Fairness{
		HandNumber: int64(h.HandNumber),
		Button:     h.Button,
		SmallBlind: h.SmallBlind,
		BigBlind:   h.BigBlind,
		Ante:       h.Ante,
		StartedAt:  h.StartedAt.UTC(),
		EndedAt:    h.EndedAt.UTC(),
		Scheme:     c.Scheme,
		SeedDigest: hex.EncodeToString(c.SeedDigest),
		Root:       hex.EncodeToString(c.Root),
		Leaves:     make([]string, len(c.Leaves)),
		Signature:  hex.EncodeToString(c.Signature),
		DealerKey:  hex.EncodeToString(c.DealerKey),
		Seed:       hex.EncodeToString(h.Proof.Seed),
		Deck:       FormatCards(h.Deck),
		Dealt:      h.Dealt,
		Voided:     h.Voided,
		VoidReason: h.VoidReason,
	}
	for i, l := range c.Leaves {
		f.Leaves[i] = hex.EncodeToString(l)
	}
	for _, rec := range h.Actions {
		f.Log = append(f.Log, LogEntry{
			Seq:    rec.Seq,
			Street: rec.Street.String(),
			Seat:   rec.Seat,
			Player: rec.PlayerID,
			Kind:   rec.Action.Kind.String(),
			Amount: rec.Action.Amount,
			Paid:   rec.Paid,
			Forced: rec.Forced,
			Reason: rec.Reason,
		})
	}
	for _, p := range h.Pots {
		f.Pots = append(f.Pots, Pot{Amount: p.Amount, Eligible: p.Eligible, Cap: p.Cap})
	}
	for _, a := range h.Awards {
		f.Awards = append(f.Awards, Award{Pot: a.Pot, Player: a.PlayerID, Amount: a.Amount, Rank: int64(a.Rank)})
	}
	return f
}

// ToHistory rebuilds the engine's record of a hand from PHH, for auditing
// and replay.
func ToHistory(hh *HandHistory) (*hand.History, error) {
	f := hh.Fairness
	if f == nil {
		return nil, ErrNoFairness
	}
	n := len(hh.Players)
	if len(hh.Seats) != n || len(hh.StartingStacks) != n || len(hh.FinishingStacks) != n {
		return nil, fmt.Errorf("phh: hand %s: %d players but %d seats, %d starting and %d finishing stacks",
			hh.HandID, n, len(hh.Seats), len(hh.StartingStacks), len(hh.FinishingStacks))
	}

	h := &hand.History{
		TableID:    hh.Table,
		HandID:     hh.HandID,
		HandNumber: uint64(f.HandNumber),
		StartedAt:  f.StartedAt,
		EndedAt:    f.EndedAt,
		SmallBlind: f.SmallBlind,
		BigBlind:   f.BigBlind,
		Ante:       f.Ante,
		Button:     f.Button,
		Dealt:      f.Dealt,
		Voided:     f.Voided,
		VoidReason: f.VoidReason,
		Players:    make([]hand.HistoryPlayer, n),
	}
	for pos := range hh.Players {
		h.Players[pos] = hand.HistoryPlayer{
			ID:            hh.Players[pos],
			Seat:          hh.Seats[pos] - 1,
			StartingStack: hh.StartingStacks[pos],
			EndingStack:   hh.FinishingStacks[pos],
		}
	}

	var err error
	for _, line := range hh.Actions {
		if err = applyLine(h, line); err != nil {
			return nil, fmt.Errorf("phh: hand %s: %w", hh.HandID, err)
		}
	}
	sort.Slice(h.Players, func(i, j int) bool { return h.Players[i].Seat < h.Players[j].Seat })

	if h.Commitment, err = commitmentOf(hh, f); err != nil {
		return nil, err
	}
	h.Proof = shuffle.Proof{Scheme: f.Scheme}
	if h.Proof.Seed, err = hex.DecodeString(f.Seed); err != nil {
		return nil, fmt.Errorf("phh: seed: %w", err)
	}
	if f.Deck != "" {
		if h.Deck, err = ParseCards(f.Deck); err != nil {
			return nil, err
		}
	}

	folded := make(map[string]bool)
	for _, e := range f.Log {
		rec := hand.ActionRecord{Seq: e.Seq, Seat: e.Seat, PlayerID: e.Player, Paid: e.Paid, Forced: e.Forced, Reason: e.Reason}
		if err := rec.Street.UnmarshalText([]byte(e.Street)); err != nil {
			return nil, fmt.Errorf("phh: log %d: %w", e.Seq, err)
		}
		if rec.Action.Kind, err = betting.ParseKind(e.Kind); err != nil {
			return nil, fmt.Errorf("phh: log %d: %w", e.Seq, err)
		}
		rec.Action.Amount = e.Amount
		if rec.Action.Kind == betting.Fold {
			folded[e.Player] = true
		}
		h.Actions = append(h.Actions, rec)
	}
	for i := range h.Players {
		h.Players[i].Folded = folded[h.Players[i].ID]
	}
	for _, p := range f.Pots {
		h.Pots = append(h.Pots, betting.Pot{Amount: p.Amount, Eligible: p.Eligible, Cap: p.Cap})
	}
	for _, a := range f.Awards {
		h.Awards = append(h.Awards, hand.Award{Pot: a.Pot, PlayerID: a.Player, Amount: a.Amount, Rank: poker.HandRank(a.Rank)})
	}
	return h, nil
}

// applyLine folds dealer and showdown lines into h. Betting lines are
// rebuilt from the fairness log instead.
func applyLine(h *hand.History, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	player := func(tok string) (*hand.HistoryPlayer, error) {
		if !strings.HasPrefix(tok, "p") {
			return nil, fmt.Errorf("bad player %q in %q", tok, line)
		}
		pos, err := strconv.Atoi(tok[1:])
		if err != nil || pos < 1 || pos > len(h.Players) {
			return nil, fmt.Errorf("bad player %q in %q", tok, line)
		}
		return &h.Players[pos-1], nil
	}
	switch {
	case fields[0] == "d" && len(fields) == 4 && fields[1] == "dh":
		p, err := player(fields[2])
		if err != nil {
			return err
		}
		cards, err := ParseCards(fields[3])
		if err != nil {
			return err
		}
		p.HoleCards = cards
	case fields[0] == "d" && len(fields) == 3 && fields[1] == "db":
		cards, err := ParseCards(fields[2])
		if err != nil {
			return err
		}
		h.Board = append(h.Board, cards...)
	case len(fields) == 3 && fields[1] == "sm":
		p, err := player(fields[0])
		if err != nil {
			return err
		}
		p.Shown = true
	}
	return nil
}

func commitmentOf(hh *HandHistory, f *Fairness) (shuffle.Commitment, error) {
	c := shuffle.Commitment{Scheme: f.Scheme, TableID: hh.Table, HandID: hh.HandID}
	fields := []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"seed_digest", f.SeedDigest, &c.SeedDigest},
		{"root", f.Root, &c.Root},
		{"signature", f.Signature, &c.Signature},
		{"dealer_key", f.DealerKey, &c.DealerKey},
	}
	for _, fd := range fields {
		if fd.in == "" {
			continue
		}
		b, err := hex.DecodeString(fd.in)
		if err != nil {
			return c, fmt.Errorf("phh: %s: %w", fd.name, err)
		}
		*fd.out = b
	}
	c.Leaves = make([][]byte, len(f.Leaves))
	for i, l := range f.Leaves {
		b, err := hex.DecodeString(l)
		if err != nil {
			return c, fmt.Errorf("phh: leaf %d: %w", i, err)
		}
		c.Leaves[i] = b
	}
	return c, nil
}
