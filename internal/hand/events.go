package hand

import (
	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/poker"
)

// EventType names an outbound event.
type EventType string

const (
	EventHandStarted            EventType = "hand_started"
	EventCommunityCardsRevealed EventType = "community_cards_revealed"
	EventPlayerActed            EventType = "player_acted"
	EventPotsAwarded            EventType = "pots_awarded"
	EventHandSettled            EventType = "hand_settled"
	EventHandVoided             EventType = "hand_voided"
)

// Event is emitted on every transition. Each one carries a complete
// snapshot so that consumers never need to query the hand.
type Event struct {
	Type     EventType             `json:"type"`
	Snapshot Snapshot              `json:"snapshot"`
	Action   *ActionRecord         `json:"action,omitempty"`
	Cards    []poker.Card          `json:"cards,omitempty"`
	Openings []shuffle.CardOpening `json:"openings,omitempty"`
	Awards   []Award               `json:"awards,omitempty"`
	History  *History              `json:"history,omitempty"`
	Reason   string                `json:"reason,omitempty"`
}

// Redact returns a copy of the event fit for viewer.
func (e Event) Redact(viewer string) Event {
	e.Snapshot = e.Snapshot.Redact(viewer)
	return e
}

// PlayerState is one player's slice of a snapshot.
type PlayerState struct {
	ID           string                `json:"id"`
	Seat         int                   `json:"seat"`
	Stack        int64                 `json:"stack"`
	Bet          int64                 `json:"bet"`
	Contribution int64                 `json:"contribution"`
	Status       betting.Status        `json:"status"`
	HoleCards    []poker.Card          `json:"hole_cards,omitempty"`
	Openings     []shuffle.CardOpening `json:"openings,omitempty"`
	// Shown is set once the cards are public.
	Shown bool `json:"shown,omitempty"`
}

// Snapshot is a self-contained copy of a hand's state.
type Snapshot struct {
	TableID        string                `json:"table_id"`
	HandID         string                `json:"hand_id"`
	HandNumber     uint64                `json:"hand_number"`
	Phase          Phase                 `json:"phase"`
	Button         int                   `json:"button"`
	SmallBlindSeat int                   `json:"small_blind_seat"`
	BigBlindSeat   int                   `json:"big_blind_seat"`
	Board          []poker.Card          `json:"board"`
	Pots           []betting.Pot         `json:"pots"`
	Players        []PlayerState         `json:"players"`
	ToAct          int                   `json:"to_act"`
	CurrentBet     int64                 `json:"current_bet"`
	MinRaise       int64                 `json:"min_raise"`
	Legal          []betting.LegalAction `json:"legal,omitempty"`
	ActionCount    int                   `json:"action_count"`
	CommitmentRoot []byte                `json:"commitment_root,omitempty"`
}

// Redact hides every hole card viewer is not entitled to see. Cards
// already shown at showdown stay visible.
func (s Snapshot) Redact(viewer string) Snapshot {
	players := make([]PlayerState, len(s.Players))
	for i, p := range s.Players {
		if p.ID != viewer && !p.Shown {
			p.HoleCards = nil
			p.Openings = nil
		}
		players[i] = p
	}
	s.Players = players
	return s
}

// Player returns the state for id.
func (s Snapshot) Player(id string) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}
