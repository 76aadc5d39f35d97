package table

import "github.com/lox/fairtable/internal/hand"

// Snapshot is an immutable copy of a table, published after every command.
type Snapshot struct {
	TableID      string         `json:"table_id"`
	Version      uint64         `json:"version"`
	Config       Config         `json:"config"`
	Seats        []SeatState    `json:"seats"`
	Button       int            `json:"button"`
	HandNumber   uint64         `json:"hand_number"`
	Hand         *hand.Snapshot `json:"hand,omitempty"`
	Frozen       bool           `json:"frozen,omitempty"`
	FrozenReason string         `json:"frozen_reason,omitempty"`
}

// View returns the snapshot as playerID may see it. An empty id is a
// spectator and sees no hole cards until showdown.
func (s *Snapshot) View(playerID string) *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Seats = append([]SeatState(nil), s.Seats...)
	if s.Hand != nil {
		h := s.Hand.Redact(playerID)
		out.Hand = &h
	}
	return &out
}

// Seat returns the seat state of playerID.
func (s *Snapshot) Seat(playerID string) (SeatState, bool) {
	for _, seat := range s.Seats {
		if seat.PlayerID == playerID {
			return seat, true
		}
	}
	return SeatState{}, false
}

// Event types published by an actor besides the hand's own.
const (
	EventTableUpdated = "table_updated"
	EventTableFrozen  = "table_frozen"
)

// Event is what subscribers receive: either a hand event or a table
// update.
type Event struct {
	Type    string      `json:"type"`
	TableID string      `json:"table_id"`
	Hand    *hand.Event `json:"hand,omitempty"`
	Table   *Snapshot   `json:"table,omitempty"`
}

// Redact hides hole cards viewer may not see.
func (e Event) Redact(viewer string) Event {
	if e.Hand != nil {
		h := e.Hand.Redact(viewer)
		e.Hand = &h
	}
	if e.Table != nil {
		e.Table = e.Table.View(viewer)
	}
	return e
}
