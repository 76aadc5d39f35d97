// Package archive persists finished hands, stack changes and incidents.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/lox/fairtable/internal/hand"
)

// StackDelta is one player's change in chips at a table. Delta is the
// result of the hand; CashOut is the stack paid back to the wallet when the
// player left.
type StackDelta struct {
	PlayerID string `json:"player_id"`
	Delta    int64  `json:"delta"`
	Stack    int64  `json:"stack"`
	CashOut  int64  `json:"cash_out,omitempty"`
}

// Incident is a voided hand or a frozen table, kept for investigation.
type Incident struct {
	TableID  string    `json:"table_id"`
	HandID   string    `json:"hand_id,omitempty"`
	Severity string    `json:"severity"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// Store receives everything a table wants persisted. The table never reads
// back from it.
type Store interface {
	SaveHand(ctx context.Context, h *hand.History) error
	SaveStackDeltas(ctx context.Context, tableID, handID string, deltas []StackDelta) error
	ReportIncident(ctx context.Context, inc Incident) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) SaveHand(context.Context, *hand.History) error                       { return nil }
func (Nop) SaveStackDeltas(context.Context, string, string, []StackDelta) error { return nil }
func (Nop) ReportIncident(context.Context, Incident) error                      { return nil }
func (Nop) Close() error                                                        { return nil }

// Multi fans every call out to several stores and joins their errors.
type Multi []Store

func (m Multi) SaveHand(ctx context.Context, h *hand.History) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveHand(ctx, h))
	}
	return errors.Join(errs...)
}

func (m Multi) SaveStackDeltas(ctx context.Context, tableID, handID string, deltas []StackDelta) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveStackDeltas(ctx, tableID, handID, deltas))
	}
	return errors.Join(errs...)
}

func (m Multi) ReportIncident(ctx context.Context, inc Incident) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.ReportIncident(ctx, inc))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
