package table

import (
	"errors"

	"github.com/lox/fairtable/internal/hand"
)

var (
	ErrTableFull           = errors.New("table: no free seat")
	ErrSeatTaken           = errors.New("table: seat taken")
	ErrAlreadySeated       = errors.New("table: player already seated")
	ErrNotSeated           = errors.New("table: player not seated")
	ErrBuyInOutOfRange     = errors.New("table: buy-in out of range")
	ErrInsufficientPlayers = errors.New("table: insufficient players")
	ErrHandInProgress      = errors.New("table: hand in progress")
	ErrTableFrozen         = errors.New("table: frozen")
	ErrTableNotFound       = errors.New("table: not found")
	ErrTableExists         = errors.New("table: already exists")
	ErrInvalidConfig       = errors.New("table: invalid configuration")
	ErrClosed              = errors.New("table: actor stopped")
)

// Classify extends hand.Classify with the table's own errors.
func Classify(err error) hand.Severity {
	switch {
	case err == nil:
		return hand.SeverityNone
	case errors.Is(err, ErrInsufficientPlayers),
		errors.Is(err, ErrTableFull),
		errors.Is(err, ErrTableFrozen),
		errors.Is(err, ErrClosed):
		return hand.SeverityResource
	case errors.Is(err, ErrSeatTaken),
		errors.Is(err, ErrAlreadySeated),
		errors.Is(err, ErrNotSeated),
		errors.Is(err, ErrBuyInOutOfRange),
		errors.Is(err, ErrHandInProgress),
		errors.Is(err, ErrInvalidConfig):
		return hand.SeverityValidation
	}
	return hand.Classify(err)
}
