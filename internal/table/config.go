package table

import (
	"fmt"
	"time"
)

// Config is a table's fixed parameters.
type Config struct {
	ID         string
	SmallBlind int64
	BigBlind   int64
	Ante       int64
	MaxSeats   int
	BuyInMin   int64
	BuyInMax   int64
	// TimeBank is how long a player has to act before the engine acts for
	// them. Zero disables timeouts.
	TimeBank time.Duration
	// AutoStart deals the next hand NextHandDelay after the previous one
	// ends, as long as enough players are ready.
	AutoStart     bool
	NextHandDelay time.Duration
}

// Validate checks the blind structure, seat count and buy-in bounds.
func (c Config) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidConfig)
	case c.BigBlind <= 0 || c.SmallBlind < 0 || c.SmallBlind > c.BigBlind:
		return fmt.Errorf("%w: blinds %d/%d", ErrInvalidConfig, c.SmallBlind, c.BigBlind)
	case c.Ante < 0:
		return fmt.Errorf("%w: ante %d", ErrInvalidConfig, c.Ante)
	case c.MaxSeats < 2 || c.MaxSeats > 10:
		return fmt.Errorf("%w: %d seats, want 2-10", ErrInvalidConfig, c.MaxSeats)
	case c.BuyInMin < c.BigBlind || c.BuyInMax < c.BuyInMin:
		return fmt.Errorf("%w: buy-in %d-%d with big blind %d", ErrInvalidConfig, c.BuyInMin, c.BuyInMax, c.BigBlind)
	case c.TimeBank < 0 || c.NextHandDelay < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}
