// Package phh converts finished hands to and from the Poker Hand History
// (PHH) TOML format. Besides the standard fields every hand carries a
// _fairness table with the deck commitment, the shuffle proof and the
// structured action log, which is enough to audit and replay the hand.
package phh

import "time"

// Variant is the PHH code for no-limit Texas hold'em.
const Variant = "NT"

// HandHistory represents a single poker hand encoded in PHH format.
// Players are ordered from the small blind clockwise, so p1 is the small
// blind (the button heads-up).
type HandHistory struct {
	Variant           string   `toml:"variant"`
	Table             string   `toml:"table,omitempty"`
	SeatCount         int      `toml:"seat_count,omitempty"`
	Seats             []int    `toml:"seats,omitempty"`
	Antes             []int64  `toml:"antes"`
	BlindsOrStraddles []int64  `toml:"blinds_or_straddles"`
	MinBet            int64    `toml:"min_bet"`
	StartingStacks    []int64  `toml:"starting_stacks"`
	FinishingStacks   []int64  `toml:"finishing_stacks,omitempty"`
	Winnings          []int64  `toml:"winnings,omitempty"`
	Actions           []string `toml:"actions"`
	Players           []string `toml:"players,omitempty"`
	HandID            string   `toml:"hand"`
	Time              string   `toml:"time,omitempty"`
	TimeZone          string   `toml:"time_zone,omitempty"`
	Day               int      `toml:"day,omitempty"`
	Month             int      `toml:"month,omitempty"`
	Year              int      `toml:"year,omitempty"`

	Fairness *Fairness `toml:"_fairness,omitempty"`
}

// Fairness is the audit record of a hand. Byte fields are hex encoded and
// card lists are concatenated PHH cards ("AsKd").
type Fairness struct {
	HandNumber int64     `toml:"hand_number"`
	Button     int       `toml:"button"`
	SmallBlind int64     `toml:"small_blind"`
	BigBlind   int64     `toml:"big_blind"`
	Ante       int64     `toml:"ante,omitempty"`
	StartedAt  time.Time `toml:"started_at"`
	EndedAt    time.Time `toml:"ended_at"`

	Scheme     string   `toml:"scheme"`
	SeedDigest string   `toml:"seed_digest"`
	Root       string   `toml:"root"`
	Leaves     []string `toml:"leaves"`
	Signature  string   `toml:"signature,omitempty"`
	DealerKey  string   `toml:"dealer_key,omitempty"`
	Seed       string   `toml:"seed,omitempty"`
	Deck       string   `toml:"deck,omitempty"`
	Dealt      int      `toml:"dealt"`

	Voided     bool   `toml:"voided,omitempty"`
	VoidReason string `toml:"void_reason,omitempty"`

	Log    []LogEntry `toml:"log"`
	Pots   []Pot      `toml:"pots,omitempty"`
	Awards []Award    `toml:"awards,omitempty"`
}

// Pot is a settled pot and the players who could win it.
type Pot struct {
	Amount   int64    `toml:"amount"`
	Eligible []string `toml:"eligible"`
	Cap      int64    `toml:"cap,omitempty"`
}

// LogEntry is one engine action, forced bets included.
type LogEntry struct {
	Seq    int    `toml:"seq"`
	Street string `toml:"street"`
	Seat   int    `toml:"seat"`
	Player string `toml:"player"`
	Kind   string `toml:"kind"`
	Amount int64  `toml:"amount"`
	Paid   int64  `toml:"paid"`
	Forced string `toml:"forced,omitempty"`
	Reason string `toml:"reason,omitempty"`
}

// Award is one player's share of one pot.
type Award struct {
	Pot    int    `toml:"pot"`
	Player string `toml:"player"`
	Amount int64  `toml:"amount"`
	Rank   int64  `toml:"rank,omitempty"`
}
