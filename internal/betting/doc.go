// Package betting applies player actions to a single betting round and
// builds the main and side pots from what each player has put in.
//
// The package holds no hand state of its own beyond the Round. Players are
// shared with the caller, which owns status changes outside betting (dealing,
// sitting out) and forced bets.
package betting
