// Package transport adapts table actors to WebSocket clients: JSON
// commands in, redacted table events out.
package transport

import (
	"errors"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/table"
)

// Command types sent by clients.
const (
	CommandSeat   = "seat"
	CommandLeave  = "leave"
	CommandAction = "action"
	CommandNext   = "next"
	CommandTopUp  = "topup"
	CommandSitOut = "sit_out"
	CommandSitIn  = "sit_in"
)

// Message types sent to clients besides table events.
const (
	MessageResult = "result"
	MessageError  = "error"
)

// Command is one client request. Fields are used per type: seat takes
// BuyIn and an optional Seat, action takes Action and Amount, topup takes
// Amount.
type Command struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	BuyIn  int64  `json:"buy_in,omitempty"`
	Seat   *int   `json:"seat,omitempty"`
	Action string `json:"action,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

// Result acknowledges a command. ID echoes the command's.
type Result struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Command  string `json:"command"`
	Seat     *int   `json:"seat,omitempty"`
	CashOut  int64  `json:"cash_out,omitempty"`
	Deferred bool   `json:"deferred,omitempty"`
}

// Error reports a rejected command. Code is the error class: validation,
// resource, fairness or assertion.
type Error struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(cmd Command, err error) Error {
	return Error{
		Type:    MessageError,
		ID:      cmd.ID,
		Command: cmd.Type,
		Code:    errorCode(err),
		Message: err.Error(),
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, table.ErrTableNotFound), errors.Is(err, table.ErrClosed):
		return "not_found"
	case errors.Is(err, table.ErrTableFrozen):
		return hand.SeverityAssertion.String()
	case errors.Is(err, betting.ErrIllegalAction), errors.Is(err, errUnknownCommand):
		return hand.SeverityValidation.String()
	}
	return table.Classify(err).String()
}

var errUnknownCommand = errors.New("unknown command")
