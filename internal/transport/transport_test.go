package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/internal/table"
)

// wire is the union of every message a client can receive.
type wire struct {
	Type     string          `json:"type"`
	Command  string          `json:"command"`
	Code     string          `json:"code"`
	Seat     *int            `json:"seat"`
	CashOut  int64           `json:"cash_out"`
	Deferred bool            `json:"deferred"`
	Hand     *hand.Event     `json:"hand"`
	Table    *table.Snapshot `json:"table"`
}

type fixture struct {
	registry *table.Registry
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := table.NewRegistry(table.Deps{
		Deck:   shuffle.NewDealer(shuffle.NewCollector()),
		Clock:  quartz.NewMock(t),
		Logger: zerolog.Nop(),
	})
	_, err := registry.Create(table.Config{
		ID:         "t1",
		SmallBlind: 1,
		BigBlind:   2,
		MaxSeats:   6,
		BuyInMin:   20,
		BuyInMax:   200,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- registry.Run(ctx) }()

	srv := httptest.NewServer(NewServer(registry, zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &fixture{registry: registry, server: srv}
}

func (f *fixture) dial(t *testing.T, player string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/tables/t1/ws?player=" + player
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	// The first message is always the table view.
	msg := read(t, conn)
	require.Equal(t, table.EventTableUpdated, msg.Type)
	require.NotNil(t, msg.Table)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) wire {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wire
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil discards messages until one matches.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wire) bool) wire {
	t.Helper()
	for range 50 {
		msg := read(t, conn)
		if match(msg) {
			return msg
		}
	}
	t.Fatal("no matching message")
	return wire{}
}

func isResult(cmd string) func(wire) bool {
	return func(m wire) bool {
		return (m.Type == MessageResult || m.Type == MessageError) && m.Command == cmd
	}
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func TestHealth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListAndGetTables(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/tables")
	require.NoError(t, err)
	var list []table.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	_ = resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, "t1", list[0].ID)

	resp, err = http.Get(f.server.URL + "/tables/t1")
	require.NoError(t, err)
	var snap table.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	_ = resp.Body.Close()
	assert.Equal(t, "t1", snap.TableID)

	resp, err = http.Get(f.server.URL + "/tables/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketRequiresPlayer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/tables/t1/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeatAndPlayHand(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	send(t, alice, Command{Type: CommandSeat, ID: "1", BuyIn: 100})
	res := readUntil(t, alice, isResult(CommandSeat))
	require.Equal(t, MessageResult, res.Type)
	require.NotNil(t, res.Seat)
	assert.Equal(t, 0, *res.Seat)

	send(t, bob, Command{Type: CommandSeat, BuyIn: 100})
	res = readUntil(t, bob, isResult(CommandSeat))
	require.Equal(t, MessageResult, res.Type)

	send(t, alice, Command{Type: CommandNext})
	started := readUntil(t, alice, func(m wire) bool { return m.Type == string(hand.EventHandStarted) })
	require.NotNil(t, started.Hand)
	for _, p := range started.Hand.Snapshot.Players {
		if p.ID == "alice" {
			assert.Len(t, p.HoleCards, 2, "own cards visible")
		} else {
			assert.Empty(t, p.HoleCards, "opponent cards hidden")
		}
	}

	// Heads-up the button posts the small blind and acts first.
	actor, err := f.registry.Get("t1")
	require.NoError(t, err)
	hs := actor.Snapshot().Hand
	var toAct string
	for _, p := range hs.Players {
		if p.Seat == hs.ToAct {
			toAct = p.ID
		}
	}
	conn := map[string]*websocket.Conn{"alice": alice, "bob": bob}[toAct]
	require.NotNil(t, conn)

	send(t, conn, Command{Type: CommandAction, Action: betting.Fold.String()})
	// The result and the settlement race through separate goroutines.
	var acked, settled bool
	readUntil(t, conn, func(m wire) bool {
		if isResult(CommandAction)(m) {
			assert.Equal(t, MessageResult, m.Type)
			acked = true
		}
		settled = settled || m.Type == string(hand.EventHandSettled)
		return acked && settled
	})
}

func TestCommandErrorsCarrySeverity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.dial(t, "alice")

	send(t, alice, Command{Type: CommandSeat, BuyIn: 5})
	res := readUntil(t, alice, isResult(CommandSeat))
	assert.Equal(t, MessageError, res.Type)
	assert.Equal(t, hand.SeverityValidation.String(), res.Code)

	send(t, alice, Command{Type: CommandNext})
	res = readUntil(t, alice, isResult(CommandNext))
	assert.Equal(t, hand.SeverityResource.String(), res.Code)

	send(t, alice, Command{Type: "dance"})
	res = readUntil(t, alice, isResult("dance"))
	assert.Equal(t, hand.SeverityValidation.String(), res.Code)

	send(t, alice, Command{Type: CommandAction, Action: "shove"})
	res = readUntil(t, alice, isResult(CommandAction))
	assert.Equal(t, hand.SeverityValidation.String(), res.Code)
}

func TestDisconnectSitsPlayerOut(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.dial(t, "alice")

	send(t, alice, Command{Type: CommandSeat, BuyIn: 100})
	readUntil(t, alice, isResult(CommandSeat))

	actor, err := f.registry.Get("t1")
	require.NoError(t, err)
	seat, seated := actor.Snapshot().Seat("alice")
	require.True(t, seated)
	require.False(t, seat.SittingOut)

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		seat, seated := actor.Snapshot().Seat("alice")
		return seated && seat.SittingOut
	}, 5*time.Second, 10*time.Millisecond)

	// Reconnecting and sitting in deals the player in again.
	alice = f.dial(t, "alice")
	send(t, alice, Command{Type: CommandSitIn})
	res := readUntil(t, alice, isResult(CommandSitIn))
	assert.Equal(t, MessageResult, res.Type)
	seat, _ = actor.Snapshot().Seat("alice")
	assert.False(t, seat.SittingOut)

	send(t, alice, Command{Type: CommandLeave})
	res = readUntil(t, alice, isResult(CommandLeave))
	assert.Equal(t, int64(100), res.CashOut)
	_, seated = actor.Snapshot().Seat("alice")
	assert.False(t, seated)
}
