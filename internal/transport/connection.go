package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/table"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBuffer = 256
)

var errConnectionClosed = errors.New("transport: connection closed")

// connection is one player's socket bound to one table.
type connection struct {
	conn     *websocket.Conn
	send     chan any
	actor    *table.Actor
	playerID string
	logger   zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

func newConnection(ctx context.Context, conn *websocket.Conn, actor *table.Actor, playerID string, logger zerolog.Logger) *connection {
	ctx, cancel := context.WithCancel(ctx)
	return &connection{
		conn:     conn,
		send:     make(chan any, sendBuffer),
		actor:    actor,
		playerID: playerID,
		logger:   logger.With().Str("table_id", actor.ID()).Str("player_id", playerID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// serve runs the connection until the peer goes away or ctx ends.
func (c *connection) serve() {
	events, unsubscribe := c.actor.Subscribe(sendBuffer)
	defer unsubscribe()

	_ = c.enqueue(table.Event{
		Type:    table.EventTableUpdated,
		TableID: c.actor.ID(),
		Table:   c.actor.View(c.playerID),
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		c.forward(events)
	}()
	c.readPump()
	c.close()
	wg.Wait()

	c.sitOut()
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}

// enqueue queues msg without blocking. A full buffer means the client
// cannot keep up, so the connection is dropped.
func (c *connection) enqueue(msg any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errConnectionClosed
	}
	select {
	case c.send <- msg:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()
	c.logger.Warn().Msg("send buffer full, closing connection")
	c.close()
	return errConnectionClosed
}

func (c *connection) forward(events <-chan table.Event) {
	for {
		select {
		case <-c.ctx.Done():
			c.close()
			return
		case e, ok := <-events:
			if !ok {
				c.close()
				return
			}
			if c.enqueue(e.Redact(c.playerID)) != nil {
				return
			}
		}
	}
}

func (c *connection) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read failed")
			}
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = c.enqueue(Error{Type: MessageError, Code: "validation", Message: "malformed command"})
			continue
		}
		c.handle(cmd)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug().Err(err).Msg("websocket write failed")
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *connection) handle(cmd Command) {
	c.logger.Debug().Str("command", cmd.Type).Msg("received command")

	res := Result{Type: MessageResult, ID: cmd.ID, Command: cmd.Type}
	var err error
	switch cmd.Type {
	case CommandSeat:
		seat := -1
		if cmd.Seat != nil {
			seat = *cmd.Seat
		}
		seat, err = c.actor.SeatPlayer(c.ctx, c.playerID, cmd.BuyIn, seat)
		if err == nil {
			res.Seat = &seat
		}
	case CommandLeave:
		res.CashOut, res.Deferred, err = c.actor.RemovePlayer(c.ctx, c.playerID)
	case CommandAction:
		var kind betting.Kind
		kind, err = betting.ParseKind(cmd.Action)
		if err == nil {
			err = c.actor.ApplyAction(c.ctx, c.playerID, betting.Action{Kind: kind, Amount: cmd.Amount})
		}
	case CommandNext:
		err = c.actor.NextHand(c.ctx)
	case CommandTopUp:
		err = c.actor.TopUp(c.ctx, c.playerID, cmd.Amount)
	case CommandSitOut:
		err = c.actor.SitOut(c.ctx, c.playerID, true)
	case CommandSitIn:
		err = c.actor.SitOut(c.ctx, c.playerID, false)
	default:
		err = errUnknownCommand
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("command", cmd.Type).Msg("command rejected")
		_ = c.enqueue(errorMessage(cmd, err))
		return
	}
	_ = c.enqueue(res)
}

// sitOut runs once the socket is gone. A disconnect never cancels the live
// hand; the time bank acts for the player there. Later hands skip them until
// they reconnect and sit in.
func (c *connection) sitOut() {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := c.actor.SitOut(ctx, c.playerID, true)
	switch {
	case errors.Is(err, table.ErrNotSeated), errors.Is(err, table.ErrClosed):
	case err != nil:
		c.logger.Warn().Err(err).Msg("failed to sit out disconnected player")
	default:
		c.logger.Info().Msg("disconnected player sitting out")
	}
}
