package table

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lox/fairtable/internal/archive"
	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
)

const inboxSize = 64

// Deps are the collaborators shared by every table.
type Deps struct {
	Deck  hand.DeckSource
	Audit hand.AuditFunc
	Store archive.Store
	Clock quartz.Clock
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
	Logger zerolog.Logger
}

// CommandFunc mutates the table. A returned settlement is persisted.
type CommandFunc func(ctx context.Context, t *Table) (*Settlement, error)

type request struct {
	ctx   context.Context
	name  string
	fn    CommandFunc
	reply chan error
}

// turnToken identifies one decision; a timeout armed for an older token is
// ignored.
type turnToken struct {
	handID  string
	actions int
}

// Actor owns one table. Every mutation runs on its goroutine, one command
// at a time in arrival order; readers use the published snapshot.
type Actor struct {
	id     string
	table  *Table
	deps   Deps
	logger zerolog.Logger

	inbox chan request
	done  chan struct{}

	snapshot atomic.Pointer[Snapshot]
	version  uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	// Owned by the actor goroutine.
	frozen    error
	turnTimer *quartz.Timer
	armed     turnToken
	autoTimer *quartz.Timer
}

// NewActor creates the actor and its table. Run must be called to process
// commands.
func NewActor(cfg Config, deps Deps) (*Actor, error) {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Store == nil {
		deps.Store = archive.Nop{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/lox/fairtable/internal/table")
	}
	a := &Actor{
		id:     cfg.ID,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "table_actor").Str("table_id", cfg.ID).Logger(),
		inbox:  make(chan request, inboxSize),
		done:   make(chan struct{}),
		subs:   make(map[int]chan Event),
	}
	t, err := New(cfg, deps.Deck, deps.Audit, deps.Clock, deps.Logger, a.onHandEvent)
	if err != nil {
		return nil, err
	}
	a.table = t
	a.publishSnapshot()
	return a, nil
}

// ID returns the table id.
func (a *Actor) ID() string { return a.id }

// Run processes commands until ctx is cancelled.
func (a *Actor) Run(ctx context.Context) error {
	defer close(a.done)
	a.logger.Info().Msg("Table actor started")
	a.afterCommand(ctx)
	for {
		select {
		case <-ctx.Done():
			a.stopTimers()
			a.closeSubscribers()
			a.logger.Info().Msg("Table actor stopped")
			return nil
		case req := <-a.inbox:
			req.reply <- a.handle(req)
		}
	}
}

// Do queues fn behind every earlier command and waits for its result.
// Cancelling ctx stops the wait but not a command that has started.
func (a *Actor) Do(ctx context.Context, name string, fn CommandFunc) error {
	req := request{ctx: ctx, name: name, fn: fn, reply: make(chan error, 1)}
	select {
	case a.inbox <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrClosed
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// inject queues a command from a timer without waiting for it.
func (a *Actor) inject(name string, fn CommandFunc) {
	req := request{ctx: context.Background(), name: name, fn: fn, reply: make(chan error, 1)}
	go func() {
		select {
		case a.inbox <- req:
		case <-a.done:
		}
	}()
}

func (a *Actor) handle(req request) error {
	ctx, span := a.deps.Tracer.Start(req.ctx, "table.command", trace.WithAttributes(
		attribute.String("table.id", a.id),
		attribute.String("table.command", req.name),
	))
	defer span.End()
	// Commands are atomic once begun.
	ctx = context.WithoutCancel(ctx)

	var err error
	if a.frozen != nil {
		err = fmt.Errorf("%w: %v", ErrTableFrozen, a.frozen)
	} else {
		var st *Settlement
		st, err = req.fn(ctx, a.table)
		if st != nil {
			a.persist(ctx, st)
		}
		switch Classify(err) {
		case hand.SeverityFairness:
			a.incident(ctx, err, hand.SeverityFairness)
		case hand.SeverityAssertion:
			a.freeze(ctx, err)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Debug().Err(err).Str("command", req.name).Msg("Command rejected")
	}
	a.afterCommand(ctx)
	return err
}

func (a *Actor) persist(ctx context.Context, st *Settlement) {
	if st.History != nil {
		if err := a.deps.Store.SaveHand(ctx, st.History); err != nil {
			a.logger.Error().Err(err).Str("hand_id", st.History.HandID).Msg("Failed to archive hand")
		}
	}
	if len(st.Deltas) == 0 {
		return
	}
	handID := ""
	if st.History != nil {
		handID = st.History.HandID
	}
	if err := a.deps.Store.SaveStackDeltas(ctx, a.id, handID, st.Deltas); err != nil {
		a.logger.Error().Err(err).Str("hand_id", handID).Msg("Failed to archive stack deltas")
	}
}

func (a *Actor) incident(ctx context.Context, cause error, sev hand.Severity) {
	inc := archive.Incident{
		TableID:  a.id,
		Severity: sev.String(),
		Error:    cause.Error(),
		At:       a.deps.Clock.Now(),
	}
	if h := a.table.Hand(); h != nil {
		inc.HandID = h.ID()
	}
	if err := a.deps.Store.ReportIncident(ctx, inc); err != nil {
		a.logger.Error().Err(err).Msg("Failed to report incident")
	}
}

// freeze stops the table. Every later command fails until an operator
// replaces the table.
func (a *Actor) freeze(ctx context.Context, cause error) {
	a.frozen = cause
	a.stopTimers()
	a.logger.Error().Err(cause).Msg("Table frozen")
	a.incident(ctx, cause, hand.SeverityAssertion)
	a.publishSnapshot()
	a.publish(Event{Type: EventTableFrozen, TableID: a.id, Table: a.snapshot.Load()})
}

// afterCommand re-arms timers and publishes the new state.
func (a *Actor) afterCommand(_ context.Context) {
	if a.frozen == nil {
		a.armTurnTimer()
		a.armAutoStart()
	}
	a.publishSnapshot()
	a.publish(Event{Type: EventTableUpdated, TableID: a.id, Table: a.snapshot.Load()})
}

func (a *Actor) armTurnTimer() {
	h := a.table.Hand()
	cfg := a.table.Config()
	if h == nil || h.Phase().Done() || cfg.TimeBank <= 0 {
		a.stopTurnTimer()
		return
	}
	if _, _, ok := h.ToAct(); !ok {
		a.stopTurnTimer()
		return
	}
	tok := turnToken{handID: h.ID(), actions: h.ActionCount()}
	if tok == a.armed && a.turnTimer != nil {
		return
	}
	a.stopTurnTimer()
	a.armed = tok
	a.turnTimer = a.deps.Clock.AfterFunc(cfg.TimeBank, func() {
		a.inject("timeout", func(_ context.Context, t *Table) (*Settlement, error) {
			cur := t.Hand()
			if cur == nil || cur.ID() != tok.handID || cur.ActionCount() != tok.actions {
				return nil, nil
			}
			return t.Timeout()
		})
	}, "table", "turn")
}

func (a *Actor) stopTurnTimer() {
	if a.turnTimer != nil {
		a.turnTimer.Stop()
		a.turnTimer = nil
	}
	a.armed = turnToken{}
}

func (a *Actor) armAutoStart() {
	cfg := a.table.Config()
	if !cfg.AutoStart || a.autoTimer != nil || !a.table.CanStart() {
		return
	}
	a.autoTimer = a.deps.Clock.AfterFunc(cfg.NextHandDelay, func() {
		a.inject("auto_start", func(ctx context.Context, t *Table) (*Settlement, error) {
			a.autoTimer = nil
			if !t.CanStart() {
				return nil, nil
			}
			return t.StartNextHand(ctx)
		})
	}, "table", "auto_start")
}

func (a *Actor) stopTimers() {
	a.stopTurnTimer()
	if a.autoTimer != nil {
		a.autoTimer.Stop()
		a.autoTimer = nil
	}
}

func (a *Actor) onHandEvent(e hand.Event) {
	a.publish(Event{Type: string(e.Type), TableID: a.id, Hand: &e})
}

func (a *Actor) publishSnapshot() {
	a.version++
	s := &Snapshot{
		TableID:    a.id,
		Version:    a.version,
		Config:     a.table.Config(),
		Seats:      a.table.Seats(),
		Button:     a.table.Button(),
		HandNumber: a.table.HandNumber(),
	}
	if h := a.table.Hand(); h != nil {
		hs := h.Snapshot()
		s.Hand = &hs
	}
	if a.frozen != nil {
		s.Frozen = true
		s.FrozenReason = a.frozen.Error()
	}
	a.snapshot.Store(s)
}

// Snapshot returns the latest published state with every hole card. Use
// View for anything sent to a player.
func (a *Actor) Snapshot() *Snapshot { return a.snapshot.Load() }

// View returns the latest state as playerID may see it.
func (a *Actor) View(playerID string) *Snapshot { return a.snapshot.Load().View(playerID) }

// Subscribe returns a channel of events. Slow subscribers miss events
// rather than stall the table. The channel is closed by cancel or when the
// actor stops.
func (a *Actor) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			defer a.subMu.Unlock()
			if _, ok := a.subs[id]; ok {
				delete(a.subs, id)
				close(ch)
			}
		})
	}
}

func (a *Actor) publish(e Event) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for id, ch := range a.subs {
		select {
		case ch <- e:
		default:
			a.logger.Warn().Int("subscriber", id).Str("event", e.Type).Msg("Dropping event for slow subscriber")
		}
	}
}

func (a *Actor) closeSubscribers() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for id, ch := range a.subs {
		close(ch)
		delete(a.subs, id)
	}
}

// SeatPlayer seats playerID with a buy-in; seat < 0 picks any free seat.
func (a *Actor) SeatPlayer(ctx context.Context, playerID string, buyIn int64, seat int) (int, error) {
	var got int
	err := a.Do(ctx, "seat", func(_ context.Context, t *Table) (*Settlement, error) {
		var err error
		got, err = t.SeatPlayer(playerID, buyIn, seat)
		return nil, err
	})
	return got, err
}

// RemovePlayer unseats playerID, now or when the live hand settles.
func (a *Actor) RemovePlayer(ctx context.Context, playerID string) (cashOut int64, deferred bool, err error) {
	err = a.Do(ctx, "remove", func(_ context.Context, t *Table) (*Settlement, error) {
		var (
			st  *Settlement
			err error
		)
		cashOut, deferred, st, err = t.RemovePlayer(playerID)
		if st != nil || err != nil || deferred {
			return st, err
		}
		return &Settlement{Deltas: []archive.StackDelta{{PlayerID: playerID, CashOut: cashOut}}}, nil
	})
	return cashOut, deferred, err
}

// ApplyAction applies playerID's action to the live hand.
func (a *Actor) ApplyAction(ctx context.Context, playerID string, action betting.Action) error {
	return a.Do(ctx, "action", func(_ context.Context, t *Table) (*Settlement, error) {
		return t.Act(playerID, action)
	})
}

// NextHand deals the next hand.
func (a *Actor) NextHand(ctx context.Context) error {
	return a.Do(ctx, "next_hand", func(ctx context.Context, t *Table) (*Settlement, error) {
		return t.StartNextHand(ctx)
	})
}

// TopUp adds chips to playerID's stack between hands.
func (a *Actor) TopUp(ctx context.Context, playerID string, amount int64) error {
	return a.Do(ctx, "top_up", func(_ context.Context, t *Table) (*Settlement, error) {
		return nil, t.TopUp(playerID, amount)
	})
}

// SitOut toggles a player out of the next hands, or back in.
func (a *Actor) SitOut(ctx context.Context, playerID string, out bool) error {
	return a.Do(ctx, "sit_out", func(_ context.Context, t *Table) (*Settlement, error) {
		if out {
			return nil, t.SitOut(playerID)
		}
		return nil, t.SitIn(playerID)
	})
}
