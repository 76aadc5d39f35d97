package table

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/fairtable/internal/betting"
)

type entry struct {
	actor  *Actor
	cancel context.CancelFunc
}

// Summary holds lightweight table metadata for listings.
type Summary struct {
	ID         string `json:"id"`
	SmallBlind int64  `json:"small_blind"`
	BigBlind   int64  `json:"big_blind"`
	Ante       int64  `json:"ante,omitempty"`
	MaxSeats   int    `json:"max_seats"`
	Seated     int    `json:"seated"`
	HandNumber uint64 `json:"hand_number"`
	InHand     bool   `json:"in_hand"`
	Frozen     bool   `json:"frozen,omitempty"`
}

// Registry tracks the running tables and routes commands to their actors.
type Registry struct {
	deps   Deps
	logger zerolog.Logger

	mu      sync.RWMutex
	tables  map[string]*entry
	group   *errgroup.Group
	ctx     context.Context
	pending []*entry
}

// NewRegistry constructs an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "table_registry").Logger(),
		tables: make(map[string]*entry),
	}
}

// Run starts every table actor and blocks until ctx is cancelled. Tables
// created while running are started immediately.
func (r *Registry) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	r.mu.Lock()
	if r.group != nil {
		r.mu.Unlock()
		return fmt.Errorf("table registry already running")
	}
	r.group, r.ctx = g, gctx
	pending := r.pending
	r.pending = nil
	for _, e := range pending {
		r.start(e)
	}
	r.mu.Unlock()

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()

	r.mu.Lock()
	r.group, r.ctx = nil, nil
	r.mu.Unlock()
	return err
}

// start must be called with r.mu held and r.group set.
func (r *Registry) start(e *entry) {
	actx, cancel := context.WithCancel(r.ctx)
	e.cancel = cancel
	r.group.Go(func() error {
		return e.actor.Run(actx)
	})
}

// Create registers a table and starts its actor if the registry is running.
// A table without an id is given a random one.
func (r *Registry) Create(cfg Config) (*Actor, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, cfg.ID)
	}
	a, err := NewActor(cfg, r.deps)
	if err != nil {
		return nil, err
	}
	e := &entry{actor: a}
	r.tables[cfg.ID] = e
	if r.group != nil {
		r.start(e)
	} else {
		r.pending = append(r.pending, e)
	}
	r.logger.Info().
		Str("table_id", cfg.ID).
		Int64("small_blind", cfg.SmallBlind).
		Int64("big_blind", cfg.BigBlind).
		Int("max_seats", cfg.MaxSeats).
		Msg("Table created")
	return a, nil
}

// Delete stops a table's actor and forgets it. Seated players are not
// cashed out; callers remove them first.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tables[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	delete(r.tables, id)
	if e.cancel != nil {
		e.cancel()
	}
	for i, p := range r.pending {
		if p == e {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the actor for a table.
func (r *Registry) Get(id string) (*Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	return e.actor, nil
}

// List returns a summary of every table, sorted by id.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.tables))
	for _, e := range r.tables {
		s := e.actor.Snapshot()
		out = append(out, Summary{
			ID:         s.TableID,
			SmallBlind: s.Config.SmallBlind,
			BigBlind:   s.Config.BigBlind,
			Ante:       s.Config.Ante,
			MaxSeats:   s.Config.MaxSeats,
			Seated:     len(s.Seats),
			HandNumber: s.HandNumber,
			InHand:     s.Hand != nil && !s.Hand.Phase.Done(),
			Frozen:     s.Frozen,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApplyPlayerAction routes an action to a table.
func (r *Registry) ApplyPlayerAction(ctx context.Context, tableID, playerID string, action betting.Action) error {
	a, err := r.Get(tableID)
	if err != nil {
		return err
	}
	return a.ApplyAction(ctx, playerID, action)
}

// SeatPlayer routes a seat request to a table.
func (r *Registry) SeatPlayer(ctx context.Context, tableID, playerID string, buyIn int64, seat int) (int, error) {
	a, err := r.Get(tableID)
	if err != nil {
		return -1, err
	}
	return a.SeatPlayer(ctx, playerID, buyIn, seat)
}

// RemovePlayer routes a leave request to a table.
func (r *Registry) RemovePlayer(ctx context.Context, tableID, playerID string) (int64, bool, error) {
	a, err := r.Get(tableID)
	if err != nil {
		return 0, false, err
	}
	return a.RemovePlayer(ctx, playerID)
}

// RequestNextHand asks a table to deal.
func (r *Registry) RequestNextHand(ctx context.Context, tableID string) error {
	a, err := r.Get(tableID)
	if err != nil {
		return err
	}
	return a.NextHand(ctx)
}

// Subscribe returns a table's event stream.
func (r *Registry) Subscribe(tableID string, buffer int) (<-chan Event, func(), error) {
	a, err := r.Get(tableID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := a.Subscribe(buffer)
	return ch, cancel, nil
}
