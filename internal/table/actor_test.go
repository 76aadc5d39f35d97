package table

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/fairtable/internal/archive"
	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/shuffle"
)

type memoryStore struct {
	mu        sync.Mutex
	hands     []*hand.History
	deltas    map[string][]archive.StackDelta
	incidents []archive.Incident
}

func newMemoryStore() *memoryStore {
	return &memoryStore{deltas: make(map[string][]archive.StackDelta)}
}

func (m *memoryStore) SaveHand(_ context.Context, h *hand.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = append(m.hands, h)
	return nil
}

func (m *memoryStore) SaveStackDeltas(_ context.Context, _ string, handID string, d []archive.StackDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deltas[handID] = append(m.deltas[handID], d...)
	return nil
}

func (m *memoryStore) ReportIncident(_ context.Context, inc archive.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, inc)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) handCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hands)
}

type actorFixture struct {
	actor *Actor
	clock *quartz.Mock
	store *memoryStore
	ctx   context.Context
}

func startActor(t *testing.T, cfg Config) *actorFixture {
	t.Helper()
	clock := quartz.NewMock(t)
	store := newMemoryStore()
	a, err := NewActor(cfg, Deps{
		Deck:   shuffle.NewDealer(shuffle.NewCollector()),
		Store:  store,
		Clock:  clock,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return &actorFixture{actor: a, clock: clock, store: store, ctx: ctx}
}

func (f *actorFixture) seat(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := f.actor.SeatPlayer(f.ctx, id, 100, -1)
		require.NoError(t, err)
	}
}

func (f *actorFixture) actions() int {
	s := f.actor.Snapshot()
	if s.Hand == nil {
		return 0
	}
	return s.Hand.ActionCount
}

func TestActorSerializesCommands(t *testing.T) {
	t.Parallel()

	f := startActor(t, testConfig())
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.actor.Do(f.ctx, "incr", func(context.Context, *Table) (*Settlement, error) {
				counter++
				return nil, nil
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.GreaterOrEqual(t, f.actor.Snapshot().Version, uint64(50))
}

func TestActorPersistsSettledHands(t *testing.T) {
	t.Parallel()

	f := startActor(t, testConfig())
	f.seat(t, "alice", "bob")
	require.NoError(t, f.actor.NextHand(f.ctx))

	require.NoError(t, f.actor.ApplyAction(f.ctx, "alice", betting.Action{Kind: betting.Fold}))

	assert.Equal(t, 1, f.store.handCount())
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	h := f.store.hands[0]
	assert.Len(t, f.store.deltas[h.HandID], 2)
	assert.NoError(t, h.Audit())
}

func TestActorPersistsHandEndedByLeaving(t *testing.T) {
	t.Parallel()

	f := startActor(t, testConfig())
	f.seat(t, "alice", "bob")
	require.NoError(t, f.actor.NextHand(f.ctx))

	cash, deferred, err := f.actor.RemovePlayer(f.ctx, "alice")
	require.NoError(t, err)
	assert.False(t, deferred)
	assert.Equal(t, int64(99), cash)

	assert.Equal(t, 1, f.store.handCount())
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	h := f.store.hands[0]
	assert.Len(t, f.store.deltas[h.HandID], 2)
	assert.NoError(t, h.Audit())
}

func TestActorViewRedactsOtherHoleCards(t *testing.T) {
	t.Parallel()

	f := startActor(t, testConfig())
	f.seat(t, "alice", "bob")
	require.NoError(t, f.actor.NextHand(f.ctx))

	view := f.actor.View("alice")
	alice, ok := view.Hand.Player("alice")
	require.True(t, ok)
	assert.Len(t, alice.HoleCards, 2)
	bob, ok := view.Hand.Player("bob")
	require.True(t, ok)
	assert.Empty(t, bob.HoleCards)

	full, _ := f.actor.Snapshot().Hand.Player("bob")
	assert.Len(t, full.HoleCards, 2, "the published snapshot is not redacted")
}

func TestActorTimeBankActsForPlayer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TimeBank = 5 * time.Second
	f := startActor(t, cfg)
	f.seat(t, "alice", "bob")
	require.NoError(t, f.actor.NextHand(f.ctx))
	require.Equal(t, 2, f.actions())

	// alice calls before her time runs out, which re-arms for bob.
	f.clock.Advance(3 * time.Second).MustWait(f.ctx)
	require.NoError(t, f.actor.ApplyAction(f.ctx, "alice", betting.Action{Kind: betting.Call}))
	require.Equal(t, 3, f.actions())

	f.clock.Advance(3 * time.Second).MustWait(f.ctx)
	assert.Never(t, func() bool { return f.actions() != 3 }, 50*time.Millisecond, 5*time.Millisecond,
		"the first timer was stopped when alice acted")

	// bob's time bank ends 5s after alice acted; he is checked for.
	f.clock.Advance(2 * time.Second).MustWait(f.ctx)
	require.Eventually(t, func() bool { return f.actions() == 4 }, time.Second, 5*time.Millisecond)

	snap := f.actor.Snapshot()
	assert.Equal(t, hand.Flop, snap.Hand.Phase)
}

func TestActorTimeoutFoldsAndSettles(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TimeBank = time.Second
	f := startActor(t, cfg)
	f.seat(t, "alice", "bob")
	require.NoError(t, f.actor.NextHand(f.ctx))

	f.clock.Advance(time.Second).MustWait(f.ctx)
	require.Eventually(t, func() bool { return f.store.handCount() == 1 }, time.Second, 5*time.Millisecond)

	f.store.mu.Lock()
	h := f.store.hands[0]
	f.store.mu.Unlock()
	last := h.Actions[len(h.Actions)-1]
	assert.Equal(t, "alice", last.PlayerID)
	assert.Equal(t, betting.Fold, last.Action.Kind)
	assert.Equal(t, hand.ReasonTimeout, last.Reason)

	seat, _ := f.actor.Snapshot().Seat("bob")
	assert.Equal(t, int64(101), seat.Stack)
}

func TestActorAutoStartsHands(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AutoStart = true
	cfg.NextHandDelay = 2 * time.Second
	f := startActor(t, cfg)
	f.seat(t, "alice", "bob")
	assert.Equal(t, uint64(0), f.actor.Snapshot().HandNumber)

	f.clock.Advance(2 * time.Second).MustWait(f.ctx)
	require.Eventually(t, func() bool { return f.actor.Snapshot().HandNumber == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.actor.ApplyAction(f.ctx, "alice", betting.Action{Kind: betting.Fold}))
	f.clock.Advance(2 * time.Second).MustWait(f.ctx)
	require.Eventually(t, func() bool { return f.actor.Snapshot().HandNumber == 2 }, time.Second, 5*time.Millisecond)
}

func TestActorFreezesOnInvariantFailure(t *testing.T) {
	t.Parallel()

	f := startActor(t, testConfig())
	events, cancel := f.actor.Subscribe(16)
	defer cancel()

	err := f.actor.Do(f.ctx, "corrupt", func(context.Context, *Table) (*Settlement, error) {
		return nil, fmt.Errorf("%w: chips appeared", hand.ErrInvariant)
	})
	require.ErrorIs(t, err, hand.ErrInvariant)

	snap := f.actor.Snapshot()
	assert.True(t, snap.Frozen)
	assert.Contains(t, snap.FrozenReason, "chips appeared")

	_, err = f.actor.SeatPlayer(f.ctx, "alice", 100, -1)
	assert.ErrorIs(t, err, ErrTableFrozen)

	f.store.mu.Lock()
	require.Len(t, f.store.incidents, 1)
	assert.Equal(t, hand.SeverityAssertion.String(), f.store.incidents[0].Severity)
	f.store.mu.Unlock()

	var frozen bool
	for len(events) > 0 {
		if e := <-events; e.Type == EventTableFrozen {
			frozen = true
		}
	}
	assert.True(t, frozen)
}

func TestActorSubscribeReceivesHandEvents(t *testing.T) {
	t.Parallel()

	f := startActor(t, testConfig())
	events, cancel := f.actor.Subscribe(64)
	f.seat(t, "alice", "bob")
	require.NoError(t, f.actor.NextHand(f.ctx))

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Contains(t, types, string(hand.EventHandStarted))
	assert.Contains(t, types, EventTableUpdated)

	cancel()
	cancel()
	_, ok := <-events
	assert.False(t, ok)
}

func TestActorDoAfterStop(t *testing.T) {
	t.Parallel()

	a, err := NewActor(testConfig(), Deps{Logger: zerolog.Nop(), Clock: quartz.NewMock(t)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	err = a.Do(context.Background(), "noop", func(context.Context, *Table) (*Settlement, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrClosed)
}
