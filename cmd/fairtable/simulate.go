package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/fairtable/internal/archive"
	"github.com/lox/fairtable/internal/betting"
	"github.com/lox/fairtable/internal/randutil"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/internal/statistics"
	"github.com/lox/fairtable/internal/table"
)

// SimulateCmd plays random hands through a table actor. Decks come from the
// real dealer; the seed only drives player decisions.
type SimulateCmd struct {
	Hands      int    `default:"100" help:"Number of hands to play"`
	Players    int    `default:"4" help:"Players at the table (2-10)"`
	Seed       int64  `default:"0" help:"Decision RNG seed (0 for random)"`
	Scheme     string `default:"hash" help:"Commitment scheme (${schemes})"`
	Database   string `default:":memory:" help:"SQLite archive path"`
	HistoryDir string `help:"Also write PHH session files to this directory"`
	Verbose    bool   `short:"V" help:"Verbose logging"`
}

type simOptions struct {
	Hands      int
	Players    int
	Seed       int64
	Scheme     string
	Database   string
	HistoryDir string
}

type simReport struct {
	Hands     int
	Incidents int
	// Net is read back from the archive; Stats is built from the settled
	// hands as they happen. The two must agree.
	Net     map[string]int64
	Stats   *statistics.Session
	Elapsed time.Duration
}

func (cmd SimulateCmd) Run() error {
	if cmd.Seed == 0 {
		cmd.Seed = time.Now().UnixNano()
	}
	level := log.WarnLevel
	if cmd.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level, Prefix: "simulate"})

	fmt.Printf("Starting simulation: %d hands, %d players (seed: %d)\n", cmd.Hands, cmd.Players, cmd.Seed)
	report, err := runSimulation(context.Background(), simOptions{
		Hands:      cmd.Hands,
		Players:    cmd.Players,
		Seed:       cmd.Seed,
		Scheme:     cmd.Scheme,
		Database:   cmd.Database,
		HistoryDir: cmd.HistoryDir,
	}, logger)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func printReport(r *simReport) {
	fmt.Println()
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d hands in %s (%.0f hands/s)",
		r.Hands, r.Elapsed.Round(time.Millisecond), float64(r.Hands)/r.Elapsed.Seconds())))
	for _, p := range r.Stats.Players() {
		style := okStyle
		if r.Net[p.ID] < 0 {
			style = failStyle
		}
		lo, hi := p.ConfidenceInterval95()
		fmt.Printf("  %-4s %s %s\n", p.ID,
			style.Render(fmt.Sprintf("%+6d chips %+7.3f bb/hand", r.Net[p.ID], p.Mean())),
			dimStyle.Render(fmt.Sprintf("95%% CI [%.3f, %.3f], %d showdown wins", lo, hi, p.ShowdownWins)))
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("  showdowns: %d, voided: %d, largest pot: %d (%.1f bb)",
		r.Stats.Showdowns, r.Stats.Voided, r.Stats.MaxPotChips, r.Stats.MaxPotBB)))
	if err := r.Stats.Validate(); err != nil {
		fmt.Println(failStyle.Render("  ledger: " + err.Error()))
	} else {
		fmt.Println(okStyle.Render("  ledger balanced"))
	}
	if r.Incidents > 0 {
		fmt.Println(failStyle.Render(fmt.Sprintf("  %d incidents recorded", r.Incidents)))
	}
}

func runSimulation(ctx context.Context, opts simOptions, logger *log.Logger) (*simReport, error) {
	if opts.Players < 2 || opts.Players > 10 {
		return nil, fmt.Errorf("players must be between 2 and 10, got %d", opts.Players)
	}
	scheme, err := shuffle.LookupScheme(opts.Scheme)
	if err != nil {
		return nil, err
	}

	db, err := archive.OpenSQLite(opts.Database)
	if err != nil {
		return nil, err
	}
	stores := archive.Multi{db}
	if opts.HistoryDir != "" {
		w, err := archive.NewPHHWriter(zerolog.Nop(), archive.PHHConfig{BaseDir: opts.HistoryDir})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		stores = append(stores, w)
	}

	cfg := table.Config{
		ID:         "sim",
		SmallBlind: 1,
		BigBlind:   2,
		MaxSeats:   opts.Players,
		BuyInMin:   20,
		BuyInMax:   200,
	}
	actor, err := table.NewActor(cfg, table.Deps{
		Deck:   shuffle.NewDealer(shuffle.NewCollector(), shuffle.WithScheme(scheme)),
		Store:  stores,
		Clock:  quartz.NewReal(),
		Logger: zerolog.Nop(),
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return actor.Run(gctx) })

	stats := statistics.NewSession()
	start := time.Now()
	playErr := playHands(gctx, actor, opts, stats, logger)
	cancel()
	if err := g.Wait(); err != nil && playErr == nil {
		playErr = err
	}
	elapsed := time.Since(start)

	// Read the archive back before closing the stores.
	report, reportErr := buildReport(ctx, db, opts.Players)
	if err := stores.Close(); err != nil && playErr == nil {
		playErr = err
	}
	if playErr != nil {
		return nil, playErr
	}
	if reportErr != nil {
		return nil, reportErr
	}
	report.Stats = stats
	report.Elapsed = elapsed
	return report, nil
}

func playerName(i int) string { return fmt.Sprintf("p%d", i+1) }

func playHands(ctx context.Context, actor *table.Actor, opts simOptions, stats *statistics.Session, logger *log.Logger) error {
	const buyIn = 100
	for i := range opts.Players {
		if _, err := actor.SeatPlayer(ctx, playerName(i), buyIn, -1); err != nil {
			return err
		}
	}

	// Each player decides from their own stream, so changing one player's
	// behaviour leaves the others' sequences intact.
	root := randutil.New(opts.Seed)
	rngs := make(map[string]*rand.Rand, opts.Players)
	for i := range opts.Players {
		rngs[playerName(i)] = randutil.Child(root)
	}
	for n := range opts.Hands {
		// Busted players rebuy so the table never runs short.
		for _, s := range actor.Snapshot().Seats {
			if s.Stack == 0 {
				if err := actor.TopUp(ctx, s.PlayerID, buyIn); err != nil {
					return err
				}
				logger.Debug("rebuy", "player", s.PlayerID)
			}
		}
		// Commands run on the actor goroutine, so stats is only touched
		// there until playHands returns.
		err := actor.Do(ctx, "simulate_deal", func(ctx context.Context, t *table.Table) (*table.Settlement, error) {
			st, err := t.StartNextHand(ctx)
			if st != nil {
				stats.Add(st.History)
			}
			return st, err
		})
		if err != nil {
			return fmt.Errorf("hand %d: %w", n+1, err)
		}
		for {
			var done bool
			err := actor.Do(ctx, "simulate", func(_ context.Context, t *table.Table) (*table.Settlement, error) {
				h := t.Hand()
				if h == nil || h.Phase().Done() {
					done = true
					return nil, nil
				}
				_, id, ok := h.ToAct()
				if !ok {
					done = true
					return nil, nil
				}
				a := randomAction(rngs[id], h.LegalActions(id))
				logger.Debug("act", "hand", n+1, "player", id, "action", a)
				st, err := t.Act(id, a)
				if st != nil {
					stats.Add(st.History)
				}
				return st, err
			})
			if err != nil {
				return fmt.Errorf("hand %d: %w", n+1, err)
			}
			if done {
				break
			}
		}
	}
	return nil
}

// randomAction folds rarely when checking is free and sizes bets uniformly
// within the legal range.
func randomAction(rng *rand.Rand, legal []betting.LegalAction) betting.Action {
	if len(legal) == 0 {
		return betting.Action{Kind: betting.Fold}
	}
	for {
		la := legal[rng.IntN(len(legal))]
		switch la.Kind {
		case betting.Fold:
			if canCheck(legal) && rng.IntN(10) > 0 {
				continue
			}
			return betting.Action{Kind: betting.Fold}
		case betting.Bet, betting.Raise:
			amount := la.Min
			if la.Max > la.Min {
				amount += rng.Int64N(la.Max - la.Min + 1)
			}
			return betting.Action{Kind: la.Kind, Amount: amount}
		default:
			return betting.Action{Kind: la.Kind}
		}
	}
}

func canCheck(legal []betting.LegalAction) bool {
	for _, la := range legal {
		if la.Kind == betting.Check {
			return true
		}
	}
	return false
}

func buildReport(ctx context.Context, db *archive.SQLite, players int) (*simReport, error) {
	ids, err := db.HandIDs(ctx, "sim")
	if err != nil {
		return nil, err
	}
	incidents, err := db.Incidents(ctx, "sim")
	if err != nil {
		return nil, err
	}
	r := &simReport{Hands: len(ids), Incidents: len(incidents), Net: make(map[string]int64, players)}
	for i := range players {
		net, err := db.PlayerNet(ctx, "sim", playerName(i))
		if err != nil {
			return nil, err
		}
		r.Net[playerName(i)] = net
	}
	return r, nil
}
