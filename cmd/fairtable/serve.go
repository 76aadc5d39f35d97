package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/fairtable/cmd/fairtable/shared"
	"github.com/lox/fairtable/internal/archive"
	"github.com/lox/fairtable/internal/config"
	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/internal/table"
	"github.com/lox/fairtable/internal/telemetry"
	"github.com/lox/fairtable/internal/transport"
)

// ServeCmd runs the configured tables behind the WebSocket transport.
type ServeCmd struct {
	Config string `short:"c" default:"fairtable.hcl" help:"Path to the HCL configuration file"`
	Addr   string `help:"Override the listen address"`
	Debug  bool   `help:"Enable debug logging"`
}

func (c *ServeCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := shared.NewLogger(cfg.Server.LogFormat, cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	ctx := shared.SetupSignalHandlerWithLogger(logger)

	shutdownTracing, err := telemetry.Setup(ctx, "fairtable", cfg.Server.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	dealer, err := newDealer(cfg, logger)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close hand archive")
		}
	}()

	registry := table.NewRegistry(table.Deps{
		Deck:   dealer,
		Store:  store,
		Clock:  quartz.NewReal(),
		Logger: logger,
	})
	for _, tc := range cfg.Tables {
		tcfg, err := tc.TableConfig()
		if err != nil {
			return err
		}
		if _, err := registry.Create(tcfg); err != nil {
			return err
		}
		logger.Info().
			Str("table_id", tcfg.ID).
			Int64("small_blind", tcfg.SmallBlind).
			Int64("big_blind", tcfg.BigBlind).
			Int64("ante", tcfg.Ante).
			Int("max_seats", tcfg.MaxSeats).
			Dur("time_bank", tcfg.TimeBank).
			Bool("auto_start", tcfg.AutoStart).
			Msg("Table configured")
	}

	logger.Info().
		Str("address", cfg.Server.Address).
		Str("scheme", dealer.Scheme().Name()).
		Msg("Starting fairtable server")

	srv := transport.NewServer(registry, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error { return srv.Serve(gctx, cfg.Server.Address) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}

// newDealer builds the entropy collector and dealer from configuration.
func newDealer(cfg *config.Config, logger zerolog.Logger) (*shuffle.Dealer, error) {
	opts := []shuffle.CollectorOption{
		shuffle.WithSource(shuffle.SystemSource{}, true),
		shuffle.WithCollectorLogger(logger),
	}
	if cfg.Entropy.Jitter {
		opts = append(opts, shuffle.WithSource(shuffle.JitterSource{Samples: cfg.Entropy.JitterSamples}, false))
	}
	if cfg.Entropy.BeaconURL != "" {
		opts = append(opts, shuffle.WithSource(shuffle.BeaconSource{
			URL:     cfg.Entropy.BeaconURL,
			Timeout: cfg.BeaconTimeout(),
		}, cfg.Entropy.BeaconRequired))
	}

	scheme, err := shuffle.LookupScheme(cfg.Dealer.CommitmentScheme)
	if err != nil {
		return nil, err
	}
	dealerOpts := []shuffle.DealerOption{
		shuffle.WithScheme(scheme),
		shuffle.WithMaxAttempts(cfg.Entropy.MaxAttempts),
		shuffle.WithLogger(logger),
	}
	if cfg.Dealer.SignCommitments {
		signer, err := signerFor(cfg.Dealer.SigningKey)
		if err != nil {
			return nil, err
		}
		logger.Info().Hex("dealer_key", signer.PublicKey()).Msg("Signing deck commitments")
		dealerOpts = append(dealerOpts, shuffle.WithSigner(signer))
	}
	return shuffle.NewDealer(shuffle.NewCollector(opts...), dealerOpts...), nil
}

func signerFor(key string) (*shuffle.Signer, error) {
	if key == "" {
		return shuffle.NewSigner(), nil
	}
	s, err := shuffle.SignerFromHex(key)
	if err != nil {
		return nil, fmt.Errorf("dealer signing_key: %w", err)
	}
	return s, nil
}

// openStore combines the configured archives. With neither configured hands
// are only logged.
func openStore(cfg *config.Config, logger zerolog.Logger) (archive.Store, error) {
	var stores archive.Multi
	if cfg.Server.Database != "" {
		db, err := archive.OpenSQLite(cfg.Server.Database)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("database", cfg.Server.Database).Msg("Archiving hands to SQLite")
		stores = append(stores, db)
	}
	if cfg.Server.HandHistoryDir != "" {
		w, err := archive.NewPHHWriter(logger, archive.PHHConfig{
			BaseDir:       cfg.Server.HandHistoryDir,
			FlushInterval: cfg.FlushInterval(),
		})
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		logger.Info().Str("dir", cfg.Server.HandHistoryDir).Msg("Writing PHH hand histories")
		stores = append(stores, w)
	}
	if len(stores) == 0 {
		return archive.Nop{}, nil
	}
	return stores, nil
}
