package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/villageroaster/bakeboard/internal/imaging"
	"github.com/villageroaster/bakeboard/internal/inbound"
	"github.com/villageroaster/bakeboard/internal/ingest"
	"github.com/villageroaster/bakeboard/internal/mailbox"
	"github.com/villageroaster/bakeboard/internal/menu"
	"github.com/villageroaster/bakeboard/internal/metrics"
	"github.com/villageroaster/bakeboard/internal/ocr"
	"github.com/villageroaster/bakeboard/internal/plan"
	"github.com/villageroaster/bakeboard/internal/resilience"
	"github.com/villageroaster/bakeboard/internal/state"
	"github.com/villageroaster/bakeboard/internal/store"
)

// boardEnv holds the long-lived pieces shared by serve and poll.
type boardEnv struct {
	Store    store.Store
	Board    *state.Store
	Metrics  *metrics.Metrics
	Breakers *resilience.Breakers
	Loop     *ingest.Loop
}

// Close releases the persistence backend.
func (e *boardEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// initBoard opens the store, restores today's state from it, and wires the
// ingestion loop.
func initBoard(ctx context.Context) (*boardEnv, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &boardEnv{Store: st, Metrics: metrics.New()}

	env.Board = state.New(state.Options{
		Location:  loc,
		ResetHour: cfg.App.ResetHour,
		Window:    plan.Window{StartHour: cfg.App.ShiftStartHour, EndHour: cfg.App.ShiftEndHour},
		RoastsMax: cfg.App.RoastsMax,
		PlanMax:   cfg.App.PlanMax,
		Persister: st,
	})
	saved, err := st.LoadState(ctx)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load saved state")
	}
	if saved != nil {
		env.Board.Restore(*saved)
		zap.L().Info("restored saved state",
			zap.String("date", saved.Date),
			zap.Int("bake_items", len(saved.BakePlan)),
			zap.Int("roasts", len(saved.RoastLog)),
		)
	}

	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		env.Close()
		return nil, err
	}

	breakerCfg := resilience.FromConfig(cfg.Breaker.FailureThreshold, cfg.Breaker.ResetTimeoutSecs)
	breakerCfg.OnStateChange = env.Metrics.BreakerChanged
	env.Breakers = resilience.NewBreakers(breakerCfg, ingest.BreakerMailbox, ingest.BreakerOCR)

	env.Loop = ingest.New(ingest.Options{
		Mailbox: mailbox.New(mailbox.Config{
			Host:      cfg.Mail.Host,
			Username:  cfg.Mail.Username,
			Password:  cfg.Mail.Password,
			Mailbox:   cfg.Mail.Mailbox,
			ScanLimit: cfg.Mail.ScanLimit,
		}),
		Filter:     inbound.NewFilter(cfg.Mail.Senders(), cfg.Mail.SubjectTrigger, cfg.Mail.SubjectPasscode),
		Normalizer: imaging.New(cfg.Image.Quality, cfg.Image.MaxDimension),
		OCR:        extractor,
		Menu:       menu.FromConfig(cfg.Menu),
		Matcher:    plan.NewMatcher(cfg.Match.Threshold),
		Board:      env.Board,
		Runs:       st,
		Metrics:    env.Metrics,
		Breakers:   env.Breakers,
		Interval:   cfg.Ingest.PollInterval(),
		StartDelay: cfg.Ingest.StartDelay(),
	})
	return env, nil
}
