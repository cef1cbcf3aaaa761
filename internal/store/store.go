// Package store persists the daily board state and the ingestion run log.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/villageroaster/bakeboard/internal/config"
	"github.com/villageroaster/bakeboard/internal/model"
)

const (
	// DefaultRunsMax caps the run log when no cap is configured.
	DefaultRunsMax   = 200
	defaultListLimit = 50
	defaultSQLiteDSN = "bakeboard.db"
)

// Store defines the persistence interface for the board.
type Store interface {
	// State
	SaveState(ctx context.Context, state model.DailyState) error
	// LoadState returns nil without error when nothing has been saved yet.
	LoadState(ctx context.Context) (*model.DailyState, error)

	// Runs, newest first. The log is capped; saving past the cap drops the
	// oldest entries.
	SaveRun(ctx context.Context, run model.Run) error
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "memory", "":
		s = NewMemory(cfg.RunsMax)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		s, err = NewSQLite(dsn, cfg.RunsMax)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, cfg.RunsMax)
	case "redis":
		s, err = NewRedis(ctx, cfg.DatabaseURL, cfg.RunsMax)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func runsMax(n int) int {
	if n <= 0 {
		return DefaultRunsMax
	}
	return n
}

func listLimit(filter model.RunFilter, maxRuns int) int {
	if filter.Limit <= 0 {
		return min(defaultListLimit, maxRuns)
	}
	return min(filter.Limit, maxRuns)
}
