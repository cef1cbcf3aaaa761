// Package state owns the board's DailyState. Every read and write goes
// through one mutex, and the day rolls over lazily on access.
package state

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/villageroaster/bakeboard/internal/model"
	"github.com/villageroaster/bakeboard/internal/plan"
)

// ErrEmptyRoast is returned when a roast name is blank after trimming.
var ErrEmptyRoast = eris.New("state: missing item")

const (
	defaultResetHour = 6
	defaultRoastsMax = 30
	defaultPlanMax   = 200
	persistTimeout   = 5 * time.Second
)

// Persister saves a copy of the aggregate after it changes.
type Persister interface {
	SaveState(ctx context.Context, st model.DailyState) error
}

// Options configures a Store.
type Options struct {
	Location  *time.Location
	ResetHour int
	Window    plan.Window
	RoastsMax int
	PlanMax   int
	Persister Persister
}

// Store guards the DailyState.
type Store struct {
	opts Options

	mu      sync.Mutex
	st      model.DailyState
	version uint64

	// persistMu orders saves so an older copy never lands after a newer one.
	persistMu sync.Mutex
	saved     uint64

	nowFunc func() time.Time
}

// New returns an empty store. Zero-valued options take the defaults.
func New(opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.ResetHour < 0 || opts.ResetHour > 23 {
		opts.ResetHour = defaultResetHour
	}
	if opts.RoastsMax <= 0 {
		opts.RoastsMax = defaultRoastsMax
	}
	if opts.PlanMax <= 0 {
		opts.PlanMax = defaultPlanMax
	}
	return &Store{
		opts:    opts,
		st:      model.DailyState{RoastLog: []string{}, BakePlan: []string{}},
		nowFunc: time.Now,
	}
}

func (s *Store) now() time.Time {
	return s.nowFunc().In(s.opts.Location)
}

// resetLocked replaces the aggregate with an empty one for today when the
// stored day is stale and the reset hour has passed. Reports whether it did.
func (s *Store) resetLocked(now time.Time) bool {
	today := now.Format(model.DateLayout)
	if s.st.Date == today || now.Hour() < s.opts.ResetHour {
		return false
	}
	zap.L().Info("state: daily reset",
		zap.String("component", "state"),
		zap.String("from", s.st.Date),
		zap.String("to", today),
	)
	s.st = model.NewDailyState(today, now)
	s.version++
	return true
}

// Snapshot returns a consistent copy of the aggregate with the current plan
// index and display modes derived from the same instant.
func (s *Store) Snapshot(ctx context.Context) model.Snapshot {
	s.mu.Lock()
	now := s.now()
	reset := s.resetLocked(now)
	snap := model.Snapshot{
		DailyState:   s.st.Clone(),
		CurrentIndex: s.opts.Window.CurrentIndex(len(s.st.BakePlan), now),
		BakeMode:     bakeMode(s.st, now),
		RoastMode:    roastMode(s.st, now),
	}
	cp, ver := snap.DailyState.Clone(), s.version
	s.mu.Unlock()

	if reset {
		s.persist(ctx, cp, ver)
	}
	return snap
}

// ApplyBakePlan replaces today's plan wholesale. The plan is copied and
// capped; the source tag is cleared.
func (s *Store) ApplyBakePlan(ctx context.Context, items []string) {
	s.mu.Lock()
	now := s.now()
	s.resetLocked(now)

	p := slices.Clone(items)
	if p == nil {
		p = []string{}
	}
	if len(p) > s.opts.PlanMax {
		p = p[:s.opts.PlanMax]
	}
	s.st.Date = now.Format(model.DateLayout)
	s.st.BakePlan = p
	s.st.BakeSource = ""
	s.st.UpdatedAt = now
	s.st.LastBakeAt = now
	s.version++
	cp, ver := s.st.Clone(), s.version
	s.mu.Unlock()

	zap.L().Info("state: bake plan applied",
		zap.String("component", "state"),
		zap.Int("items", len(p)),
	)
	s.persist(ctx, cp, ver)
}

// SetCurrentRoast records what is roasting now. The log skips an entry equal
// to the previous one and keeps only the most recent RoastsMax entries.
func (s *Store) SetCurrentRoast(ctx context.Context, item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return ErrEmptyRoast
	}

	s.mu.Lock()
	now := s.now()
	s.resetLocked(now)

	s.st.Date = now.Format(model.DateLayout)
	s.st.CurrentRoast = item
	if n := len(s.st.RoastLog); n == 0 || s.st.RoastLog[n-1] != item {
		s.st.RoastLog = append(s.st.RoastLog, item)
	}
	if over := len(s.st.RoastLog) - s.opts.RoastsMax; over > 0 {
		s.st.RoastLog = slices.Clone(s.st.RoastLog[over:])
	}
	s.st.UpdatedAt = now
	s.st.LastRoastAt = now
	s.version++
	cp, ver := s.st.Clone(), s.version
	s.mu.Unlock()

	s.persist(ctx, cp, ver)
	return nil
}

// Restore seeds the store from a persisted copy. Caps are re-applied; a
// stale day is reset on the next access.
func (s *Store) Restore(st model.DailyState) {
	st = st.Clone()
	if over := len(st.RoastLog) - s.opts.RoastsMax; over > 0 {
		st.RoastLog = st.RoastLog[over:]
	}
	if len(st.BakePlan) > s.opts.PlanMax {
		st.BakePlan = st.BakePlan[:s.opts.PlanMax]
	}

	s.mu.Lock()
	s.st = st
	s.version++
	ver := s.version
	s.mu.Unlock()

	// The restored copy is already persisted.
	s.persistMu.Lock()
	s.saved = max(s.saved, ver)
	s.persistMu.Unlock()
}

func (s *Store) persist(ctx context.Context, st model.DailyState, version uint64) {
	if s.opts.Persister == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.saved {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.opts.Persister.SaveState(ctx, st); err != nil {
		zap.L().Warn("state: persist failed",
			zap.String("component", "state"),
			zap.Uint64("version", version),
			zap.Error(err),
		)
		return
	}
	s.saved = version
}
