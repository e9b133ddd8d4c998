// Package quota tracks the remaining call budget of the metered schedule provider.
//
// The provider is authoritative: every successful call reports used/remaining
// in its response headers and the ledger simply overwrites its copy.
package quota

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"pickupwatch/internal/storage"
	logx "pickupwatch/pkg/logx"
)

// Key is the storage key of the persisted ledger.
const Key = "quota"

const (
	DefaultRemaining  = 500
	DefaultLowWarning = 10
)

type State struct {
	RequestsUsed      int            `json:"requests_used"`
	RequestsRemaining int            `json:"requests_remaining"`
	LastReset         *time.Time     `json:"last_reset"`
	DailyUsage        map[string]int `json:"daily_usage"`
}

type Config struct {
	DefaultRemaining int
	LowWarning       int
	// Location decides which calendar day a call is counted against.
	Location *time.Location
}

type Ledger struct {
	store storage.Store
	log   logx.Logger
	cfg   Config
	now   func() time.Time

	mu    sync.Mutex
	state State
}

func New(store storage.Store, cfg Config, log logx.Logger) *Ledger {
	if cfg.DefaultRemaining <= 0 {
		cfg.DefaultRemaining = DefaultRemaining
	}
	if cfg.LowWarning <= 0 {
		cfg.LowWarning = DefaultLowWarning
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	l := &Ledger{
		store: store,
		log:   log.With(logx.String("comp", "quota")),
		cfg:   cfg,
		now:   time.Now,
	}
	l.state = l.defaults()
	return l
}

func (l *Ledger) defaults() State {
	return State{RequestsRemaining: l.cfg.DefaultRemaining, DailyUsage: map[string]int{}}
}

// Load replaces the in-memory state with the persisted one. Absent or
// unreadable state yields the defaults; neither is an error for the caller.
func (l *Ledger) Load(ctx context.Context) State {
	st := l.defaults()
	err := storage.GetJSON(ctx, l.store, Key, &st)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		st = l.defaults()
	case err != nil:
		l.log.Warn("quota state unreadable; using defaults", logx.Err(err))
		st = l.defaults()
	}
	if st.DailyUsage == nil {
		st.DailyUsage = map[string]int{}
	}

	l.mu.Lock()
	l.state = st
	l.mu.Unlock()
	return l.Status()
}

// MayCall reports whether the metered provider may be called (remaining > 0).
func (l *Ledger) MayCall() bool {
	l.mu.Lock()
	remaining := l.state.RequestsRemaining
	l.mu.Unlock()

	if remaining <= 0 {
		l.log.Warn("no quota remaining")
		return false
	}
	if remaining < l.cfg.LowWarning {
		l.log.Warn("low quota", logx.Int("remaining", remaining))
	}
	return true
}

// RecordCall stores the provider-reported counters after a successful call,
// bumps today's usage and persists. Persistence failures are logged only.
func (l *Ledger) RecordCall(ctx context.Context, used, remaining int) {
	now := l.now()
	today := now.In(l.cfg.Location).Format(time.DateOnly)

	l.mu.Lock()
	l.state.RequestsUsed = used
	l.state.RequestsRemaining = remaining
	l.state.LastReset = &now
	if l.state.DailyUsage == nil {
		l.state.DailyUsage = map[string]int{}
	}
	l.state.DailyUsage[today]++
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.log.Info("quota updated", logx.Int("used", used), logx.Int("remaining", remaining))
	if err := storage.PutJSON(ctx, l.store, Key, snap); err != nil {
		l.log.Warn("quota state not persisted", logx.Err(err))
	}
}

// Status returns a copy of the current state.
func (l *Ledger) Status() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() State {
	st := l.state
	st.DailyUsage = maps.Clone(l.state.DailyUsage)
	if l.state.LastReset != nil {
		t := *l.state.LastReset
		st.LastReset = &t
	}
	return st
}
