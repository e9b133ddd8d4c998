// Package gamecache resolves each NFL team's game start time for the current
// active week.
//
// Lookups are served from a persisted entry while it is fresh and belongs to
// the current week. Otherwise the unmetered primary provider is asked first and
// the metered secondary provider only when the primary fails or has no game in
// the week and the quota ledger allows it.
package gamecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"pickupwatch/internal/activehours"
	"pickupwatch/internal/provider"
	"pickupwatch/internal/storage"
	logx "pickupwatch/pkg/logx"
)

// Key is the storage key of the persisted entry.
const Key = "game_times"

const (
	DefaultFreshness = 6 * time.Hour
	DefaultDaysBack  = 7
	DefaultDaysAhead = 5
)

// GameTimes maps an MFL team code to its game start.
type GameTimes = map[string]time.Time

type Primary interface {
	CurrentWeekGames(ctx context.Context) ([]provider.Game, error)
}

type Secondary interface {
	Games(ctx context.Context, daysBack, daysAhead int) ([]provider.Game, provider.Quota, error)
}

// Ledger is the part of quota.Ledger the cache needs.
type Ledger interface {
	MayCall() bool
	RecordCall(ctx context.Context, used, remaining int)
}

// Entry is the persisted document.
type Entry struct {
	GameTimes GameTimes `json:"game_times"`
	CachedAt  time.Time `json:"cached_at"`
	WeekRange string    `json:"week_range"`
}

type Config struct {
	Window      activehours.Window
	Freshness   time.Duration
	DaysBack    int
	DaysAhead   int
	Placeholder Placeholder
}

type Cache struct {
	store     storage.Store
	primary   Primary
	secondary Secondary
	ledger    Ledger
	log       logx.Logger
	now       func() time.Time

	mu  sync.RWMutex
	cfg Config
}

// New builds a cache. secondary and ledger may be nil, which disables the fallback.
func New(store storage.Store, primary Primary, secondary Secondary, ledger Ledger, cfg Config, log logx.Logger) *Cache {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = DefaultDaysBack
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = DefaultDaysAhead
	}
	return &Cache{
		store:     store,
		primary:   primary,
		secondary: secondary,
		ledger:    ledger,
		cfg:       cfg,
		log:       log.With(logx.String("comp", "gamecache")),
		now:       time.Now,
	}
}

// SetWindow swaps the active-hours window used for week bounds.
func (c *Cache) SetWindow(w activehours.Window) {
	c.mu.Lock()
	c.cfg.Window = w
	c.mu.Unlock()
}

func (c *Cache) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// GetGameTimes returns the current week's start times. Provider failures are
// absorbed: with nothing usable the result is an empty map and a nil error.
// The only error is ctx's.
func (c *Cache) GetGameTimes(ctx context.Context) (GameTimes, error) {
	cfg := c.config()
	now := c.now()
	start, end := cfg.Window.Bounds(now)
	week := activehours.WeekIdentity(start, end)
	log := c.log.With(logx.String("week", week))

	if e, ok := c.load(ctx); ok && e.WeekRange == week && len(e.GameTimes) > 0 {
		age := now.Sub(e.CachedAt)
		if age >= 0 && age < cfg.Freshness {
			log.Debug("using cached game times", logx.Duration("age", age), logx.Int("teams", len(e.GameTimes)))
			return e.GameTimes, nil
		}
	}
	log.Debug("cache stale or for another week; fetching")

	gt, startDayGame := c.fetch(ctx, cfg, start, end, log)
	if err := ctx.Err(); err != nil {
		return GameTimes{}, err
	}
	if len(gt) == 0 {
		log.Warn("no game times available this cycle")
		return GameTimes{}, nil
	}
	if !startDayGame {
		if team, at, ok := cfg.Placeholder.apply(gt, start); ok {
			log.Warn("no start-day game from provider; added placeholder",
				logx.String("team", team),
				logx.Time("kickoff", at),
			)
		}
	}

	if err := storage.PutJSON(ctx, c.store, Key, Entry{GameTimes: gt, CachedAt: now, WeekRange: week}); err != nil {
		log.Warn("game times not cached", logx.Err(err))
	} else {
		log.Info("cached game times", logx.Int("teams", len(gt)))
	}
	return gt, nil
}

// fetch returns the first provider result with at least one game inside the
// week, and whether any of those games is on the start day.
func (c *Cache) fetch(ctx context.Context, cfg Config, start, end time.Time, log logx.Logger) (GameTimes, bool) {
	if c.primary != nil {
		games, err := c.primary.CurrentWeekGames(ctx)
		switch {
		case err != nil:
			log.Warn("primary schedule provider failed", logx.Err(err), logx.Bool("transient", provider.IsTransient(err)))
		default:
			if gt, startDay := build(games, start, end); len(gt) > 0 {
				log.Debug("using primary schedule provider")
				return gt, startDay
			}
			log.Warn("primary schedule provider returned no games this week", logx.Int("games", len(games)))
		}
	}

	if c.secondary == nil || c.ledger == nil {
		return nil, false
	}
	if !c.ledger.MayCall() {
		return nil, false
	}
	games, quota, err := c.secondary.Games(ctx, cfg.DaysBack, cfg.DaysAhead)
	if err != nil {
		log.Warn("secondary schedule provider failed", logx.Err(err), logx.Bool("transient", provider.IsTransient(err)))
		return nil, false
	}
	if quota.OK {
		c.ledger.RecordCall(ctx, quota.Used, quota.Remaining)
	} else {
		log.Warn("secondary schedule provider sent no quota headers")
	}
	log.Debug("using secondary schedule provider")
	return build(games, start, end)
}

// build keeps games starting inside [start, end] and maps both teams to the
// start time. startDay reports whether any kept game is on the start day.
func build(games []provider.Game, start, end time.Time) (gt GameTimes, startDay bool) {
	gt = GameTimes{}
	for _, g := range games {
		if g.Start.Before(start) || g.Start.After(end) {
			continue
		}
		if sameDay(g.Start, start) {
			startDay = true
		}
		for _, team := range []string{g.Home, g.Away} {
			if team == "" {
				continue
			}
			if prev, ok := gt[team]; !ok || g.Start.Before(prev) {
				gt[team] = g.Start
			}
		}
	}
	return gt, startDay
}

func sameDay(t, day time.Time) bool {
	ty, tm, td := t.In(day.Location()).Date()
	dy, dm, dd := day.Date()
	return ty == dy && tm == dm && td == dd
}

// Clear drops the persisted entry so the next lookup fetches.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Delete(ctx, Key); err != nil {
		return err
	}
	c.log.Info("game time cache cleared")
	return nil
}

// Peek returns the persisted entry, if any, without touching providers.
func (c *Cache) Peek(ctx context.Context) (Entry, bool) {
	return c.load(ctx)
}

func (c *Cache) load(ctx context.Context) (Entry, bool) {
	var e Entry
	err := storage.GetJSON(ctx, c.store, Key, &e)
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, false
	}
	if err != nil {
		c.log.Warn("cached game times unreadable; ignoring", logx.Err(err))
		return Entry{}, false
	}
	return e, true
}
