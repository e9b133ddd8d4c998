// Package detector finds roster additions made after the added player's game
// had already started and renders one alert line per violation.
package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pickupwatch/internal/storage"
	logx "pickupwatch/pkg/logx"
)

// WatermarkKey is the storage key of the persisted watermark.
const WatermarkKey = "watermark"

// DefaultLookback is how far back the first run looks when no watermark exists.
const DefaultLookback = 24 * time.Hour

// Source is the fantasy league backend.
type Source interface {
	Transactions(ctx context.Context, since time.Time) ([]Transaction, error)
	Players(ctx context.Context) (map[string]Player, error)
	Franchises(ctx context.Context) (map[string]Franchise, error)
}

// Schedule resolves team code to game start for the active week.
type Schedule interface {
	GetGameTimes(ctx context.Context) (map[string]time.Time, error)
}

// Watermark is the persisted progress marker.
type Watermark struct {
	LastRunTime time.Time `json:"last_run_time"`
}

type Config struct {
	Location *time.Location // alert rendering; America/New_York when nil
	Lookback time.Duration
}

type Detector struct {
	source   Source
	schedule Schedule
	store    storage.Store
	loc      *time.Location
	lookback time.Duration
	log      logx.Logger
	now      func() time.Time

	mu sync.Mutex
}

func New(source Source, schedule Schedule, store storage.Store, cfg Config, log logx.Logger) *Detector {
	loc := cfg.Location
	if loc == nil {
		if ny, err := time.LoadLocation("America/New_York"); err == nil {
			loc = ny
		} else {
			loc = time.UTC
		}
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Detector{
		source:   source,
		schedule: schedule,
		store:    store,
		loc:      loc,
		lookback: cfg.Lookback,
		log:      log.With(logx.String("comp", "detector")),
		now:      time.Now,
	}
}

// Analyze checks every transaction newer than the watermark and returns the
// alerts in transaction order. A failed batch fetch returns an error and
// leaves the watermark where it was.
func (d *Detector) Analyze(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	since, ok := d.loadWatermark(ctx)
	if !ok {
		since = now.Add(-d.lookback)
	}
	log := d.log.With(logx.Time("since", since))

	txs, err := d.source.Transactions(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	players, err := d.source.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch players: %w", err)
	}
	franchises, err := d.source.Franchises(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch franchises: %w", err)
	}
	gameTimes, err := d.schedule.GetGameTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch game times: %w", err)
	}
	if len(gameTimes) == 0 {
		log.Warn("no game times for the active week; nothing can be flagged")
	}

	var alerts []string
	checked := 0
	for _, tx := range txs {
		if !tx.OccurredAt.After(since) {
			continue
		}
		checked++
		alert, ok := d.check(tx, players, franchises, gameTimes, log)
		if ok {
			alerts = append(alerts, alert)
		}
	}
	log.Info("transactions analyzed",
		logx.Int("fetched", len(txs)),
		logx.Int("checked", checked),
		logx.Int("violations", len(alerts)),
	)

	// A watermark in the future is kept.
	if now.After(since) {
		if err := storage.PutJSON(ctx, d.store, WatermarkKey, Watermark{LastRunTime: now}); err != nil {
			log.Warn("watermark not saved", logx.Err(err))
		}
	}
	return alerts, nil
}

func (d *Detector) check(tx Transaction, players map[string]Player, franchises map[string]Franchise, gameTimes map[string]time.Time, log logx.Logger) (string, bool) {
	if !tx.Kind.IsAdd() {
		return "", false
	}
	log = log.With(logx.String("tx", tx.ID))
	ids, ok := AddedPlayers(tx.Payload)
	if !ok {
		log.Debug("payload without added player; skipped", logx.String("payload", tx.Payload))
		return "", false
	}
	p, ok := players[ids[0]]
	if !ok {
		log.Debug("added player unknown; skipped", logx.String("player", ids[0]))
		return "", false
	}
	start, ok := gameTimes[p.Team]
	if !ok {
		return "", false
	}
	if !tx.OccurredAt.After(start) {
		return "", false
	}
	log.Info("late pickup",
		logx.String("player", p.ID),
		logx.String("team", p.Team),
		logx.Time("picked_up", tx.OccurredAt),
		logx.Time("game_start", start),
	)
	return d.Render(tx, p, franchises[tx.ActorID], start), true
}

const alertTime = "1/2 3:04 PM MST"

// Render formats one violation:
//
//	🚨 **Saquon Barkley (RB, PHI)** picked up by **Team A (Alice)**
//	⏰ 9/4 9:20 PM EDT | Game started: 9/4 8:20 PM EDT
func (d *Detector) Render(tx Transaction, p Player, f Franchise, gameStart time.Time) string {
	pos := orDefault(p.Position, "Unknown")
	team := orDefault(p.Team, "Unknown")
	name := orDefault(f.Name, "Unknown Team")
	owner := orDefault(f.OwnerName, "Unknown Owner")

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 **%s (%s, %s)** picked up by **%s (%s)**\n", p.DisplayName(), pos, team, name, owner)
	fmt.Fprintf(&b, "⏰ %s", tx.OccurredAt.In(d.loc).Format(alertTime))
	if !gameStart.IsZero() {
		fmt.Fprintf(&b, " | Game started: %s", gameStart.In(d.loc).Format(alertTime))
	}
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Watermark returns the persisted watermark, if any.
func (d *Detector) Watermark(ctx context.Context) (time.Time, bool) {
	return d.loadWatermark(ctx)
}

// SetWatermark overwrites the watermark. Unlike Analyze it may move it back,
// which makes the next run re-check older transactions.
func (d *Detector) SetWatermark(ctx context.Context, t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := storage.PutJSON(ctx, d.store, WatermarkKey, Watermark{LastRunTime: t}); err != nil {
		return fmt.Errorf("save watermark: %w", err)
	}
	d.log.Info("watermark set", logx.Time("last_run_time", t))
	return nil
}

func (d *Detector) loadWatermark(ctx context.Context) (time.Time, bool) {
	var w Watermark
	err := storage.GetJSON(ctx, d.store, WatermarkKey, &w)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return time.Time{}, false
	case err != nil:
		d.log.Warn("watermark unreadable; using default lookback", logx.Err(err))
		return time.Time{}, false
	case w.LastRunTime.IsZero():
		return time.Time{}, false
	}
	return w.LastRunTime, true
}
