// Package app builds every pickupwatch component from one config file and
// runs them in the CLI modes: single check, daemon, self-test and the
// maintenance commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pickupwatch/internal/config"
	"pickupwatch/internal/detector"
	"pickupwatch/internal/gamecache"
	"pickupwatch/internal/monitor"
	"pickupwatch/internal/notifier"
	"pickupwatch/internal/provider"
	"pickupwatch/internal/provider/espn"
	"pickupwatch/internal/provider/mfl"
	"pickupwatch/internal/provider/oddsapi"
	"pickupwatch/internal/quota"
	"pickupwatch/internal/runtime/supervisor"
	"pickupwatch/internal/status"
	"pickupwatch/internal/storage"
	"pickupwatch/internal/task/scheduler"
	logx "pickupwatch/pkg/logx"
)

const (
	checkJobName = "monitor.check"
	// checkTimeout bounds analysis in one scheduled cycle. Alert sends that
	// already started are not cut short by it.
	checkTimeout = 4 * time.Minute

	defaultProviderTimeout = 30 * time.Second
	testMessage            = "🧪 Test message from pickupwatch"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store  storage.Store
	ledger *quota.Ledger
	mfl    *mfl.Client
	espn   *espn.Client
	odds   *oddsapi.Client
	cache  *gamecache.Cache
	det    *detector.Detector
	notif  *notifier.Service
	mon    *monitor.Monitor
	sched  *scheduler.Service
	status *status.Server

	sup *supervisor.Supervisor
}

// New loads and validates the config file and builds every component.
// Nothing talks to the network until a mode method is called.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfgm.SetValidator(validateConfig)
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	logs, log := logx.NewService(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgm: cfgm, logs: logs, log: log}
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// validateConfig is used at startup and for every hot reload.
func validateConfig(ctx context.Context, cfg *config.Config) error {
	err := config.Validate(ctx, cfg)
	if cfg == nil {
		return err
	}
	if serr := scheduler.ValidateSchedule(scheduleOf(cfg)); serr != nil {
		err = errors.Join(err, fmt.Errorf("monitor.schedule: %w", serr))
	}
	return err
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	log := a.log

	window, err := mapWindow(cfg)
	if err != nil {
		return err
	}
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	store, err := storage.Open(ctx, sc, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	timeout, err := config.ParseDurationOrDefault("providers.timeout", cfg.Providers.Timeout, defaultProviderTimeout)
	if err != nil {
		return err
	}
	hc := provider.NewClient(provider.ClientConfig{
		Timeout: timeout,
		Secrets: []string{cfg.MFL.APIKey, cfg.OddsAPI.APIKey},
	}, log.With(logx.String("comp", "http")))

	a.mfl = mfl.New(mfl.Config{
		BaseURL:  cfg.MFL.BaseURL,
		LeagueID: cfg.MFL.LeagueID,
		APIKey:   cfg.MFL.APIKey,
		Year:     cfg.MFL.Year,
	}, hc, log)
	a.espn = espn.New(cfg.ESPN.ScoreboardURL, hc, log)
	a.odds = oddsapi.New(cfg.OddsAPI.BaseURL, cfg.OddsAPI.APIKey, hc, log)

	a.ledger = quota.New(store, quota.Config{
		DefaultRemaining: cfg.Quota.DefaultRemaining,
		LowWarning:       cfg.Quota.LowWarning,
		Location:         window.Location,
	}, log)
	a.ledger.Load(ctx)

	cc, err := mapCacheConfig(cfg, window)
	if err != nil {
		return err
	}
	// Without an API key the metered fallback is off entirely.
	var (
		secondary gamecache.Secondary
		ledger    gamecache.Ledger
	)
	if a.odds.Enabled() {
		secondary, ledger = a.odds, a.ledger
	}
	a.cache = gamecache.New(store, a.espn, secondary, ledger, cc, log)
	a.det = detector.New(a.mfl, a.cache, store, detector.Config{}, log)

	sink, err := buildSink(cfg, log)
	if err != nil {
		return err
	}
	a.notif = notifier.New(sink, log)

	mc, err := mapMonitorConfig(cfg, window)
	if err != nil {
		return err
	}
	a.mon = monitor.New(a.det, a.notif, mc, log)
	a.sched = scheduler.New(scheduler.Config{Timezone: schedulerTimezone(cfg)}, log)

	log.Debug("components built",
		logx.String("storage", sc.Driver),
		logx.String("sink", sink.Name()),
		logx.Bool("odds_fallback", a.odds.Enabled()),
		logx.Bool("status", cfg.Status.Enabled),
	)
	return nil
}

// Close releases storage and log outputs. Stop calls it in daemon mode.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

func (a *App) Logger() logx.Logger { return a.log }

// RunOnce runs a single check cycle. force bypasses the active-hours gate.
func (a *App) RunOnce(ctx context.Context, force bool) (monitor.Report, error) {
	return a.mon.RunCheck(ctx, force)
}

// QuotaReport returns the metered provider's ledger as last persisted.
func (a *App) QuotaReport() quota.State {
	return a.ledger.Status()
}

// SetLastRun overrides the detector watermark. raw is "now", a duration
// meaning that long ago ("24h"), RFC 3339, or "2006-01-02 15:04:05" in UTC.
func (a *App) SetLastRun(ctx context.Context, raw string) (time.Time, error) {
	t, err := parseLastRun(raw, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if err := a.det.SetWatermark(ctx, t); err != nil {
		return time.Time{}, err
	}
	a.log.Info("watermark set", logx.Time("last_run_time", t))
	return t, nil
}

func parseLastRun(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return time.Time{}, errors.New("last run time is empty")
	case strings.EqualFold(s, "now"):
		return now.UTC(), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative duration %q", raw)
		}
		return now.Add(-d).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(time.DateTime, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid last run time %q (want now, a duration, RFC 3339 or %q)", raw, time.DateTime)
}

// CheckResult is one line of the self-test.
type CheckResult struct {
	Name   string
	Detail string
	Err    error
}

// SelfTest checks every external dependency once: MFL, ESPN, the Odds API
// when configured, and the alert sink, which receives a test message.
// ok is false when any check failed.
func (a *App) SelfTest(ctx context.Context) (results []CheckResult, ok bool) {
	results = append(results, CheckResult{Name: "config", Detail: a.cfgm.Path()})

	r := CheckResult{Name: "mfl"}
	if fr, err := a.mfl.Franchises(ctx); err != nil {
		r.Err = err
	} else {
		r.Detail = fmt.Sprintf("%d franchises", len(fr))
	}
	results = append(results, r)

	r = CheckResult{Name: "espn"}
	if games, err := a.espn.CurrentWeekGames(ctx); err != nil {
		r.Err = err
	} else {
		r.Detail = fmt.Sprintf("%d games this week", len(games))
	}
	results = append(results, r)

	r = CheckResult{Name: "odds_api"}
	if !a.odds.Enabled() {
		r.Detail = "disabled (no api key)"
	} else if q, err := a.odds.Ping(ctx); err != nil {
		r.Err = err
	} else {
		if q.OK {
			a.ledger.RecordCall(ctx, q.Used, q.Remaining)
		}
		r.Detail = fmt.Sprintf("%d requests remaining", a.ledger.Status().RequestsRemaining)
	}
	results = append(results, r)

	r = CheckResult{Name: "sink", Detail: a.notif.SinkName()}
	r.Err = a.notif.Send(ctx, testMessage)
	results = append(results, r)

	ok = true
	for _, res := range results {
		if res.Err != nil {
			ok = false
			a.log.Error("self-test failed", logx.String("check", res.Name), logx.Err(res.Err))
		} else {
			a.log.Info("self-test passed", logx.String("check", res.Name), logx.String("detail", res.Detail))
		}
	}
	return results, ok
}

// Done is closed when the daemon supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the daemon: scheduled checks, config hot reload, the optional
// status server and the systemd watchdog.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	if err := a.addCheckSchedule(scheduleOf(cfg)); err != nil {
		a.sup.Cancel()
		return err
	}
	a.sched.Start(a.sup.Context())

	// First check right away instead of one interval after startup.
	a.sup.Go("monitor.startup", func(c context.Context) error {
		a.check(c)
		return nil
	})

	if cfg.Status.Enabled {
		a.status = status.New(status.Config{
			Addr:  cfg.Status.Addr,
			Token: cfg.Status.Token,
			Pprof: cfg.Status.Pprof,
		}, status.Sources{
			Monitor:    a.mon,
			Quota:      a.ledger,
			Cache:      a.cache,
			Notifier:   a.notif,
			Watermark:  a.det,
			Scheduler:  a.sched,
			Supervisor: a.sup,
		}, a.log)
		a.sup.GoRestart("status.http", a.status.Run, supervisor.WithRestartBackoff(time.Second, time.Minute))
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
		return nil
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return watchdogLoop(c, a.log, func() bool { return a.sup.Context().Err() == nil })
	})

	sdNotify(a.log, daemon.SdNotifyReady)
	a.log.Info("daemon started", logx.String("schedule", scheduleOf(cfg)), logx.String("sink", a.notif.SinkName()))
	return nil
}

func (a *App) addCheckSchedule(schedule string) error {
	err := a.sched.AddSchedule(checkJobName, schedule, checkTimeout, scheduler.OverlapSkipIfRunning, func(c context.Context) error {
		a.check(c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("monitor.schedule: %w", err)
	}
	return nil
}

// check runs one gated cycle. The monitor already logs failures and sends
// analysis errors to the sink, so they do not fail the job.
func (a *App) check(ctx context.Context) {
	if _, err := a.mon.RunCheck(ctx, false); err != nil && !errors.Is(err, monitor.ErrCycleInProgress) {
		a.log.Debug("check ended with error", logx.Err(err))
	}
}

// reloadLoop applies the hot-reloadable sections: logging, active hours and
// the check schedule.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// restartOnly lists sections whose components are built once at startup.
var restartOnly = map[string]bool{
	"providers": true,
	"notify":    true,
	"quota":     true,
	"cache":     true,
	"storage":   true,
	"status":    true,
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if restartOnly[s] {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}

	a.logs.Apply(mapLogConfig(newCfg))

	if w, err := mapWindow(newCfg); err != nil {
		a.log.Warn("invalid active_hours; keeping previous", logx.Err(err))
	} else {
		a.mon.SetWindow(w)
		a.cache.SetWindow(w)
	}

	a.sched.Apply(scheduler.Config{Timezone: schedulerTimezone(newCfg)})
	if scheduleOf(oldCfg) != scheduleOf(newCfg) {
		if err := a.addCheckSchedule(scheduleOf(newCfg)); err != nil {
			a.log.Warn("invalid monitor.schedule; keeping previous", logx.Err(err))
			if err := a.addCheckSchedule(scheduleOf(oldCfg)); err != nil {
				a.log.Error("previous schedule could not be restored", logx.Err(err))
			}
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts the daemon down in order. Each step has its own upper bound so
// one component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.Close()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sdNotify(a.log, daemon.SdNotifyStopping)

	// No new cycle may start while the rest unwinds.
	step(ctx, a.log, "scheduler", 20*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })

	a.sup.Cancel()
	step(ctx, a.log, "supervisor", 20*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	a.Close()
	return nil
}

// step runs one shutdown step bounded by max and by the caller's deadline.
func step(ctx context.Context, log logx.Logger, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		// fn must honor stepCtx; report if it finishes late.
		log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			if err := <-done; err != nil {
				log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
			}
		}()
	}
}
