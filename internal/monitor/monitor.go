// Package monitor runs one check cycle: active-hours gate, violation
// analysis, then paced delivery of the resulting alerts.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pickupwatch/internal/activehours"
	logx "pickupwatch/pkg/logx"
)

var ErrCycleInProgress = errors.New("monitor: check cycle already in progress")

const (
	DefaultPace        = time.Second
	DefaultSendTimeout = 15 * time.Second

	diagnosticPrefix = "❌ Error in transaction analysis: "
)

type Analyzer interface {
	Analyze(ctx context.Context) ([]string, error)
}

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type Config struct {
	Window      activehours.Window
	Pace        time.Duration // minimum gap between sends; negative disables pacing
	SendTimeout time.Duration
}

// Report summarizes one RunCheck call.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Forced     bool      `json:"forced"`
	Skipped    bool      `json:"skipped"`
	Alerts     int       `json:"alerts"`
	Delivered  int       `json:"delivered"`
	Failed     int       `json:"failed"`
	Err        string    `json:"error,omitempty"`
}

type Monitor struct {
	analyzer Analyzer
	notifier Notifier
	log      logx.Logger
	now      func() time.Time

	// run serializes cycles; a second caller gets ErrCycleInProgress.
	run sync.Mutex

	mu      sync.RWMutex
	cfg     Config
	last    Report
	hasLast bool
}

func New(analyzer Analyzer, notifier Notifier, cfg Config, log logx.Logger) *Monitor {
	if cfg.Pace == 0 {
		cfg.Pace = DefaultPace
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Monitor{
		analyzer: analyzer,
		notifier: notifier,
		cfg:      cfg,
		log:      log.With(logx.String("comp", "monitor")),
		now:      time.Now,
	}
}

// SetWindow swaps the active-hours window for subsequent cycles.
func (m *Monitor) SetWindow(w activehours.Window) {
	m.mu.Lock()
	m.cfg.Window = w
	m.mu.Unlock()
}

func (m *Monitor) Window() activehours.Window {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Window
}

// Last returns the report of the most recent finished cycle.
func (m *Monitor) Last() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.hasLast
}

// RunCheck runs one cycle. force bypasses the active-hours gate. A batch
// failure is reported to the sink as a diagnostic and returned.
func (m *Monitor) RunCheck(ctx context.Context, force bool) (r Report, err error) {
	if !m.run.TryLock() {
		m.log.Info("check skipped; previous cycle still running")
		return Report{}, ErrCycleInProgress
	}
	defer m.run.Unlock()

	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()

	r = Report{StartedAt: m.now(), Forced: force}
	defer m.finish(&r)

	if !force && !cfg.Window.Allow(r.StartedAt) {
		r.Skipped = true
		m.log.Debug("outside active hours; not checking")
		return r, nil
	}

	alerts, err := m.analyzer.Analyze(ctx)
	if err != nil {
		r.Err = err.Error()
		m.log.Error("transaction analysis failed", logx.Err(err))
		if serr := m.send(ctx, cfg, diagnosticPrefix+err.Error()); serr != nil {
			r.Failed++
		}
		return r, err
	}
	r.Alerts = len(alerts)
	if len(alerts) == 0 {
		m.log.Info("no late pickups")
		return r, nil
	}

	limit := rate.Every(cfg.Pace)
	if cfg.Pace < 0 {
		limit = rate.Inf
	}
	lim := rate.NewLimiter(limit, 1)
	for i, text := range alerts {
		if err := lim.Wait(ctx); err != nil {
			m.log.Warn("dispatch interrupted", logx.Int("unsent", len(alerts)-i), logx.Err(err))
			break
		}
		if err := m.send(ctx, cfg, text); err != nil {
			r.Failed++
			continue
		}
		r.Delivered++
	}
	m.log.Info("alerts dispatched",
		logx.Int("alerts", r.Alerts),
		logx.Int("delivered", r.Delivered),
		logx.Int("failed", r.Failed),
	)
	return r, nil
}

// send runs detached from ctx cancellation so an in-flight alert is not cut
// off by shutdown; SendTimeout still bounds it.
func (m *Monitor) send(ctx context.Context, cfg Config, text string) error {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.SendTimeout)
	defer cancel()
	if err := m.notifier.Send(sctx, text); err != nil {
		m.log.Warn("alert not delivered", logx.Err(err))
		return err
	}
	return nil
}

func (m *Monitor) finish(r *Report) {
	r.FinishedAt = m.now()
	m.mu.Lock()
	m.last = *r
	m.hasLast = true
	m.mu.Unlock()
}
