package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pickupwatch/internal/activehours"
	"pickupwatch/internal/config"
	"pickupwatch/internal/gamecache"
	"pickupwatch/internal/monitor"
	"pickupwatch/internal/notifier"
	"pickupwatch/internal/storage"
	kit "pickupwatch/internal/transport"
	"pickupwatch/internal/transport/telegram"
	logx "pickupwatch/pkg/logx"
)

const (
	defaultSchedule = "@every 5m"
	defaultTimezone = "America/New_York"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func minutes(m int) time.Duration { return time.Duration(m) * time.Minute }

// mapWindow builds the active-hours window; empty fields keep the defaults.
func mapWindow(cfg *config.Config) (activehours.Window, error) {
	def := activehours.DefaultWindow()
	ah := cfg.ActiveHours

	startDay, err := config.ParseWeekdayOrDefault("active_hours.start_day", ah.StartDay, def.StartDay)
	if err != nil {
		return def, err
	}
	endDay, err := config.ParseWeekdayOrDefault("active_hours.end_day", ah.EndDay, def.EndDay)
	if err != nil {
		return def, err
	}
	clocks := []struct {
		path string
		raw  string
		dst  *time.Duration
	}{
		{"active_hours.start_time", ah.StartTime, &def.StartTime},
		{"active_hours.end_time", ah.EndTime, &def.EndTime},
		{"active_hours.skip_start", ah.SkipStart, &def.SkipStart},
		{"active_hours.skip_end", ah.SkipEnd, &def.SkipEnd},
	}
	for _, c := range clocks {
		m, err := config.ParseClockOrDefault(c.path, c.raw, int(*c.dst/time.Minute))
		if err != nil {
			return def, err
		}
		*c.dst = minutes(m)
	}
	loc, err := config.LoadLocationOrDefault("active_hours.timezone", ah.Timezone, defaultTimezone)
	if err != nil {
		return def, err
	}
	def.StartDay, def.EndDay, def.Location = startDay, endDay, loc
	return def, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		if path == "" {
			path = "./data"
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite":
		if path == "" {
			path = "./data/pickupwatch.db"
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "redis", "postgres":
		prefix := sc.Prefix
		if prefix == "" {
			prefix = "pickupwatch"
			if driver == "redis" {
				prefix += ":"
			}
		}
		return storage.Config{Driver: driver, DSN: strings.TrimSpace(sc.DSN), Prefix: prefix}, nil
	case "memory":
		return storage.Config{Driver: driver}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapCacheConfig(cfg *config.Config, w activehours.Window) (gamecache.Config, error) {
	fresh, err := config.ParseDurationOrDefault("cache.freshness", cfg.Cache.Freshness, gamecache.DefaultFreshness)
	if err != nil {
		return gamecache.Config{}, err
	}
	ph := gamecache.DefaultPlaceholder()
	pc := cfg.Cache.Placeholder
	if pc.Enabled != nil {
		ph.Enabled = *pc.Enabled
	}
	if t := strings.ToUpper(strings.TrimSpace(pc.Team)); t != "" {
		ph.Team = t
	}
	kick, err := config.ParseClockOrDefault("cache.placeholder.kickoff", pc.Kickoff, int(ph.Kickoff/time.Minute))
	if err != nil {
		return gamecache.Config{}, err
	}
	ph.Kickoff = minutes(kick)
	return gamecache.Config{
		Window:      w,
		Freshness:   fresh,
		DaysBack:    cfg.OddsAPI.DaysBack,
		DaysAhead:   cfg.OddsAPI.DaysAhead,
		Placeholder: ph,
	}, nil
}

func mapMonitorConfig(cfg *config.Config, w activehours.Window) (monitor.Config, error) {
	pace, err := config.ParseDurationOrDefault("notify.pace", cfg.Notify.Pace, monitor.DefaultPace)
	if err != nil {
		return monitor.Config{}, err
	}
	timeout, err := config.ParseDurationOrDefault("notify.send_timeout", cfg.Notify.SendTimeout, monitor.DefaultSendTimeout)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{Window: w, Pace: pace, SendTimeout: timeout}, nil
}

func scheduleOf(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Monitor.Schedule); s != "" {
		return s
	}
	return defaultSchedule
}

// schedulerTimezone falls back to the active-hours zone so "HH:MM" schedules
// read the same way as the polling window.
func schedulerTimezone(cfg *config.Config) string {
	if tz := strings.TrimSpace(cfg.Monitor.Timezone); tz != "" {
		return tz
	}
	if tz := strings.TrimSpace(cfg.ActiveHours.Timezone); tz != "" {
		return tz
	}
	return defaultTimezone
}

// buildSink picks the alert destination. An empty sink name means "log".
func buildSink(cfg *config.Config, log logx.Logger) (notifier.Sink, error) {
	timeout, err := config.ParseDurationOrDefault("notify.send_timeout", cfg.Notify.SendTimeout, monitor.DefaultSendTimeout)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Notify.Sink)) {
	case "", "log":
		return notifier.NewLogSink(log), nil
	case "telegram":
		tc := cfg.Notify.Telegram
		chatID, err := strconv.ParseInt(strings.TrimSpace(tc.ChatID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("notify.telegram.chat_id: %w", err)
		}
		ad, err := telegram.New(telegram.Config{Token: tc.Token, HTTPTimeout: timeout}, log)
		if err != nil {
			return nil, fmt.Errorf("notify.telegram: %w", err)
		}
		return notifier.NewChatSink("telegram", ad, kit.ChatTarget{ChatID: chatID, ThreadID: tc.ThreadID}), nil
	case "discord":
		return notifier.NewDiscordSink(cfg.Notify.Discord.WebhookURL, &http.Client{Timeout: timeout})
	default:
		return nil, fmt.Errorf("unknown notify.sink: %s", cfg.Notify.Sink)
	}
}
