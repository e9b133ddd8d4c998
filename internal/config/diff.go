package config

import (
	"reflect"
	"sort"
	"strings"

	logx "pickupwatch/pkg/logx"
)

// SummarizeChange returns the sorted list of changed top-level sections and
// safe structured fields for a reload log line. Secrets are reported only as
// "*_set" booleans.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	fields := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.ActiveHours != newCfg.ActiveHours {
		changed = append(changed, "active_hours")
		ah := newCfg.ActiveHours
		fields = append(fields,
			logx.String("active_hours.start", strings.TrimSpace(ah.StartDay+" "+ah.StartTime)),
			logx.String("active_hours.end", strings.TrimSpace(ah.EndDay+" "+ah.EndTime)),
			logx.String("active_hours.skip", strings.TrimSpace(ah.SkipStart+"-"+ah.SkipEnd)),
		)
	}
	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		fields = append(fields, logx.String("monitor.schedule", newCfg.Monitor.Schedule))
	}
	if oldCfg.Notify.Sink != newCfg.Notify.Sink ||
		oldCfg.Notify.Pace != newCfg.Notify.Pace ||
		oldCfg.Notify.SendTimeout != newCfg.Notify.SendTimeout ||
		oldCfg.Notify.Telegram != newCfg.Notify.Telegram ||
		oldCfg.Notify.Discord != newCfg.Notify.Discord {
		changed = append(changed, "notify")
		fields = append(fields,
			logx.String("notify.sink", newCfg.Notify.Sink),
			logx.Bool("notify.telegram_token_set", newCfg.Notify.Telegram.Token != ""),
			logx.Bool("notify.discord_webhook_set", newCfg.Notify.Discord.WebhookURL != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Cache, newCfg.Cache) {
		changed = append(changed, "cache")
	}
	if oldCfg.Quota != newCfg.Quota {
		changed = append(changed, "quota")
	}
	if oldCfg.MFL != newCfg.MFL || oldCfg.ESPN != newCfg.ESPN || oldCfg.OddsAPI != newCfg.OddsAPI || oldCfg.Providers != newCfg.Providers {
		changed = append(changed, "providers")
		fields = append(fields,
			logx.String("mfl.league_id", newCfg.MFL.LeagueID),
			logx.Bool("odds_api.key_set", newCfg.OddsAPI.APIKey != ""),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Status != newCfg.Status {
		changed = append(changed, "status")
	}

	sort.Strings(changed)
	return changed, fields
}

// LiveSections are the sections a running process applies without restart.
var LiveSections = map[string]bool{
	"logging":      true,
	"active_hours": true,
}
