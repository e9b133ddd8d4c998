package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	logx "pickupwatch/pkg/logx"
)

var validate = validator.New()

// Validate runs struct-tag validation followed by the semantic checks that tags
// cannot express (durations, clocks, weekdays, timezones, sink prerequisites).
// All problems are joined into one error.
func Validate(ctx context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if err := validate.StructCtx(ctx, cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	durations := map[string]string{
		"providers.timeout":    cfg.Providers.Timeout,
		"notify.pace":          cfg.Notify.Pace,
		"notify.send_timeout":  cfg.Notify.SendTimeout,
		"cache.freshness":      cfg.Cache.Freshness,
		"storage.busy_timeout": cfg.Storage.BusyTimeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	ah := cfg.ActiveHours
	for path, raw := range map[string]string{
		"active_hours.start_time":   ah.StartTime,
		"active_hours.end_time":     ah.EndTime,
		"active_hours.skip_start":   ah.SkipStart,
		"active_hours.skip_end":     ah.SkipEnd,
		"cache.placeholder.kickoff": cfg.Cache.Placeholder.Kickoff,
	} {
		if _, err := ParseClockOrDefault(path, raw, 0); err != nil {
			errs = append(errs, err)
		}
	}
	for path, raw := range map[string]string{
		"active_hours.start_day": ah.StartDay,
		"active_hours.end_day":   ah.EndDay,
	} {
		if _, err := ParseWeekdayOrDefault(path, raw, 0); err != nil {
			errs = append(errs, err)
		}
	}
	for path, raw := range map[string]string{
		"active_hours.timezone": ah.Timezone,
		"monitor.timezone":      cfg.Monitor.Timezone,
	} {
		if _, err := LoadLocationOrDefault(path, raw, "UTC"); err != nil {
			errs = append(errs, err)
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch strings.TrimSpace(cfg.Notify.Sink) {
	case "telegram":
		if strings.TrimSpace(cfg.Notify.Telegram.Token) == "" || strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			errs = append(errs, errors.New("notify.telegram: token and chat_id are required for sink=telegram"))
		}
	case "discord":
		if strings.TrimSpace(cfg.Notify.Discord.WebhookURL) == "" {
			errs = append(errs, errors.New("notify.discord.webhook_url is required for sink=discord"))
		}
	}

	switch strings.TrimSpace(cfg.Storage.Driver) {
	case "redis", "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver=%s", cfg.Storage.Driver))
		}
	}

	return errors.Join(errs...)
}

// expandSecrets resolves ${ENV} references in the fields that usually carry
// credentials, so the file itself can be committed.
func expandSecrets(cfg *Config) {
	for _, p := range []*string{
		&cfg.MFL.APIKey,
		&cfg.OddsAPI.APIKey,
		&cfg.Notify.Telegram.Token,
		&cfg.Notify.Telegram.ChatID,
		&cfg.Notify.Discord.WebhookURL,
		&cfg.Storage.DSN,
		&cfg.Status.Token,
	} {
		if strings.Contains(*p, "$") {
			*p = os.ExpandEnv(*p)
		}
	}
}
