package config

// Config is the whole pickupwatch configuration file.
//
// Durations are Go duration strings ("30s", "6h"). Clock values are "HH:MM".
// Secret-bearing fields accept ${ENV} references; see expandSecrets.
type Config struct {
	MFL         MFLConfig         `json:"mfl"`
	ESPN        ESPNConfig        `json:"espn"`
	OddsAPI     OddsAPIConfig     `json:"odds_api"`
	Providers   ProvidersConfig   `json:"providers"`
	Notify      NotifyConfig      `json:"notify"`
	ActiveHours ActiveHoursConfig `json:"active_hours"`
	Cache       CacheConfig       `json:"cache"`
	Quota       QuotaConfig       `json:"quota"`
	Monitor     MonitorConfig     `json:"monitor"`
	Storage     StorageConfig     `json:"storage"`
	Logging     LoggingConfig     `json:"logging"`
	Status      StatusConfig      `json:"status"`
}

// MFLConfig points at a single MyFantasyLeague league.
//
// Year defaults to the current calendar year when omitted.
type MFLConfig struct {
	BaseURL  string `json:"base_url,omitempty" validate:"omitempty,url"`
	LeagueID string `json:"league_id" validate:"required"`
	APIKey   string `json:"api_key,omitempty"`
	Year     int    `json:"year,omitempty" validate:"omitempty,min=2000,max=2100"`
}

type ESPNConfig struct {
	ScoreboardURL string `json:"scoreboard_url,omitempty" validate:"omitempty,url"`
}

// OddsAPIConfig configures the metered fallback schedule provider.
// An empty api_key disables the fallback entirely.
type OddsAPIConfig struct {
	BaseURL   string `json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey    string `json:"api_key,omitempty"`
	DaysBack  int    `json:"days_back,omitempty" validate:"omitempty,min=0,max=30"`
	DaysAhead int    `json:"days_ahead,omitempty" validate:"omitempty,min=0,max=30"`
}

type ProvidersConfig struct {
	// Timeout bounds every outbound provider call. Default "30s".
	Timeout string `json:"timeout,omitempty"`
}

// NotifyConfig selects where alerts go.
//
// Example:
//
//	"notify": { "sink": "telegram", "telegram": { "token": "${TELEGRAM_TOKEN}", "chat_id": "-100123" } }
type NotifyConfig struct {
	Sink        string         `json:"sink,omitempty" validate:"omitempty,oneof=telegram discord log"`
	Telegram    TelegramConfig `json:"telegram"`
	Discord     DiscordConfig  `json:"discord"`
	Pace        string         `json:"pace,omitempty"`         // default "1s"
	SendTimeout string         `json:"send_timeout,omitempty"` // default "15s"
}

type TelegramConfig struct {
	Token    string `json:"token,omitempty"`
	ChatID   string `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

type DiscordConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"`
}

// ActiveHoursConfig is the polling window in the configured timezone.
// Empty fields take the defaults Thursday 20:00 to Monday 22:00, skip 00:00-09:00,
// America/New_York.
type ActiveHoursConfig struct {
	StartDay  string `json:"start_day,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndDay    string `json:"end_day,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	SkipStart string `json:"skip_start,omitempty"`
	SkipEnd   string `json:"skip_end,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

type CacheConfig struct {
	Freshness   string            `json:"freshness,omitempty"` // default "6h"
	Placeholder PlaceholderConfig `json:"placeholder"`
}

// PlaceholderConfig controls the synthetic start-day game added when no
// provider reports one. Enabled is a pointer so omission keeps the default (on).
type PlaceholderConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Team    string `json:"team,omitempty"`    // default "PHI"
	Kickoff string `json:"kickoff,omitempty"` // default "20:00"
}

type QuotaConfig struct {
	DefaultRemaining int `json:"default_remaining,omitempty" validate:"omitempty,min=0"`
	LowWarning       int `json:"low_warning,omitempty" validate:"omitempty,min=0"`
}

// MonitorConfig controls the daemon trigger.
//
// Schedule accepts cron expressions ("*/5 * * * *"), descriptors ("@every 5m"),
// durations ("5m") or a daily "HH:MM".
type MonitorConfig struct {
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls where the watermark, schedule cache and quota live.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data" }
//	"storage": { "driver": "redis", "dsn": "redis://localhost:6379/0", "prefix": "pickupwatch:" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=file sqlite redis postgres memory"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	Prefix      string `json:"prefix,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StatusConfig controls the optional read-only HTTP status server.
// A non-loopback addr is refused unless token is set.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8089"
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof"`
}
