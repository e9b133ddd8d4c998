// Package oddsapi reads NFL events from The Odds API. Every call is metered;
// the remaining budget comes back in x-requests-* response headers.
package oddsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pickupwatch/internal/provider"
	"pickupwatch/internal/provider/teams"
	logx "pickupwatch/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.the-odds-api.com"
	apiVersion     = "v4"
	sportKey       = "americanfootball_nfl"
)

var ErrNoAPIKey = errors.New("odds api key not configured")

type Client struct {
	http   *provider.Client
	base   string
	apiKey string
	now    func() time.Time
	log    logx.Logger
}

func New(baseURL, apiKey string, http *provider.Client, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		http:   http,
		base:   base,
		apiKey: strings.TrimSpace(apiKey),
		now:    time.Now,
		log:    log.With(logx.String("comp", "oddsapi")),
	}
}

func (c *Client) Enabled() bool { return c.apiKey != "" }

type eventResponse struct {
	ID           string `json:"id"`
	CommenceTime string `json:"commence_time"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
}

// Games lists NFL events commencing between now-daysBack and now+daysAhead.
func (c *Client) Games(ctx context.Context, daysBack, daysAhead int) ([]provider.Game, provider.Quota, error) {
	if !c.Enabled() {
		return nil, provider.Quota{}, ErrNoAPIKey
	}
	now := c.now().UTC()
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("dateFormat", "iso")
	q.Set("commenceTimeFrom", now.AddDate(0, 0, -daysBack).Format("2006-01-02T15:04:05Z"))
	q.Set("commenceTimeTo", now.AddDate(0, 0, daysAhead).Format("2006-01-02T15:04:05Z"))

	endpoint := fmt.Sprintf("%s/%s/sports/%s/events", c.base, apiVersion, sportKey)
	var events []eventResponse
	hdr, err := c.http.GetJSON(ctx, endpoint, q, &events)
	if err != nil {
		return nil, provider.Quota{}, fmt.Errorf("odds api events: %w", err)
	}
	quota := QuotaFromHeaders(hdr)

	games := make([]provider.Game, 0, len(events))
	for _, ev := range events {
		start, err := time.Parse(time.RFC3339, ev.CommenceTime)
		if err != nil {
			c.log.Warn("skipping event with bad commence_time", logx.String("event", ev.ID), logx.String("commence_time", ev.CommenceTime))
			continue
		}
		games = append(games, provider.Game{
			Home:  teams.Code(ev.HomeTeam),
			Away:  teams.Code(ev.AwayTeam),
			Start: start.UTC(),
		})
	}
	c.log.Debug("odds api games fetched",
		logx.Int("games", len(games)),
		logx.Int("quota_remaining", quota.Remaining),
	)
	return games, quota, nil
}

// Ping lists sports; it checks the key and returns the current quota.
func (c *Client) Ping(ctx context.Context) (provider.Quota, error) {
	if !c.Enabled() {
		return provider.Quota{}, ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	var sports []struct {
		Key string `json:"key"`
	}
	hdr, err := c.http.GetJSON(ctx, fmt.Sprintf("%s/%s/sports", c.base, apiVersion), q, &sports)
	if err != nil {
		return provider.Quota{}, fmt.Errorf("odds api sports: %w", err)
	}
	return QuotaFromHeaders(hdr), nil
}

// QuotaFromHeaders reads x-requests-used / x-requests-remaining. Quota.OK is
// false unless both parse.
func QuotaFromHeaders(h http.Header) provider.Quota {
	used, err1 := strconv.Atoi(strings.TrimSpace(h.Get("x-requests-used")))
	remaining, err2 := strconv.Atoi(strings.TrimSpace(h.Get("x-requests-remaining")))
	if err1 != nil || err2 != nil {
		return provider.Quota{}
	}
	return provider.Quota{Used: used, Remaining: remaining, OK: true}
}
