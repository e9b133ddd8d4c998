// Package espn reads the current NFL week's games from ESPN's public scoreboard.
package espn

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pickupwatch/internal/provider"
	"pickupwatch/internal/provider/teams"
	logx "pickupwatch/pkg/logx"
)

const DefaultScoreboardURL = "https://site.api.espn.com/apis/site/v2/sports/football/nfl/scoreboard"

type Client struct {
	http *provider.Client
	url  string
	log  logx.Logger
}

func New(scoreboardURL string, http *provider.Client, log logx.Logger) *Client {
	u := strings.TrimSpace(scoreboardURL)
	if u == "" {
		u = DefaultScoreboardURL
	}
	return &Client{http: http, url: u, log: log.With(logx.String("comp", "espn"))}
}

type scoreboard struct {
	Week struct {
		Number int `json:"number"`
	} `json:"week"`
	Events []event `json:"events"`
}

type event struct {
	Date         string `json:"date"`
	Competitions []struct {
		Competitors []struct {
			HomeAway string `json:"homeAway"`
			Team     struct {
				DisplayName string `json:"displayName"`
			} `json:"team"`
		} `json:"competitors"`
	} `json:"competitions"`
}

// Week returns the current NFL week number as ESPN sees it.
func (c *Client) Week(ctx context.Context) (int, error) {
	var sb scoreboard
	if _, err := c.http.GetJSON(ctx, c.url, nil, &sb); err != nil {
		return 0, fmt.Errorf("espn scoreboard: %w", err)
	}
	if sb.Week.Number <= 0 {
		return 0, fmt.Errorf("espn scoreboard: missing week number")
	}
	return sb.Week.Number, nil
}

// Games lists the games of one week. Events with unparseable dates or fewer
// than two competitors are skipped.
func (c *Client) Games(ctx context.Context, week int) ([]provider.Game, error) {
	q := url.Values{}
	if week > 0 {
		q.Set("week", strconv.Itoa(week))
	}
	var sb scoreboard
	if _, err := c.http.GetJSON(ctx, c.url, q, &sb); err != nil {
		return nil, fmt.Errorf("espn scoreboard week=%d: %w", week, err)
	}

	games := make([]provider.Game, 0, len(sb.Events))
	for _, ev := range sb.Events {
		start, err := parseDate(ev.Date)
		if err != nil {
			c.log.Warn("skipping event with bad date", logx.String("date", ev.Date))
			continue
		}
		if len(ev.Competitions) == 0 || len(ev.Competitions[0].Competitors) < 2 {
			continue
		}
		comp := ev.Competitions[0].Competitors
		home, away := comp[0], comp[1]
		if home.HomeAway == "away" {
			home, away = away, home
		}
		if home.Team.DisplayName == "" || away.Team.DisplayName == "" {
			continue
		}
		games = append(games, provider.Game{
			Home:  teams.Code(home.Team.DisplayName),
			Away:  teams.Code(away.Team.DisplayName),
			Start: start,
		})
	}
	c.log.Debug("espn games fetched", logx.Int("week", week), logx.Int("games", len(games)))
	return games, nil
}

// CurrentWeekGames is Week followed by Games.
func (c *Client) CurrentWeekGames(ctx context.Context) ([]provider.Game, error) {
	week, err := c.Week(ctx)
	if err != nil {
		return nil, err
	}
	return c.Games(ctx, week)
}

// ESPN dates come as "2025-09-05T00:20Z" (no seconds).
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04Z07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
