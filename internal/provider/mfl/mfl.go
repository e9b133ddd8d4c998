// Package mfl reads transactions, players and franchises from the
// MyFantasyLeague export API.
package mfl

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"pickupwatch/internal/detector"
	"pickupwatch/internal/provider"
	logx "pickupwatch/pkg/logx"
)

const (
	DefaultBaseURL = "https://www.myfantasyleague.com"
	// sinceDays is how far back MFL scans when SINCE is given.
	sinceDays = 7
)

type Config struct {
	BaseURL  string
	LeagueID string
	APIKey   string
	Year     int
}

type Client struct {
	http     *provider.Client
	endpoint string
	league   string
	apiKey   string
	log      logx.Logger
}

func New(cfg Config, http *provider.Client, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	year := cfg.Year
	if year == 0 {
		year = time.Now().Year()
	}
	return &Client{
		http:     http,
		endpoint: fmt.Sprintf("%s/%d/export", base, year),
		league:   cfg.LeagueID,
		apiKey:   cfg.APIKey,
		log:      log.With(logx.String("comp", "mfl")),
	}
}

func (c *Client) query(typ string) url.Values {
	q := url.Values{}
	q.Set("TYPE", typ)
	q.Set("L", c.league)
	if c.apiKey != "" {
		q.Set("APIKEY", c.apiKey)
	}
	q.Set("JSON", "1")
	return q
}

// oneOrMany decodes MFL's habit of returning a bare object when a list has
// exactly one element.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*o = nil
		return nil
	case b[0] == '[':
		var xs []T
		if err := sonic.Unmarshal(b, &xs); err != nil {
			return err
		}
		*o = xs
		return nil
	default:
		var x T
		if err := sonic.Unmarshal(b, &x); err != nil {
			return err
		}
		*o = []T{x}
		return nil
	}
}

type transactionRow struct {
	Type        string `json:"type"`
	Franchise   string `json:"franchise"`
	Timestamp   string `json:"timestamp"`
	Transaction string `json:"transaction"`
}

type transactionsResponse struct {
	Transactions struct {
		Transaction oneOrMany[transactionRow] `json:"transaction"`
	} `json:"transactions"`
}

// Transactions lists league transactions. When since is non-zero the request
// is narrowed with SINCE; callers still filter locally because MFL treats it
// as a hint.
func (c *Client) Transactions(ctx context.Context, since time.Time) ([]detector.Transaction, error) {
	q := c.query("transactions")
	if !since.IsZero() {
		q.Set("SINCE", strconv.FormatInt(since.Unix(), 10))
		q.Set("DAYS", strconv.Itoa(sinceDays))
	}
	var resp transactionsResponse
	if _, err := c.http.GetJSON(ctx, c.endpoint, q, &resp); err != nil {
		return nil, fmt.Errorf("mfl transactions: %w", err)
	}

	out := make([]detector.Transaction, 0, len(resp.Transactions.Transaction))
	for i, row := range resp.Transactions.Transaction {
		sec, err := strconv.ParseInt(strings.TrimSpace(row.Timestamp), 10, 64)
		if err != nil {
			c.log.Warn("skipping transaction with bad timestamp",
				logx.String("timestamp", row.Timestamp),
				logx.String("franchise", row.Franchise),
			)
			continue
		}
		out = append(out, detector.Transaction{
			ID:         fmt.Sprintf("%s-%s-%d", row.Timestamp, row.Franchise, i),
			Kind:       detector.KindFromMFL(row.Type),
			OccurredAt: time.Unix(sec, 0).UTC(),
			ActorID:    row.Franchise,
			Payload:    row.Transaction,
		})
	}
	return out, nil
}

type playerRow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Team     string `json:"team"`
}

type playersResponse struct {
	Players struct {
		Player oneOrMany[playerRow] `json:"player"`
	} `json:"players"`
}

func (c *Client) Players(ctx context.Context) (map[string]detector.Player, error) {
	var resp playersResponse
	if _, err := c.http.GetJSON(ctx, c.endpoint, c.query("players"), &resp); err != nil {
		return nil, fmt.Errorf("mfl players: %w", err)
	}
	out := make(map[string]detector.Player, len(resp.Players.Player))
	for _, p := range resp.Players.Player {
		out[p.ID] = detector.Player{ID: p.ID, Name: p.Name, Position: p.Position, Team: p.Team}
	}
	return out, nil
}

type franchiseRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerName string `json:"owner_name"`
}

type leagueResponse struct {
	League struct {
		Franchises struct {
			Franchise oneOrMany[franchiseRow] `json:"franchise"`
		} `json:"franchises"`
	} `json:"league"`
}

func (c *Client) Franchises(ctx context.Context) (map[string]detector.Franchise, error) {
	q := c.query("league")
	q.Set("FRANCHISES", "1")
	var resp leagueResponse
	if _, err := c.http.GetJSON(ctx, c.endpoint, q, &resp); err != nil {
		return nil, fmt.Errorf("mfl league: %w", err)
	}
	out := make(map[string]detector.Franchise, len(resp.League.Franchises.Franchise))
	for _, f := range resp.League.Franchises.Franchise {
		out[f.ID] = detector.Franchise{ID: f.ID, Name: f.Name, OwnerName: f.OwnerName}
	}
	return out, nil
}
