package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	logx "pickupwatch/pkg/logx"
)

// ErrTransient marks failures worth retrying or falling back from: network
// errors, timeouts, 429 and 5xx responses, unreadable bodies.
var ErrTransient = crerr.New("provider transient failure")

// IsTransient reports whether err carries the ErrTransient mark.
func IsTransient(err error) bool { return crerr.Is(err, ErrTransient) }

const (
	userAgent        = "pickupwatch/1.0"
	maxBodyBytes     = 8 << 20
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 2
	defaultRetryBase = time.Second
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

type ClientConfig struct {
	HTTPClient *http.Client
	// Timeout bounds one logical call, retries included.
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
	// Secrets are redacted from error messages and logs.
	Secrets []string
}

// Client fetches JSON documents with bounded retries.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	retries   int
	retryBase time.Duration
	secrets   []string
	log       logx.Logger
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	c := &Client{
		http:      cfg.HTTPClient,
		timeout:   cfg.Timeout,
		retries:   cfg.MaxRetries,
		retryBase: cfg.RetryBase,
		log:       log,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.retries < 0 {
		c.retries = 0
	} else if c.retries == 0 {
		c.retries = defaultRetries
	}
	if c.retryBase <= 0 {
		c.retryBase = defaultRetryBase
	}
	for _, s := range cfg.Secrets {
		if strings.TrimSpace(s) != "" {
			c.secrets = append(c.secrets, s)
		}
	}
	return c
}

// GetJSON fetches endpoint?query, decodes the body into target and returns the
// response headers. Retries follow exponential backoff; 4xx responses other
// than 429 fail immediately.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, target any) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	full := endpoint
	if enc := query.Encode(); enc != "" {
		full += "?" + enc
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase * time.Duration(1<<uint(attempt-1))
			c.log.Debug("retrying provider request",
				logx.String("url", c.redact(endpoint)),
				logx.Int("attempt", attempt),
				logx.Duration("backoff", backoff),
				logx.Err(lastErr),
			)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, crerr.Mark(fmt.Errorf("%s: %w", c.redact(endpoint), ctx.Err()), ErrTransient)
			case <-timer.C:
			}
		}

		body, hdr, err := c.do(ctx, full)
		if err == nil {
			if err := sonic.Unmarshal(body, target); err != nil {
				return hdr, crerr.Mark(fmt.Errorf("decode %s: %w", c.redact(endpoint), err), ErrTransient)
			}
			return hdr, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return hdr, err
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, full string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %s", c.redact(err.Error()))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, crerr.Mark(fmt.Errorf("send request: %s", c.redact(err.Error())), ErrTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.Header, crerr.Mark(fmt.Errorf("read response body: %w", err), ErrTransient)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{StatusCode: resp.StatusCode, Body: c.redact(abbreviate(body))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, resp.Header, crerr.Mark(herr, ErrTransient)
		}
		return nil, resp.Header, herr
	}
	return body, resp.Header, nil
}

var keyParam = regexp.MustCompile(`(?i)(apikey|api_key)=[^&\s"']+`)

func (c *Client) redact(s string) string {
	s = keyParam.ReplaceAllString(s, "${1}=REDACTED")
	for _, secret := range c.secrets {
		s = strings.ReplaceAll(s, secret, "REDACTED")
	}
	return s
}

func abbreviate(b []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
