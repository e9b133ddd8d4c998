package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	kit "pickupwatch/internal/transport"
)

// Discord rejects message content over this many characters.
const discordLimit = 2000

// DiscordSink posts to a Discord channel webhook.
type DiscordSink struct {
	url  string
	http *http.Client
}

func NewDiscordSink(webhookURL string, client *http.Client) (*DiscordSink, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &DiscordSink{url: webhookURL, http: client}, nil
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Send(ctx context.Context, text string) error {
	for _, chunk := range kit.SplitText(text, discordLimit, "") {
		if err := s.post(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *DiscordSink) post(ctx context.Context, content string) error {
	body, err := sonic.Marshal(struct {
		Content string `json:"content"`
	}{Content: content})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("discord webhook: http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
