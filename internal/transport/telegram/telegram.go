// Package telegram is the send-only Telegram adapter.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "pickupwatch/internal/transport"
	logx "pickupwatch/pkg/logx"
)

const textLimit = 4000

type Config struct {
	Token       string
	APIURL      string // default https://api.telegram.org
	HTTPTimeout time.Duration
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

// New builds an offline bot: nothing is sent until SendText, so startup does
// not depend on Telegram being reachable.
func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b, log: log.With(logx.String("comp", "telegram"))}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := kit.SplitText(text, textLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	if len(chunks) > 1 {
		a.log.Debug("long message split", logx.Int("chunks", len(chunks)))
	}
	return first, nil
}
