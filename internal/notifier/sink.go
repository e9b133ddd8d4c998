package notifier

import (
	"context"
	"html"
	"regexp"

	kit "pickupwatch/internal/transport"
	logx "pickupwatch/pkg/logx"
)

// Sink delivers one text. Implementations must honor ctx.
type Sink interface {
	Name() string
	Send(ctx context.Context, text string) error
}

// ChatSink sends through a chat transport adapter to a fixed target.
type ChatSink struct {
	name    string
	adapter kit.Adapter
	target  kit.ChatTarget
}

func NewChatSink(name string, adapter kit.Adapter, target kit.ChatTarget) *ChatSink {
	return &ChatSink{name: name, adapter: adapter, target: target}
}

func (s *ChatSink) Name() string { return s.name }

// Send renders the alert markdown ("**bold**") as Telegram HTML.
func (s *ChatSink) Send(ctx context.Context, text string) error {
	_, err := s.adapter.SendText(ctx, s.target, markdownToHTML(text), &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

var boldRe = regexp.MustCompile(`\*\*(.+?)\*\*`)

func markdownToHTML(text string) string {
	return boldRe.ReplaceAllString(html.EscapeString(text), "<b>$1</b>")
}

// LogSink writes alerts to the logger instead of a chat.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	return &LogSink{log: log.With(logx.String("sink", "log"))}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("alert", logx.String("text", text))
	return nil
}
