package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	kit "pickupwatch/internal/transport"
	logx "pickupwatch/pkg/logx"
)

type mockSink struct{ mock.Mock }

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Send(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

type mockAdapter struct{ mock.Mock }

func (m *mockAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	args := m.Called(ctx, to, text, opt)
	return args.Get(0).(kit.MessageRef), args.Error(1)
}

func TestMarkdownToHTML(t *testing.T) {
	in := "🚨 **Ja'Marr Chase (WR, CIN)** picked up by **A & B <3 (Bob)**\n⏰ 9/4 9:20 PM EDT"
	want := "🚨 <b>Ja&#39;Marr Chase (WR, CIN)</b> picked up by <b>A &amp; B &lt;3 (Bob)</b>\n⏰ 9/4 9:20 PM EDT"
	if got := markdownToHTML(in); got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestChatSinkSendsHTML(t *testing.T) {
	ad := &mockAdapter{}
	target := kit.ChatTarget{ChatID: -100, ThreadID: 3}
	ad.On("SendText", mock.Anything, target, "<b>x</b>", mock.MatchedBy(func(o *kit.SendOptions) bool {
		return o.ParseMode == "HTML" && o.DisablePreview
	})).Return(kit.MessageRef{MessageID: 1}, nil).Once()

	s := NewChatSink("telegram", ad, target)
	require.NoError(t, s.Send(context.Background(), "**x**"))
	require.Equal(t, "telegram", s.Name())
	ad.AssertExpectations(t)
}

func TestDiscordSink(t *testing.T) {
	var (
		mu       sync.Mutex
		contents []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		var p struct {
			Content string `json:"content"`
		}
		require.NoError(t, sonic.Unmarshal(b, &p))
		mu.Lock()
		contents = append(contents, p.Content)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := NewDiscordSink(srv.URL, srv.Client())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), "hello"))
	require.NoError(t, s.Send(context.Background(), strings.Repeat("x", 2500)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, contents, 3)
	require.Equal(t, "hello", contents[0])
	require.Len(t, contents[1], 2000)
	require.Len(t, contents[2], 500)
}

func TestDiscordSinkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"You are being rate limited."}`)
	}))
	defer srv.Close()

	s, err := NewDiscordSink(srv.URL, srv.Client())
	require.NoError(t, err)
	err = s.Send(context.Background(), "hello")
	require.ErrorContains(t, err, "http 429")

	_, err = NewDiscordSink("", nil)
	require.Error(t, err)
}

func TestServiceRecordsHistory(t *testing.T) {
	sink := &mockSink{}
	sink.On("Send", mock.Anything, "one").Return(nil).Once()
	sink.On("Send", mock.Anything, "two").Return(errors.New("boom")).Once()

	s := New(sink, logx.Nop())
	require.NoError(t, s.Send(context.Background(), "one"))
	require.Error(t, s.Send(context.Background(), "two"))

	h := s.Snapshot()
	require.Len(t, h, 2)
	require.Equal(t, "one", h[0].Text)
	require.Empty(t, h[0].Err)
	require.Equal(t, "boom", h[1].Err)
	require.Equal(t, Stats{Sink: "mock", Delivered: 1, Failed: 1}, s.Stats())
	sink.AssertExpectations(t)
}

func TestLogSinkHonorsContext(t *testing.T) {
	s := NewLogSink(logx.Nop())
	require.NoError(t, s.Send(context.Background(), "x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, "x"), context.Canceled)
}
