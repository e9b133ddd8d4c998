package notifier

import (
	"context"
	"sync"
	"time"

	logx "pickupwatch/pkg/logx"
)

const historySize = 300

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
	Err  string    `json:"error,omitempty"`
}

type Stats struct {
	Sink      string `json:"sink"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// Service sends through one sink and records what happened. It is safe for
// concurrent use; callers decide pacing and timeouts.
type Service struct {
	sink Sink
	log  logx.Logger

	mu        sync.Mutex
	history   []HistoryItem
	delivered int
	failed    int
}

func New(sink Sink, log logx.Logger) *Service {
	return &Service{sink: sink, log: log.With(logx.String("comp", "notifier"), logx.String("sink", sink.Name()))}
}

func (s *Service) SinkName() string { return s.sink.Name() }

func (s *Service) Send(ctx context.Context, text string) error {
	start := time.Now()
	err := s.sink.Send(ctx, text)

	item := HistoryItem{At: start, Text: text}
	s.mu.Lock()
	if err != nil {
		s.failed++
		item.Err = err.Error()
	} else {
		s.delivered++
	}
	s.history = append(s.history, item)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("send failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return err
	}
	s.log.Debug("sent", logx.Duration("took", time.Since(start)))
	return nil
}

// Snapshot returns the recent history, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Sink: s.sink.Name(), Delivered: s.delivered, Failed: s.failed}
}
