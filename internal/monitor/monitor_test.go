package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pickupwatch/internal/activehours"
	logx "pickupwatch/pkg/logx"
)

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Analyze(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	alerts, _ := args.Get(0).([]string)
	return alerts, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Send(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

var window = activehours.DefaultWindow()

// Saturday 2025-09-06 12:00 New York, inside the window.
var active = time.Date(2025, 9, 6, 12, 0, 0, 0, window.Location)

// Wednesday 2025-09-03 12:00 New York, outside it.
var idle = time.Date(2025, 9, 3, 12, 0, 0, 0, window.Location)

func newMonitor(t *testing.T, a Analyzer, n Notifier, now time.Time) *Monitor {
	t.Helper()
	m := New(a, n, Config{Window: window, Pace: time.Millisecond, SendTimeout: time.Second}, logx.Nop())
	m.now = func() time.Time { return now }
	return m
}

func TestGateSkipsOutsideActiveHours(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	m := newMonitor(t, a, n, idle)

	r, err := m.RunCheck(context.Background(), false)
	require.NoError(t, err)
	require.True(t, r.Skipped)
	a.AssertNotCalled(t, "Analyze", mock.Anything)

	last, ok := m.Last()
	require.True(t, ok)
	require.True(t, last.Skipped)
}

func TestForceBypassesGate(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	a.On("Analyze", mock.Anything).Return([]string{"late"}, nil).Once()
	n.On("Send", mock.Anything, "late").Return(nil).Once()
	m := newMonitor(t, a, n, idle)

	r, err := m.RunCheck(context.Background(), true)
	require.NoError(t, err)
	require.False(t, r.Skipped)
	require.True(t, r.Forced)
	require.Equal(t, 1, r.Delivered)
	a.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestDispatchInOrderAndCountsFailures(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	a.On("Analyze", mock.Anything).Return([]string{"a1", "a2", "a3"}, nil).Once()
	var order []string
	record := func(args mock.Arguments) { order = append(order, args.String(1)) }
	n.On("Send", mock.Anything, "a1").Run(record).Return(nil).Once()
	n.On("Send", mock.Anything, "a2").Run(record).Return(errors.New("telegram down")).Once()
	n.On("Send", mock.Anything, "a3").Run(record).Return(nil).Once()
	m := newMonitor(t, a, n, active)

	r, err := m.RunCheck(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2", "a3"}, order)
	require.Equal(t, 3, r.Alerts)
	require.Equal(t, 2, r.Delivered)
	require.Equal(t, 1, r.Failed)
	n.AssertExpectations(t)
}

func TestPacingSpacesSends(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	a.On("Analyze", mock.Anything).Return([]string{"a1", "a2", "a3"}, nil).Once()
	n.On("Send", mock.Anything, mock.Anything).Return(nil).Times(3)
	m := New(a, n, Config{Window: window, Pace: 40 * time.Millisecond}, logx.Nop())
	m.now = func() time.Time { return active }

	start := time.Now()
	_, err := m.RunCheck(context.Background(), false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestBatchErrorSendsDiagnostic(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	a.On("Analyze", mock.Anything).Return(nil, errors.New("fetch players: mfl 502")).Once()
	n.On("Send", mock.Anything, "❌ Error in transaction analysis: fetch players: mfl 502").Return(nil).Once()
	m := newMonitor(t, a, n, active)

	r, err := m.RunCheck(context.Background(), false)
	require.Error(t, err)
	require.Equal(t, "fetch players: mfl 502", r.Err)
	n.AssertExpectations(t)
}

func TestConcurrentCycleIsRejected(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	entered := make(chan struct{})
	release := make(chan struct{})
	a.On("Analyze", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil, nil).Once()
	m := newMonitor(t, a, n, active)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunCheck(context.Background(), false)
		done <- err
	}()
	<-entered

	_, err := m.RunCheck(context.Background(), false)
	require.ErrorIs(t, err, ErrCycleInProgress)

	close(release)
	require.NoError(t, <-done)
	a.AssertNumberOfCalls(t, "Analyze", 1)
}

func TestInFlightSendSurvivesCancel(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	a.On("Analyze", mock.Anything).Return([]string{"a1", "a2"}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	n.On("Send", mock.Anything, "a1").Run(func(args mock.Arguments) {
		cancel()
		sctx := args.Get(0).(context.Context)
		require.NoError(t, sctx.Err(), "send context must not inherit cancellation")
	}).Return(nil).Once()
	m := newMonitor(t, a, n, active)

	r, err := m.RunCheck(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, r.Delivered)
	n.AssertNotCalled(t, "Send", mock.Anything, "a2")
}

func TestSetWindow(t *testing.T) {
	a, n := &mockAnalyzer{}, &mockNotifier{}
	a.On("Analyze", mock.Anything).Return(nil, nil).Once()
	m := newMonitor(t, a, n, idle)

	w := window
	w.StartDay = time.Wednesday
	w.StartTime = 0
	m.SetWindow(w)
	require.Equal(t, time.Wednesday, m.Window().StartDay)

	r, err := m.RunCheck(context.Background(), false)
	require.NoError(t, err)
	require.False(t, r.Skipped)
	a.AssertExpectations(t)
}
