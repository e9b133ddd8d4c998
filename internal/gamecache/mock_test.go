package gamecache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"pickupwatch/internal/provider"
)

type mockPrimary struct{ mock.Mock }

func newMockPrimary(t *testing.T) *mockPrimary {
	m := &mockPrimary{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockPrimary) CurrentWeekGames(ctx context.Context) ([]provider.Game, error) {
	args := m.Called(ctx)
	games, _ := args.Get(0).([]provider.Game)
	return games, args.Error(1)
}

type mockSecondary struct{ mock.Mock }

func newMockSecondary(t *testing.T) *mockSecondary {
	m := &mockSecondary{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockSecondary) Games(ctx context.Context, daysBack, daysAhead int) ([]provider.Game, provider.Quota, error) {
	args := m.Called(ctx, daysBack, daysAhead)
	games, _ := args.Get(0).([]provider.Game)
	return games, args.Get(1).(provider.Quota), args.Error(2)
}

type mockLedger struct{ mock.Mock }

func newMockLedger(t *testing.T) *mockLedger {
	m := &mockLedger{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockLedger) MayCall() bool { return m.Called().Bool(0) }

func (m *mockLedger) RecordCall(ctx context.Context, used, remaining int) {
	m.Called(ctx, used, remaining)
}
