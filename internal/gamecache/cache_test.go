package gamecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pickupwatch/internal/activehours"
	"pickupwatch/internal/provider"
	"pickupwatch/internal/storage"
	logx "pickupwatch/pkg/logx"
)

type fixture struct {
	store     storage.Store
	primary   *mockPrimary
	secondary *mockSecondary
	ledger    *mockLedger
	cache     *Cache
	loc       *time.Location
	clock     time.Time
}

// Saturday 2025-09-06 12:00 New York: week 2025-09-04 .. 2025-09-08.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := activehours.DefaultWindow()
	f := &fixture{
		store:     storage.NewMemory(),
		primary:   newMockPrimary(t),
		secondary: newMockSecondary(t),
		ledger:    newMockLedger(t),
		loc:       w.Location,
	}
	f.clock = time.Date(2025, 9, 6, 12, 0, 0, 0, f.loc)
	f.cache = New(f.store, f.primary, f.secondary, f.ledger, Config{
		Window:      w,
		Placeholder: DefaultPlaceholder(),
	}, logx.Nop())
	f.cache.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) at(day, hour, minute int) time.Time {
	return time.Date(2025, 9, day, hour, minute, 0, 0, f.loc)
}

func (f *fixture) weekGames() []provider.Game {
	return []provider.Game{
		{Home: "PHI", Away: "DAL", Start: f.at(4, 20, 20)},
		{Home: "LAC", Away: "KCC", Start: f.at(5, 20, 0)},
		{Home: "GBP", Away: "DET", Start: f.at(7, 13, 0)},
		{Home: "CHI", Away: "MIN", Start: f.at(8, 20, 15)},
		{Home: "NYG", Away: "WAS", Start: f.at(11, 20, 15)}, // next week
		{Home: "SEA", Away: "SFO", Start: f.at(1, 16, 0)},   // last week
	}
}

func TestPrimaryResultIsFilteredAndCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.primary.On("CurrentWeekGames", mock.Anything).Return(f.weekGames(), nil).Once()

	gt, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.Len(t, gt, 8)
	require.True(t, gt["PHI"].Equal(f.at(4, 20, 20)))
	require.True(t, gt["MIN"].Equal(f.at(8, 20, 15)))
	require.NotContains(t, gt, "NYG")
	require.NotContains(t, gt, "SEA")

	var e Entry
	require.NoError(t, storage.GetJSON(ctx, f.store, Key, &e))
	require.Equal(t, "2025-09-04_to_2025-09-08", e.WeekRange)
	require.True(t, e.CachedAt.Equal(f.clock))
}

func TestFreshCacheSkipsProviders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.primary.On("CurrentWeekGames", mock.Anything).Return(f.weekGames(), nil).Once()

	first, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)

	f.clock = f.clock.Add(5*time.Hour + 59*time.Minute)
	second, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for team, ts := range first {
		require.True(t, second[team].Equal(ts), "team %s", team)
	}
	f.primary.AssertNumberOfCalls(t, "CurrentWeekGames", 1)
	f.secondary.AssertNotCalled(t, "Games", mock.Anything, mock.Anything, mock.Anything)
}

func TestExpiredCacheRefetches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.primary.On("CurrentWeekGames", mock.Anything).Return(f.weekGames(), nil).Twice()

	_, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	f.clock = f.clock.Add(6 * time.Hour)
	_, err = f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
}

func TestWeekChangeRefetches(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// An entry cached 10 minutes ago for the previous week.
	require.NoError(t, storage.PutJSON(ctx, f.store, Key, Entry{
		GameTimes: GameTimes{"PHI": f.at(1, 20, 0)},
		CachedAt:  f.clock.Add(-10 * time.Minute),
		WeekRange: "2025-08-28_to_2025-09-01",
	}))
	f.primary.On("CurrentWeekGames", mock.Anything).Return(f.weekGames(), nil).Once()

	gt, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.True(t, gt["PHI"].Equal(f.at(4, 20, 20)))
}

func TestFallbackToSecondaryRecordsQuota(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.primary.On("CurrentWeekGames", mock.Anything).Return(nil, errors.New("espn down")).Once()
	f.ledger.On("MayCall").Return(true).Once()
	f.secondary.On("Games", mock.Anything, 7, 5).
		Return(f.weekGames(), provider.Quota{Used: 42, Remaining: 458, OK: true}, nil).Once()
	f.ledger.On("RecordCall", mock.Anything, 42, 458).Once()

	gt, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.Len(t, gt, 8)
}

func TestPrimaryEmptyFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// primary only knows next week
	f.primary.On("CurrentWeekGames", mock.Anything).
		Return([]provider.Game{{Home: "NYG", Away: "WAS", Start: f.at(11, 20, 15)}}, nil).Once()
	f.ledger.On("MayCall").Return(true).Once()
	f.secondary.On("Games", mock.Anything, 7, 5).
		Return(f.weekGames(), provider.Quota{}, nil).Once()

	gt, err := f.cache.GetGameTimes(context.Background())
	require.NoError(t, err)
	require.Contains(t, gt, "PHI")
	f.ledger.AssertNotCalled(t, "RecordCall", mock.Anything, mock.Anything, mock.Anything)
}

func TestPrimaryWithOnlyOtherWeeksFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	// last week only; the start-day placeholder must not count as a primary win
	f.primary.On("CurrentWeekGames", mock.Anything).
		Return([]provider.Game{{Home: "SEA", Away: "SFO", Start: f.at(1, 16, 0)}}, nil).Once()
	f.ledger.On("MayCall").Return(true).Once()
	f.secondary.On("Games", mock.Anything, 7, 5).
		Return(f.weekGames(), provider.Quota{Used: 10, Remaining: 490, OK: true}, nil).Once()
	f.ledger.On("RecordCall", mock.Anything, 10, 490).Once()

	gt, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.Len(t, gt, 8)
	require.True(t, gt["PHI"].Equal(f.at(4, 20, 20)), "PHI = %v", gt["PHI"])
	require.Contains(t, gt, "KCC")

	var e Entry
	require.NoError(t, storage.GetJSON(ctx, f.store, Key, &e))
	require.Len(t, e.GameTimes, 8)
}

func TestPlaceholderAppliedToSecondaryResult(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.primary.On("CurrentWeekGames", mock.Anything).Return(nil, errors.New("espn down")).Once()
	f.ledger.On("MayCall").Return(true).Once()
	f.secondary.On("Games", mock.Anything, 7, 5).
		Return([]provider.Game{{Home: "GBP", Away: "DET", Start: f.at(7, 13, 0)}}, provider.Quota{}, nil).Once()

	gt, err := f.cache.GetGameTimes(context.Background())
	require.NoError(t, err)
	require.Len(t, gt, 3)
	require.True(t, gt["PHI"].Equal(f.at(4, 20, 0)), "placeholder PHI = %v", gt["PHI"])
}

func TestNoInWeekGamesNoPlaceholder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.primary.On("CurrentWeekGames", mock.Anything).
		Return([]provider.Game{{Home: "SEA", Away: "SFO", Start: f.at(1, 16, 0)}}, nil).Once()
	f.ledger.On("MayCall").Return(false).Once()

	gt, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.Empty(t, gt)
	_, err = f.store.Get(ctx, Key)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNoQuotaNoFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.primary.On("CurrentWeekGames", mock.Anything).Return(nil, errors.New("espn down")).Once()
	f.ledger.On("MayCall").Return(false).Once()

	gt, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.Empty(t, gt)
	f.secondary.AssertNotCalled(t, "Games", mock.Anything, mock.Anything, mock.Anything)

	_, err = f.store.Get(ctx, Key)
	require.ErrorIs(t, err, storage.ErrNotFound, "empty results must not be cached")
}

func TestBothProvidersFail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.primary.On("CurrentWeekGames", mock.Anything).Return(nil, errors.New("espn down")).Once()
	f.ledger.On("MayCall").Return(true).Once()
	f.secondary.On("Games", mock.Anything, 7, 5).
		Return(nil, provider.Quota{}, errors.New("odds down")).Once()

	gt, err := f.cache.GetGameTimes(context.Background())
	require.NoError(t, err)
	require.Empty(t, gt)
}

func TestPlaceholderAddedWithoutStartDayGame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	games := []provider.Game{
		{Home: "GBP", Away: "DET", Start: f.at(7, 13, 0)},
	}
	f.primary.On("CurrentWeekGames", mock.Anything).Return(games, nil).Once()

	gt, err := f.cache.GetGameTimes(context.Background())
	require.NoError(t, err)
	require.True(t, gt["PHI"].Equal(f.at(4, 20, 0)), "placeholder PHI = %v", gt["PHI"])
}

func TestPlaceholderNeverOverridesRealGame(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	games := []provider.Game{
		{Home: "PHI", Away: "DET", Start: f.at(7, 13, 0)},
	}
	f.primary.On("CurrentWeekGames", mock.Anything).Return(games, nil).Once()

	gt, err := f.cache.GetGameTimes(context.Background())
	require.NoError(t, err)
	require.True(t, gt["PHI"].Equal(f.at(7, 13, 0)))
}

func TestPlaceholderDisabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.cache.cfg.Placeholder.Enabled = false
	games := []provider.Game{
		{Home: "GBP", Away: "DET", Start: f.at(7, 13, 0)},
	}
	f.primary.On("CurrentWeekGames", mock.Anything).Return(games, nil).Once()

	gt, err := f.cache.GetGameTimes(context.Background())
	require.NoError(t, err)
	require.NotContains(t, gt, "PHI")
}

func TestClear(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.primary.On("CurrentWeekGames", mock.Anything).Return(f.weekGames(), nil).Twice()

	_, err := f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
	require.NoError(t, f.cache.Clear(ctx))
	_, ok := f.cache.Peek(ctx)
	require.False(t, ok)
	_, err = f.cache.GetGameTimes(ctx)
	require.NoError(t, err)
}
