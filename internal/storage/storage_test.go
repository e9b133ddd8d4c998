package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "pickupwatch/pkg/logx"
)

type cacheDoc struct {
	GameTimes map[string]time.Time `json:"game_times"`
	CachedAt  time.Time            `json:"cached_at"`
	WeekRange string               `json:"week_range"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "game_times"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err=%v, want ErrNotFound", err)
	}

	kick := time.Date(2025, 9, 4, 20, 20, 0, 0, time.UTC)
	in := cacheDoc{
		GameTimes: map[string]time.Time{"PHI": kick, "DAL": kick},
		CachedAt:  time.Date(2025, 9, 4, 12, 0, 0, 123456789, time.UTC),
		WeekRange: "2025-09-04_to_2025-09-08",
	}
	if err := PutJSON(ctx, s, "game_times", in); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}

	var out cacheDoc
	if err := GetJSON(ctx, s, "game_times", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.WeekRange != in.WeekRange || !out.CachedAt.Equal(in.CachedAt) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	for team, ts := range in.GameTimes {
		if !out.GameTimes[team].Equal(ts) {
			t.Fatalf("game_times[%s] = %v, want %v", team, out.GameTimes[team], ts)
		}
	}

	// overwrite
	in.WeekRange = "2025-09-11_to_2025-09-15"
	if err := PutJSON(ctx, s, "game_times", in); err != nil {
		t.Fatalf("PutJSON overwrite: %v", err)
	}
	if err := GetJSON(ctx, s, "game_times", &out); err != nil || out.WeekRange != in.WeekRange {
		t.Fatalf("overwrite not visible: %+v err=%v", out, err)
	}

	if err := s.Delete(ctx, "game_times"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "game_times"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Delete: err=%v", err)
	}
	if err := s.Delete(ctx, "game_times"); err != nil {
		t.Fatalf("Delete of missing key should be a no-op: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "state")
	s, err := Open(context.Background(), Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStoreCorruptDocument(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "quota.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Open(context.Background(), Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var v map[string]any
	err = GetJSON(context.Background(), s, "quota", &v)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("corrupt doc: err=%v, want decode error", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "pickupwatch.db")
	s, err := Open(context.Background(), Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	dsn := os.Getenv("PICKUPWATCH_TEST_REDIS_DSN")
	if dsn == "" {
		t.Skip("PICKUPWATCH_TEST_REDIS_DSN not set")
	}
	s, err := Open(context.Background(), Config{Driver: "redis", DSN: dsn, Prefix: "pickupwatch-test:"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PICKUPWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PICKUPWATCH_TEST_POSTGRES_DSN not set")
	}
	s, err := Open(context.Background(), Config{Driver: "postgres", DSN: dsn, Prefix: "pickupwatch_test_"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestInvalidKeys(t *testing.T) {
	t.Parallel()
	s := NewMemory()
	for _, k := range []string{"", "../x", "a/b", ".hidden"} {
		if err := s.Put(context.Background(), k, []byte("{}")); err == nil {
			t.Fatalf("Put(%q) should fail", k)
		}
	}
}
