package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key has never been written or was deleted.
var ErrNotFound = errors.New("storage: not found")

// Config configures storage.
//
// Path is a directory for "file" and a database file for "sqlite".
// DSN is a connection URL for "postgres" and "redis".
type Config struct {
	Driver      string
	Path        string
	DSN         string
	Prefix      string        // redis key / postgres table prefix
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the key -> JSON document API used by the quota ledger,
// the schedule cache and the detector watermark.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON loads key into v. It returns ErrNotFound untouched so callers can
// tell "absent" from "corrupt".
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func PutJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, b)
}
