package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	logx "pickupwatch/pkg/logx"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type postgresStore struct {
	db    *sqlx.DB
	log   logx.Logger
	table string
}

type documentRow struct {
	Key string `db:"key"`
	Doc string `db:"doc"`
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	table := strings.ToLower(strings.TrimSpace(cfg.Prefix)) + "documents"
	if cfg.Prefix == "" {
		table = "pickupwatch_documents"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("storage.prefix %q does not form a valid table name", cfg.Prefix)
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(2)

	ddl := `CREATE TABLE IF NOT EXISTS ` + table + ` (
    key        TEXT PRIMARY KEY,
    doc        JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	log.Debug("postgres store opened", logx.String("table", table))
	return &postgresStore{db: db, log: log, table: table}, nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `SELECT key, doc::text AS doc FROM `+s.table+` WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(row.Doc), nil
}

func (s *postgresStore) Put(ctx context.Context, key string, doc []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO `+s.table+` (key, doc, updated_at) VALUES (:key, CAST(:doc AS JSONB), NOW())
		 ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		documentRow{Key: key, Doc: string(doc)},
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key)
	return err
}

func (s *postgresStore) Close() error { return s.db.Close() }
