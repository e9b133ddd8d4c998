// Package storage persists small JSON documents by key.
//
// pickupwatch keeps three documents: the transaction watermark, the
// schedule cache entry and the quota ledger. Each is owned by exactly one
// component and is read-then-written within a single cycle, so the drivers
// only need per-key atomic replace, not transactions.
//
// Drivers:
//   - "file": one <key>.json per document under a directory (tmp + rename)
//   - "sqlite": a single documents table (modernc.org/sqlite, no cgo)
//   - "postgres": a documents table via sqlx + lib/pq
//   - "redis": one string key per document
//   - "memory": process-local map, for dry runs and tests
package storage
