package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS signals (
  id TEXT PRIMARY KEY,
  pair TEXT NOT NULL,
  side TEXT NOT NULL,
  amount REAL,
  source TEXT NOT NULL,
  status TEXT NOT NULL,
  raw TEXT NOT NULL,
  received_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_received_at ON signals(received_at DESC);`,
		`
CREATE TABLE IF NOT EXISTS swaps (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  signal_id TEXT NOT NULL,
  pair TEXT NOT NULL,
  side TEXT NOT NULL,
  input_token TEXT NOT NULL,
  output_token TEXT NOT NULL,
  in_amount REAL NOT NULL,
  out_amount REAL,
  status TEXT NOT NULL,
  fail_reason TEXT,
  fail_stage TEXT,
  fail_detail TEXT,
  tx_signature TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_swaps_account_created ON swaps(account_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_swaps_status ON swaps(status);`,
		`
CREATE TABLE IF NOT EXISTS wallet_state (
  account_id TEXT NOT NULL,
  token TEXT NOT NULL,
  balance REAL NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (account_id, token)
);`,
		`
CREATE TABLE IF NOT EXISTS account_state (
  account_id TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (account_id, key)
);`,
		`
CREATE TABLE IF NOT EXISTS price_ticks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  token TEXT NOT NULL,
  vs_token TEXT NOT NULL,
  price REAL NOT NULL,
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_price_ticks_token_ts ON price_ticks(token, ts DESC);`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}

	// Databases created before stage tracking lack the fail_stage column
	// (SQLite has no ADD COLUMN IF NOT EXISTS).
	hasCol, err := hasColumn(ctx, s.db, "swaps", "fail_stage")
	if err != nil {
		return err
	}
	if !hasCol {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE swaps ADD COLUMN fail_stage TEXT;`); err != nil {
			return fmt.Errorf("alter swaps add fail_stage: %w", err)
		}
	}
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table string, col string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid       int
			name      string
			typ       string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == col {
			return true, nil
		}
	}
	return false, rows.Err()
}
