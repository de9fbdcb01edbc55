package db

import (
	"context"
	"fmt"
)

// URLShortIDUniqueConstraint is the constraint that rejects duplicate slugs.
const URLShortIDUniqueConstraint = "urls_short_id_unique"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS urls (
		id               UUID PRIMARY KEY,
		short_id         TEXT NOT NULL,
		original_url     TEXT NOT NULL,
		access_count     BIGINT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_accessed_at TIMESTAMPTZ,

		CONSTRAINT urls_short_id_unique UNIQUE (short_id),
		CONSTRAINT urls_short_id_length CHECK (char_length(short_id) = 3)
	)`,
	`CREATE TABLE IF NOT EXISTS slug_counter (
		id           SMALLINT PRIMARY KEY CHECK (id = 1),
		first_index  INTEGER NOT NULL CHECK (first_index >= 0),
		second_index INTEGER NOT NULL CHECK (second_index >= 0),
		last_index   INTEGER NOT NULL CHECK (last_index >= 0)
	)`,
	`INSERT INTO slug_counter (id, first_index, second_index, last_index)
	VALUES (1, 0, 0, 0)
	ON CONFLICT (id) DO NOTHING`,
}

// EnsureSchema creates the tables and the counter row if they are missing.
// Running it repeatedly is safe.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
