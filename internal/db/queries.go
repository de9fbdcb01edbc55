package db

import (
	"context"

	"github.com/google/uuid"
)

const urlColumns = `id, short_id, original_url, access_count, created_at, last_accessed_at`

func scanURL(row interface{ Scan(dest ...any) error }) (Url, error) {
	var u Url
	err := row.Scan(
		&u.ID,
		&u.ShortID,
		&u.OriginalUrl,
		&u.AccessCount,
		&u.CreatedAt,
		&u.LastAccessedAt,
	)
	return u, err
}

const insertURL = `INSERT INTO urls (id, short_id, original_url)
VALUES ($1, $2, $3)
RETURNING ` + urlColumns

type InsertURLParams struct {
	ID          uuid.UUID
	ShortID     string
	OriginalUrl string
}

func (q *Queries) InsertURL(ctx context.Context, arg InsertURLParams) (Url, error) {
	return scanURL(q.db.QueryRow(ctx, insertURL, arg.ID, arg.ShortID, arg.OriginalUrl))
}

const getURLByShortID = `SELECT ` + urlColumns + ` FROM urls WHERE short_id = $1`

func (q *Queries) GetURLByShortID(ctx context.Context, shortID string) (Url, error) {
	return scanURL(q.db.QueryRow(ctx, getURLByShortID, shortID))
}

const urlExists = `SELECT EXISTS (SELECT 1 FROM urls WHERE short_id = $1)`

func (q *Queries) URLExists(ctx context.Context, shortID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, urlExists, shortID).Scan(&exists)
	return exists, err
}

const resolveAndTrackURL = `UPDATE urls
SET access_count = access_count + 1,
    last_accessed_at = now()
WHERE short_id = $1
RETURNING ` + urlColumns

func (q *Queries) ResolveAndTrackURL(ctx context.Context, shortID string) (Url, error) {
	return scanURL(q.db.QueryRow(ctx, resolveAndTrackURL, shortID))
}

const getSlugCounter = `SELECT first_index, second_index, last_index
FROM slug_counter
WHERE id = 1`

func (q *Queries) GetSlugCounter(ctx context.Context) (SlugCounter, error) {
	var c SlugCounter
	err := q.db.QueryRow(ctx, getSlugCounter).Scan(&c.FirstIndex, &c.SecondIndex, &c.LastIndex)
	return c, err
}

const initSlugCounter = `INSERT INTO slug_counter (id, first_index, second_index, last_index)
VALUES (1, 0, 0, 0)
ON CONFLICT (id) DO NOTHING`

func (q *Queries) InitSlugCounter(ctx context.Context) error {
	_, err := q.db.Exec(ctx, initSlugCounter)
	return err
}

const upsertSlugCounter = `INSERT INTO slug_counter (id, first_index, second_index, last_index)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE
SET first_index = EXCLUDED.first_index,
    second_index = EXCLUDED.second_index,
    last_index = EXCLUDED.last_index`

func (q *Queries) UpsertSlugCounter(ctx context.Context, arg SlugCounter) error {
	_, err := q.db.Exec(ctx, upsertSlugCounter, arg.FirstIndex, arg.SecondIndex, arg.LastIndex)
	return err
}
