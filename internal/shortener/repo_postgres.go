package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sundayezeilo/slugshortener/internal/db"
	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/internal/idgen"
)

// querier is the subset of *db.Queries the repository needs.
type querier interface {
	InsertURL(ctx context.Context, arg db.InsertURLParams) (db.Url, error)
	GetURLByShortID(ctx context.Context, shortID string) (db.Url, error)
	URLExists(ctx context.Context, shortID string) (bool, error)
	ResolveAndTrackURL(ctx context.Context, shortID string) (db.Url, error)
}

type pgRepo struct {
	q     querier
	newID idgen.Func
}

// NewPostgresRepository returns a Repository backed by the urls table.
func NewPostgresRepository(q querier, config *RepositoryConfig) Repository {
	return &pgRepo{q: q, newID: config.idFunc()}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toDomainURL(x db.Url) (URL, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return URL{}, err
	}

	return URL{
		ID:             x.ID,
		ShortID:        x.ShortID,
		OriginalURL:    x.OriginalUrl,
		AccessCount:    x.AccessCount,
		CreatedAt:      createdAt,
		LastAccessedAt: timePtr(x.LastAccessedAt),
	}, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case isShortIDUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *pgRepo) Exists(ctx context.Context, shortID string) (bool, error) {
	const op = "shortener.repo.Exists"

	exists, err := r.q.URLExists(ctx, shortID)
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}

func (r *pgRepo) Create(ctx context.Context, u URL) (URL, error) {
	const op = "shortener.repo.Create"

	if u.ID == uuid.Nil {
		id, err := r.newID()
		if err != nil {
			return URL{}, errx.E(op, errx.Unavailable, err)
		}
		u.ID = id
	}

	row, err := r.q.InsertURL(ctx, db.InsertURLParams{
		ID:          u.ID,
		ShortID:     u.ShortID,
		OriginalUrl: u.OriginalURL,
	})
	if err != nil {
		return URL{}, mapRepoError(op, err)
	}

	created, err := toDomainURL(row)
	if err != nil {
		return URL{}, errx.E(op, errx.Internal, err)
	}
	return created, nil
}

func (r *pgRepo) GetByShortID(ctx context.Context, shortID string) (URL, error) {
	const op = "shortener.repo.GetByShortID"

	row, err := r.q.GetURLByShortID(ctx, shortID)
	if err != nil {
		return URL{}, mapRepoError(op, err)
	}

	u, err := toDomainURL(row)
	if err != nil {
		return URL{}, errx.E(op, errx.Internal, err)
	}
	return u, nil
}

func (r *pgRepo) ResolveAndTrack(ctx context.Context, shortID string) (URL, error) {
	const op = "shortener.repo.ResolveAndTrack"

	row, err := r.q.ResolveAndTrackURL(ctx, shortID)
	if err != nil {
		return URL{}, mapRepoError(op, err)
	}

	u, err := toDomainURL(row)
	if err != nil {
		return URL{}, errx.E(op, errx.Internal, err)
	}
	return u, nil
}
