package counter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/slugshortener/internal/db"
	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/sluggen"
)

// querier is the subset of *db.Queries the Postgres store needs.
type querier interface {
	GetSlugCounter(ctx context.Context) (db.SlugCounter, error)
	InitSlugCounter(ctx context.Context) error
	UpsertSlugCounter(ctx context.Context, arg db.SlugCounter) error
}

// Postgres stores the counter as the single row of slug_counter.
type Postgres struct {
	q         querier
	alphabets sluggen.Alphabets
}

// NewPostgres returns a Postgres store validating states against a.
func NewPostgres(q querier, a sluggen.Alphabets) *Postgres {
	return &Postgres{q: q, alphabets: a}
}

// Load reads the counter row, creating it at {0,0,0} if it is missing.
func (p *Postgres) Load(ctx context.Context) (sluggen.State, error) {
	const op = "counter.postgres.Load"

	row, err := p.q.GetSlugCounter(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		// Row missing despite provisioning; ON CONFLICT keeps racing creators to one row.
		if err := p.q.InitSlugCounter(ctx); err != nil {
			return sluggen.State{}, errx.E(op, errx.Unavailable, err)
		}
		row, err = p.q.GetSlugCounter(ctx)
	}
	if err != nil {
		return sluggen.State{}, errx.E(op, errx.Unavailable, err)
	}

	st := sluggen.State{
		First:  int(row.FirstIndex),
		Second: int(row.SecondIndex),
		Last:   int(row.LastIndex),
	}
	if err := checkLoaded(op, p.alphabets, st); err != nil {
		return sluggen.State{}, err
	}
	return st, nil
}

// Save overwrites the counter row with st.
func (p *Postgres) Save(ctx context.Context, st sluggen.State) error {
	const op = "counter.postgres.Save"

	if err := checkSaving(op, p.alphabets, st); err != nil {
		return err
	}

	err := p.q.UpsertSlugCounter(ctx, db.SlugCounter{
		FirstIndex:  int32(st.First),
		SecondIndex: int32(st.Second),
		LastIndex:   int32(st.Last),
	})
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}
