package sluggen

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSpaceExhausted is returned when no free slug was found within the attempt budget.
	ErrSpaceExhausted = errors.New("slug space exhausted")
	// ErrInvalidState is returned when a counter state lies outside the alphabets.
	ErrInvalidState = errors.New("counter state out of range")
)

// Oracle answers whether a candidate slug is still free.
type Oracle interface {
	Available(ctx context.Context, slug string) (bool, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(ctx context.Context, slug string) (bool, error)

func (f OracleFunc) Available(ctx context.Context, slug string) (bool, error) {
	return f(ctx, slug)
}

// StateStore persists the single counter state.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// Result describes one successful allocation.
type Result struct {
	Slug     string
	Slot     State // position that rendered Slug
	Next     State // position to persist; always Advance(Slot)
	Attempts int   // candidates examined, including the winning one
}

// Generator walks the counter until the oracle accepts a candidate.
// It holds no mutable state and is safe for concurrent use.
type Generator struct {
	alphabets   Alphabets
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithAlphabets replaces the production wheels.
func WithAlphabets(a Alphabets) Option {
	return func(g *Generator) {
		g.alphabets = a
	}
}

// WithMaxAttempts caps how many candidates a single call may examine.
// Values <= 0 keep the default, which is the size of the whole space.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// New returns a Generator over the default alphabets unless overridden.
func New(opts ...Option) (*Generator, error) {
	g := &Generator{alphabets: Default()}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.alphabets.Validate(); err != nil {
		return nil, fmt.Errorf("invalid alphabets: %w", err)
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = g.alphabets.Space()
	}
	return g, nil
}

// Alphabets returns the wheels in use.
func (g *Generator) Alphabets() Alphabets { return g.alphabets }

// MaxAttempts returns the per-call attempt budget.
func (g *Generator) MaxAttempts() int { return g.maxAttempts }

// Next finds the first free slug at or after from.
//
// The returned Result.Next already points past the emitted slug, so persisting it
// means the following call starts on a fresh candidate. The oracle is then a
// safety net against wrap-around and concurrent writers rather than a requirement.
func (g *Generator) Next(ctx context.Context, from State, oracle Oracle) (Result, error) {
	return g.NextWithin(ctx, from, oracle, g.maxAttempts)
}

// NextWithin is Next with an explicit attempt budget. Callers that retry across
// several calls use it to share one budget between them.
func (g *Generator) NextWithin(ctx context.Context, from State, oracle Oracle, budget int) (Result, error) {
	if !from.Valid(g.alphabets) {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidState, from)
	}

	st := from
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Next: st, Attempts: attempt - 1}, err
		}

		slug := Render(g.alphabets, st)
		free, err := oracle.Available(ctx, slug)
		if err != nil {
			return Result{Next: st, Attempts: attempt}, err
		}
		if free {
			return Result{
				Slug:     slug,
				Slot:     st,
				Next:     Advance(g.alphabets, st),
				Attempts: attempt,
			}, nil
		}

		st = Advance(g.alphabets, st)
	}

	return Result{Next: st, Attempts: max(budget, 0)},
		fmt.Errorf("%w: no free slug after %d attempts", ErrSpaceExhausted, max(budget, 0))
}

// GenerateSlug loads the counter, finds the next free slug and persists the
// advanced counter before returning. Store and oracle errors are returned as is.
func (g *Generator) GenerateSlug(ctx context.Context, store StateStore, oracle Oracle) (string, error) {
	st, err := store.Load(ctx)
	if err != nil {
		return "", err
	}

	res, err := g.Next(ctx, st, oracle)
	if err != nil {
		return "", err
	}

	if err := store.Save(ctx, res.Next); err != nil {
		return "", err
	}
	return res.Slug, nil
}
