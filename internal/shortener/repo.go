package shortener

import (
	"context"
	"errors"

	"github.com/sundayezeilo/slugshortener/internal/idgen"
)

// ErrDuplicateShortID is wrapped by stores that enforce uniqueness themselves.
var ErrDuplicateShortID = errors.New("short id already in use")

// Repository persists URL records keyed by a unique short ID.
//
// Create must reject a duplicate ShortID with an errx.Conflict error. The
// service relies on that constraint, not on Exists, for uniqueness.
type Repository interface {
	Exists(ctx context.Context, shortID string) (bool, error)
	Create(ctx context.Context, u URL) (URL, error)
	GetByShortID(ctx context.Context, shortID string) (URL, error)
	ResolveAndTrack(ctx context.Context, shortID string) (URL, error)
}

// RepositoryConfig holds options shared by every Repository implementation.
type RepositoryConfig struct {
	// NewID generates record IDs. Defaults to idgen.Default.
	NewID idgen.Func
}

func (c *RepositoryConfig) idFunc() idgen.Func {
	if c == nil || c.NewID == nil {
		return idgen.Default
	}
	return c.NewID
}
