package shortener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/internal/idgen"
)

type memoryRepo struct {
	mu    sync.Mutex
	urls  map[string]URL
	newID idgen.Func
	now   func() time.Time
}

// NewMemoryRepository returns a Repository kept in process memory.
// Useful for local development and tests; nothing survives a restart.
func NewMemoryRepository(config *RepositoryConfig) Repository {
	return &memoryRepo{urls: make(map[string]URL), newID: config.idFunc(), now: time.Now}
}

func (r *memoryRepo) Exists(_ context.Context, shortID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.urls[shortID]
	return ok, nil
}

func (r *memoryRepo) Create(_ context.Context, u URL) (URL, error) {
	const op = "shortener.memory.Create"

	if u.ID == uuid.Nil {
		id, err := r.newID()
		if err != nil {
			return URL{}, errx.E(op, errx.Unavailable, err)
		}
		u.ID = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[u.ShortID]; ok {
		return URL{}, errx.E(op, errx.Conflict, fmt.Errorf("%w: %s", ErrDuplicateShortID, u.ShortID))
	}

	u.CreatedAt = r.now().UTC()
	u.AccessCount = 0
	u.LastAccessedAt = nil
	r.urls[u.ShortID] = u
	return u, nil
}

func (r *memoryRepo) GetByShortID(_ context.Context, shortID string) (URL, error) {
	const op = "shortener.memory.GetByShortID"

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.urls[shortID]
	if !ok {
		return URL{}, errx.E(op, errx.NotFound, fmt.Errorf("short id %q not found", shortID))
	}
	return u, nil
}

func (r *memoryRepo) ResolveAndTrack(_ context.Context, shortID string) (URL, error) {
	const op = "shortener.memory.ResolveAndTrack"

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.urls[shortID]
	if !ok {
		return URL{}, errx.E(op, errx.NotFound, fmt.Errorf("short id %q not found", shortID))
	}

	now := r.now().UTC()
	u.AccessCount++
	u.LastAccessedAt = &now
	r.urls[shortID] = u
	return u, nil
}
