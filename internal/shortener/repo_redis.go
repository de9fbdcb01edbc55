package shortener

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/internal/idgen"
)

// DefaultRedisKeyPrefix namespaces URL records in Redis.
const DefaultRedisKeyPrefix = "slugshortener:url:"

type redisRecord struct {
	ID          uuid.UUID `json:"id"`
	ShortID     string    `json:"shortId"`
	OriginalURL string    `json:"originalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type redisRepo struct {
	client redis.Cmdable
	prefix string
	newID  idgen.Func
	now    func() time.Time
}

// NewRedisRepository returns a Repository that stores each record under its
// own key. SETNX on that key is the unique constraint.
func NewRedisRepository(client redis.Cmdable, prefix string, config *RepositoryConfig) Repository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &redisRepo{client: client, prefix: prefix, newID: config.idFunc(), now: time.Now}
}

func (r *redisRepo) key(shortID string) string     { return r.prefix + shortID }
func (r *redisRepo) hitsKey(shortID string) string { return r.prefix + shortID + ":hits" }
func (r *redisRepo) lastKey(shortID string) string { return r.prefix + shortID + ":last" }

func (r *redisRepo) Exists(ctx context.Context, shortID string) (bool, error) {
	const op = "shortener.redis.Exists"

	n, err := r.client.Exists(ctx, r.key(shortID)).Result()
	if err != nil {
		return false, errx.E(op, errx.Unavailable, err)
	}
	return n > 0, nil
}

func (r *redisRepo) Create(ctx context.Context, u URL) (URL, error) {
	const op = "shortener.redis.Create"

	if u.ID == uuid.Nil {
		id, err := r.newID()
		if err != nil {
			return URL{}, errx.E(op, errx.Unavailable, err)
		}
		u.ID = id
	}
	u.CreatedAt = r.now().UTC()
	u.AccessCount = 0
	u.LastAccessedAt = nil

	data, err := json.Marshal(redisRecord{
		ID:          u.ID,
		ShortID:     u.ShortID,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt,
	})
	if err != nil {
		return URL{}, errx.E(op, errx.Internal, err)
	}

	ok, err := r.client.SetNX(ctx, r.key(u.ShortID), data, 0).Result()
	if err != nil {
		return URL{}, errx.E(op, errx.Unavailable, err)
	}
	if !ok {
		return URL{}, errx.E(op, errx.Conflict, fmt.Errorf("%w: %s", ErrDuplicateShortID, u.ShortID))
	}
	return u, nil
}

func (r *redisRepo) GetByShortID(ctx context.Context, shortID string) (URL, error) {
	const op = "shortener.redis.GetByShortID"

	u, err := r.read(ctx, shortID)
	if err != nil {
		return URL{}, errx.E(op, errx.KindOf(err), err)
	}
	return u, nil
}

func (r *redisRepo) ResolveAndTrack(ctx context.Context, shortID string) (URL, error) {
	const op = "shortener.redis.ResolveAndTrack"

	u, err := r.read(ctx, shortID)
	if err != nil {
		return URL{}, errx.E(op, errx.KindOf(err), err)
	}

	now := r.now().UTC()
	var hits *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, r.hitsKey(shortID))
		pipe.Set(ctx, r.lastKey(shortID), now.Format(time.RFC3339Nano), 0)
		return nil
	})
	if err != nil {
		return URL{}, errx.E(op, errx.Unavailable, err)
	}

	u.AccessCount = hits.Val()
	u.LastAccessedAt = &now
	return u, nil
}

// read loads the record together with its access counters.
func (r *redisRepo) read(ctx context.Context, shortID string) (URL, error) {
	vals, err := r.client.MGet(ctx, r.key(shortID), r.hitsKey(shortID), r.lastKey(shortID)).Result()
	if err != nil {
		return URL{}, errx.E("", errx.Unavailable, err)
	}

	raw, ok := vals[0].(string)
	if !ok {
		return URL{}, errx.E("", errx.NotFound, fmt.Errorf("short id %q not found", shortID))
	}

	var rec redisRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return URL{}, errx.E("", errx.Internal, fmt.Errorf("decode record: %w", err))
	}

	u := URL{
		ID:          rec.ID,
		ShortID:     rec.ShortID,
		OriginalURL: rec.OriginalURL,
		CreatedAt:   rec.CreatedAt,
	}
	if s, ok := vals[1].(string); ok {
		if u.AccessCount, err = strconv.ParseInt(s, 10, 64); err != nil {
			return URL{}, errx.E("", errx.Internal, fmt.Errorf("decode hits: %w", err))
		}
	}
	if s, ok := vals[2].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return URL{}, errx.E("", errx.Internal, fmt.Errorf("decode last access: %w", err))
		}
		u.LastAccessedAt = &t
	}
	return u, nil
}
