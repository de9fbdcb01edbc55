package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/sluggen"
)

// DefaultRedisKey holds the counter document when no key is configured.
const DefaultRedisKey = "slugshortener:counter"

// Redis stores the counter as a JSON document under a single key.
type Redis struct {
	client    redis.Cmdable
	key       string
	alphabets sluggen.Alphabets
}

// NewRedis returns a Redis store under key, or DefaultRedisKey when key is empty.
func NewRedis(client redis.Cmdable, key string, a sluggen.Alphabets) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key, alphabets: a}
}

// Load reads the counter document, creating it at {0,0,0} on first use.
func (r *Redis) Load(ctx context.Context) (sluggen.State, error) {
	const op = "counter.redis.Load"

	zero, err := json.Marshal(sluggen.State{})
	if err != nil {
		return sluggen.State{}, errx.E(op, errx.Internal, err)
	}

	// SETNX makes first use atomic: only one caller creates the document.
	if err := r.client.SetNX(ctx, r.key, zero, 0).Err(); err != nil {
		return sluggen.State{}, errx.E(op, errx.Unavailable, err)
	}

	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return sluggen.State{}, errx.E(op, errx.Unavailable, fmt.Errorf("counter key %q vanished after creation", r.key))
	}
	if err != nil {
		return sluggen.State{}, errx.E(op, errx.Unavailable, err)
	}

	var st sluggen.State
	if err := json.Unmarshal(data, &st); err != nil {
		return sluggen.State{}, errx.E(op, errx.Internal, fmt.Errorf("decode counter: %w", err))
	}
	if err := checkLoaded(op, r.alphabets, st); err != nil {
		return sluggen.State{}, err
	}
	return st, nil
}

// Save overwrites the counter document with st.
func (r *Redis) Save(ctx context.Context, st sluggen.State) error {
	const op = "counter.redis.Save"

	if err := checkSaving(op, r.alphabets, st); err != nil {
		return err
	}

	data, err := json.Marshal(st)
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}
