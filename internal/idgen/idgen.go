// Package idgen produces record identifiers for stored URLs.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Func returns a fresh identifier. Implementations are safe for concurrent use.
type Func func() (uuid.UUID, error)

// Default yields UUID v7 values with one retry.
var Default = V7(1)

// V7 returns a Func producing time-ordered UUID v7 values. A failed read of
// the entropy source is retried up to retries more times.
func V7(retries int) Func {
	retries = max(retries, 0)
	return func() (uuid.UUID, error) {
		var last error
		for range retries + 1 {
			id, err := uuid.NewV7()
			if err == nil {
				return id, nil
			}
			last = err
		}
		return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", retries+1, last)
	}
}

// V4 returns a Func producing random UUID v4 values.
func V4() Func {
	return func() (uuid.UUID, error) {
		return uuid.NewRandom()
	}
}

// ForVersion returns the generator for a UUID version: 7 yields Default, 4 yields V4.
func ForVersion(version int) (Func, error) {
	switch version {
	case 7:
		return Default, nil
	case 4:
		return V4(), nil
	default:
		return nil, fmt.Errorf("unsupported uuid version %d (must be 4 or 7)", version)
	}
}
