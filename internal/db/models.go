package db

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Url struct {
	ID             uuid.UUID
	ShortID        string
	OriginalUrl    string
	AccessCount    int64
	CreatedAt      pgtype.Timestamptz
	LastAccessedAt pgtype.Timestamptz
}

type SlugCounter struct {
	FirstIndex  int32
	SecondIndex int32
	LastIndex   int32
}
