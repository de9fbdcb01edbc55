package shortener

import (
	"time"

	"github.com/google/uuid"
)

// URL is a shortened URL record. ShortID and OriginalURL never change after creation.
type URL struct {
	ID             uuid.UUID
	ShortID        string
	OriginalURL    string
	AccessCount    int64
	CreatedAt      time.Time
	LastAccessedAt *time.Time
}
