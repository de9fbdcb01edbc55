package shortener

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/slugshortener/internal/db"
)

const uniqueViolationCode = "23505"

func isShortIDUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode &&
		pgErr.ConstraintName == db.URLShortIDUniqueConstraint
}
