package httpx

import (
	"net/http"

	"github.com/sundayezeilo/slugshortener/internal/errx"
)

// StatusOf maps an error kind to the HTTP status the API answers with.
func StatusOf(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	case errx.Exhausted:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf maps an error kind to the machine-readable code in error bodies.
func CodeOf(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Invalid:
		return "invalid_input"
	case errx.Unavailable:
		return "unavailable"
	case errx.Exhausted:
		return "space_exhausted"
	default:
		return "internal_error"
	}
}

// WriteKindError writes err using the status and code of its kind.
// message is what the client sees; err itself is never exposed.
func WriteKindError(w http.ResponseWriter, err error, message string) {
	kind := errx.KindOf(err)
	WriteError(w, StatusOf(kind), CodeOf(kind), message, nil)
}
