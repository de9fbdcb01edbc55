package shortener

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/internal/httpx"
)

// legacyNumericID matches the two or three digit IDs of the previous site.
var legacyNumericID = regexp.MustCompile(`^\d{2,3}$`)

// ShortenRequest is the JSON body of POST /api/shorten.
type ShortenRequest struct {
	OriginalURL string `json:"originalUrl"`
}

// ShortenResponse is returned for a newly created short URL.
type ShortenResponse struct {
	ShortID     string `json:"shortId"`
	OriginalURL string `json:"originalUrl"`
	ShortURL    string `json:"shortUrl"`
}

// URLResponse describes a stored short URL and its access statistics.
type URLResponse struct {
	ShortID        string     `json:"shortId"`
	OriginalURL    string     `json:"originalUrl"`
	ShortURL       string     `json:"shortUrl"`
	AccessCount    int64      `json:"accessCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt,omitempty"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	baseURL    string
	legacyBase string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // prefix of returned short URLs, e.g. "https://sho.rt"
	// LegacyRedirectBase, when set, receives redirects for numeric IDs
	// such as /42 as <LegacyRedirectBase>/42 without a store lookup.
	LegacyRedirectBase string
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:    cfg.Service,
		logger:     logger,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		legacyBase: strings.TrimRight(cfg.LegacyRedirectBase, "/"),
	}
}

// ShortenURL handles POST /api/shorten.
func (h *Handler) ShortenURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", nil)
		return
	}

	req, err := httpx.DecodeJSON[ShortenRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		status := http.StatusBadRequest
		if errors.Is(err, httpx.ErrUnsupportedMediaType) {
			status = http.StatusUnsupportedMediaType
		}
		httpx.WriteError(w, status, "invalid_request", err.Error(), nil)
		return
	}

	if err := validateShortenRequest(req); err != nil {
		logger.WarnContext(ctx, "request validation failed", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	u, err := h.service.Shorten(ctx, req.OriginalURL)
	if err != nil {
		h.handleShortenError(ctx, logger, w, err)
		return
	}

	logger.InfoContext(ctx, "short url created",
		"url_id", u.ID.String(),
		"short_id", u.ShortID,
	)

	httpx.WriteJSON(w, http.StatusCreated, ShortenResponse{
		ShortID:     u.ShortID,
		OriginalURL: u.OriginalURL,
		ShortURL:    h.shortURL(u.ShortID),
	})
}

// ResolveURL handles GET /{shortId} with a permanent redirect.
func (h *Handler) ResolveURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	shortID := r.PathValue("shortId")
	if shortID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Missing shortId parameter", nil)
		return
	}

	if h.legacyBase != "" && legacyNumericID.MatchString(shortID) {
		logger.InfoContext(ctx, "legacy numeric redirect", "short_id", shortID)
		httpx.Redirect(w, h.legacyBase+"/"+shortID, http.StatusMovedPermanently)
		return
	}

	originalURL, err := h.service.Resolve(ctx, shortID)
	if err != nil {
		h.handleLookupError(ctx, logger, w, err, shortID)
		return
	}

	logger.InfoContext(ctx, "short id resolved",
		"short_id", shortID,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	httpx.Redirect(w, originalURL, http.StatusMovedPermanently)
}

// GetURL handles GET /api/urls/{shortId}. It does not count as an access.
func (h *Handler) GetURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	shortID := r.PathValue("shortId")
	u, err := h.service.GetByShortID(ctx, shortID)
	if err != nil {
		h.handleLookupError(ctx, logger, w, err, shortID)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, URLResponse{
		ShortID:        u.ShortID,
		OriginalURL:    u.OriginalURL,
		ShortURL:       h.shortURL(u.ShortID),
		AccessCount:    u.AccessCount,
		CreatedAt:      u.CreatedAt,
		LastAccessedAt: u.LastAccessedAt,
	})
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

func (h *Handler) shortURL(shortID string) string {
	return h.baseURL + "/" + shortID
}

func (h *Handler) handleShortenError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)
	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid:
		logger.WarnContext(ctx, "invalid shorten request", attrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Exhausted:
		logger.ErrorContext(ctx, "slug space exhausted", attrs...)
		httpx.WriteKindError(w, err, "No short IDs are left to allocate.")

	case errx.Unavailable:
		logger.ErrorContext(ctx, "store unavailable", attrs...)
		httpx.WriteKindError(w, err, "Unable to create short URL at this time. Please try again.")

	default:
		logger.ErrorContext(ctx, "unexpected error creating short url", attrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short URL at this time. Please try again.", nil)
	}
}

func (h *Handler) handleLookupError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error, shortID string) {
	kind := errx.KindOf(err)
	attrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"short_id", shortID,
	}

	switch kind {
	case errx.NotFound:
		logger.InfoContext(ctx, "short id not found", attrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found", "URL not found", nil)

	case errx.Invalid:
		logger.WarnContext(ctx, "invalid short id", attrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_short_id", err.Error(), nil)

	case errx.Unavailable:
		logger.ErrorContext(ctx, "store unavailable", attrs...)
		httpx.WriteKindError(w, err, "Unable to resolve this URL at this time.")

	default:
		logger.ErrorContext(ctx, "unexpected error resolving short id", attrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this URL at this time.", nil)
	}
}

func validateShortenRequest(req ShortenRequest) error {
	if req.OriginalURL == "" {
		return errors.New("missing originalUrl parameter")
	}
	return nil
}
