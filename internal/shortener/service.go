package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/sluggen"
)

const MaxURLLength = 2048

// Service defines the business logic operations for URL shortening.
type Service interface {
	Shorten(ctx context.Context, originalURL string) (URL, error)
	GetByShortID(ctx context.Context, shortID string) (URL, error)
	Resolve(ctx context.Context, shortID string) (string, error)
}

type service struct {
	repo      Repository
	counter   sluggen.StateStore
	generator *sluggen.Generator
	logger    *slog.Logger
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Counter   sluggen.StateStore // required
	Generator *sluggen.Generator // defaults to the production alphabets
	Logger    *slog.Logger
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) (Service, error) {
	if repo == nil {
		return nil, errors.New("shortener: repository is required")
	}
	if config == nil || config.Counter == nil {
		return nil, errors.New("shortener: counter store is required")
	}

	gen := config.Generator
	if gen == nil {
		var err error
		if gen, err = sluggen.New(); err != nil {
			return nil, fmt.Errorf("shortener: %w", err)
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		repo:      repo,
		counter:   config.Counter,
		generator: gen,
		logger:    logger,
	}, nil
}

// Shorten allocates the next free short ID and stores originalURL under it.
//
// The counter is saved before the insert. When the insert loses a race for the
// same short ID the search resumes just past it. Oracle rejections and lost
// races draw from one attempt budget; running out yields errx.Exhausted.
func (s *service) Shorten(ctx context.Context, originalURL string) (URL, error) {
	const op = "shortener.service.Shorten"

	if err := validateURL(originalURL); err != nil {
		return URL{}, errx.E(op, errx.Invalid, err)
	}

	st, err := s.counter.Load(ctx)
	if err != nil {
		return URL{}, errx.E(op, kindOr(err, errx.Unavailable), err)
	}

	oracle := sluggen.OracleFunc(func(ctx context.Context, slug string) (bool, error) {
		taken, err := s.repo.Exists(ctx, slug)
		return !taken, err
	})

	budget := s.generator.MaxAttempts()
	for budget > 0 {
		res, err := s.generator.NextWithin(ctx, st, oracle, budget)
		switch {
		case errors.Is(err, sluggen.ErrSpaceExhausted):
			return URL{}, errx.E(op, errx.Exhausted, err)
		case errors.Is(err, sluggen.ErrInvalidState):
			return URL{}, errx.E(op, errx.Internal, err)
		case err != nil:
			return URL{}, errx.E(op, kindOr(err, errx.Unavailable), err)
		}
		budget -= res.Attempts

		if err := s.counter.Save(ctx, res.Next); err != nil {
			return URL{}, errx.E(op, kindOr(err, errx.Unavailable), err)
		}

		created, err := s.repo.Create(ctx, URL{
			ShortID:     res.Slug,
			OriginalURL: originalURL,
		})
		if err == nil {
			return created, nil
		}
		if !errx.Is(err, errx.Conflict) {
			return URL{}, errx.E(op, kindOr(err, errx.Unavailable), err)
		}

		s.logger.DebugContext(ctx, "short id claimed concurrently, retrying",
			"short_id", res.Slug,
			"position", sluggen.Ordinal(s.generator.Alphabets(), res.Slot),
			"space", s.generator.Alphabets().Space(),
			"attempts_left", budget,
		)
		st = res.Next
	}

	return URL{}, errx.E(op, errx.Exhausted,
		fmt.Errorf("%w: no free slug after %d attempts", sluggen.ErrSpaceExhausted, s.generator.MaxAttempts()))
}

func (s *service) GetByShortID(ctx context.Context, shortID string) (URL, error) {
	const op = "shortener.service.GetByShortID"

	if err := s.checkShortID(shortID); err != nil {
		return URL{}, errx.E(op, errx.KindOf(err), err)
	}

	u, err := s.repo.GetByShortID(ctx, shortID)
	if err != nil {
		return URL{}, errx.E(op, errx.KindOf(err), err)
	}
	return u, nil
}

func (s *service) Resolve(ctx context.Context, shortID string) (string, error) {
	const op = "shortener.service.Resolve"

	if err := s.checkShortID(shortID); err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}

	u, err := s.repo.ResolveAndTrack(ctx, shortID)
	if err != nil {
		return "", errx.E(op, errx.KindOf(err), err)
	}
	return u.OriginalURL, nil
}

// checkShortID rejects IDs the generator could never have produced, so they
// are answered without a store round trip.
func (s *service) checkShortID(shortID string) error {
	if shortID == "" {
		return errx.E("", errx.Invalid, errors.New("short id cannot be empty"))
	}
	if _, err := s.generator.Alphabets().Parse(shortID); err != nil {
		return errx.E("", errx.NotFound, fmt.Errorf("short id %q not found: %w", shortID, err))
	}
	return nil
}

func kindOr(err error, fallback errx.Kind) errx.Kind {
	if k := errx.KindOf(err); k != errx.Unknown {
		return k
	}
	return fallback
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return errors.New("url too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if parsedURL.Scheme == "" {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}
