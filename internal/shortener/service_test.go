package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sundayezeilo/slugshortener/internal/counter"
	"github.com/sundayezeilo/slugshortener/internal/errx"
	"github.com/sundayezeilo/slugshortener/sluggen"
)

var tiny = sluggen.Alphabets{First: "ab", Second: "xy", Last: "01"}

/***************
 * Mocks
 ***************/

// mockRepository implements Repository for testing.
type mockRepository struct {
	existsFunc          func(ctx context.Context, shortID string) (bool, error)
	createFunc          func(ctx context.Context, u URL) (URL, error)
	getByShortIDFunc    func(ctx context.Context, shortID string) (URL, error)
	resolveAndTrackFunc func(ctx context.Context, shortID string) (URL, error)

	mu      sync.Mutex
	created []string
	lookups int
}

func (m *mockRepository) Exists(ctx context.Context, shortID string) (bool, error) {
	if m.existsFunc != nil {
		return m.existsFunc(ctx, shortID)
	}
	return false, nil
}

func (m *mockRepository) Create(ctx context.Context, u URL) (URL, error) {
	m.mu.Lock()
	m.created = append(m.created, u.ShortID)
	m.mu.Unlock()

	if m.createFunc != nil {
		return m.createFunc(ctx, u)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	return u, nil
}

func (m *mockRepository) GetByShortID(ctx context.Context, shortID string) (URL, error) {
	m.countLookup()
	if m.getByShortIDFunc != nil {
		return m.getByShortIDFunc(ctx, shortID)
	}
	return URL{}, errx.E("repo.GetByShortID", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) ResolveAndTrack(ctx context.Context, shortID string) (URL, error) {
	m.countLookup()
	if m.resolveAndTrackFunc != nil {
		return m.resolveAndTrackFunc(ctx, shortID)
	}
	return URL{}, errx.E("repo.ResolveAndTrack", errx.NotFound, errors.New("not found"))
}

func (m *mockRepository) countLookup() {
	m.mu.Lock()
	m.lookups++
	m.mu.Unlock()
}

func (m *mockRepository) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// mockCounter implements sluggen.StateStore and records saved states.
type mockCounter struct {
	state    sluggen.State
	loadFunc func(ctx context.Context) (sluggen.State, error)
	saveFunc func(ctx context.Context, st sluggen.State) error
	saved    []sluggen.State
}

func (m *mockCounter) Load(ctx context.Context) (sluggen.State, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx)
	}
	return m.state, nil
}

func (m *mockCounter) Save(ctx context.Context, st sluggen.State) error {
	if m.saveFunc != nil {
		if err := m.saveFunc(ctx, st); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, st)
	m.state = st
	return nil
}

func conflictErr(shortID string) error {
	return errx.E("repo.Create", errx.Conflict, fmt.Errorf("%w: %s", ErrDuplicateShortID, shortID))
}

func takenIn(ids ...string) func(context.Context, string) (bool, error) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(_ context.Context, shortID string) (bool, error) {
		return set[shortID], nil
	}
}

func newTestService(t *testing.T, repo Repository, c sluggen.StateStore, opts ...sluggen.Option) Service {
	t.Helper()

	gen, err := sluggen.New(append([]sluggen.Option{sluggen.WithAlphabets(tiny)}, opts...)...)
	if err != nil {
		t.Fatalf("sluggen.New() error: %v", err)
	}
	svc, err := NewService(repo, &ServiceConfig{Counter: c, Generator: gen})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}
	return svc
}

/***************
 * Constructor Tests
 ***************/

func TestNewService(t *testing.T) {
	t.Run("requires a repository", func(t *testing.T) {
		if _, err := NewService(nil, &ServiceConfig{Counter: &mockCounter{}}); err == nil {
			t.Fatal("NewService() expected error, got nil")
		}
	})

	t.Run("requires a counter", func(t *testing.T) {
		if _, err := NewService(&mockRepository{}, nil); err == nil {
			t.Fatal("NewService() with nil config expected error, got nil")
		}
		if _, err := NewService(&mockRepository{}, &ServiceConfig{}); err == nil {
			t.Fatal("NewService() without counter expected error, got nil")
		}
	})

	t.Run("defaults to production alphabets", func(t *testing.T) {
		svc, err := NewService(&mockRepository{}, &ServiceConfig{Counter: &mockCounter{}})
		if err != nil {
			t.Fatalf("NewService() unexpected error: %v", err)
		}

		u, err := svc.Shorten(context.Background(), "https://example.com")
		if err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}
		if want := sluggen.Render(sluggen.Default(), sluggen.State{}); u.ShortID != want {
			t.Errorf("ShortID = %q, want %q", u.ShortID, want)
		}
	})
}

/***************
 * Shorten
 ***************/

func TestServiceShorten(t *testing.T) {
	ctx := context.Background()

	t.Run("first call takes the zero slot and saves the next one", func(t *testing.T) {
		repo := &mockRepository{}
		c := &mockCounter{}

		u, err := newTestService(t, repo, c).Shorten(ctx, "https://example.com/a")
		if err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}
		if u.ShortID != "ax0" || u.OriginalURL != "https://example.com/a" {
			t.Errorf("Shorten() = %+v", u)
		}
		if len(c.saved) != 1 || c.saved[0] != (sluggen.State{Last: 1}) {
			t.Errorf("saved = %v, want [{0,0,1}]", c.saved)
		}
	})

	t.Run("consecutive calls walk the odometer", func(t *testing.T) {
		svc := newTestService(t, &mockRepository{}, &mockCounter{})

		var got []string
		for range 3 {
			u, err := svc.Shorten(ctx, "https://example.com")
			if err != nil {
				t.Fatalf("Shorten() unexpected error: %v", err)
			}
			got = append(got, u.ShortID)
		}
		if strings.Join(got, ",") != "ax0,ax1,ay0" {
			t.Errorf("slugs = %v, want [ax0 ax1 ay0]", got)
		}
	})

	t.Run("skips slugs the oracle reports taken", func(t *testing.T) {
		repo := &mockRepository{existsFunc: takenIn("ax0", "ax1")}
		c := &mockCounter{}

		u, err := newTestService(t, repo, c).Shorten(ctx, "https://example.com")
		if err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}
		if u.ShortID != "ay0" {
			t.Errorf("ShortID = %q, want ay0", u.ShortID)
		}
		if c.state != (sluggen.State{Second: 1, Last: 1}) {
			t.Errorf("counter = %s, want {0,1,1}", c.state)
		}
		if len(repo.created) != 1 {
			t.Errorf("Create called %d times, want 1", len(repo.created))
		}
	})

	t.Run("wraps around at the end of the space", func(t *testing.T) {
		c := &mockCounter{state: sluggen.State{First: 1, Second: 1, Last: 1}}

		u, err := newTestService(t, &mockRepository{}, c).Shorten(ctx, "https://example.com")
		if err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}
		if u.ShortID != "by1" {
			t.Errorf("ShortID = %q, want by1", u.ShortID)
		}
		if c.state != (sluggen.State{}) {
			t.Errorf("counter = %s, want {0,0,0}", c.state)
		}
	})

	t.Run("retries past a slug lost to a concurrent insert", func(t *testing.T) {
		repo := &mockRepository{}
		repo.createFunc = func(_ context.Context, u URL) (URL, error) {
			if u.ShortID == "ax0" {
				return URL{}, conflictErr(u.ShortID)
			}
			u.ID = uuid.New()
			return u, nil
		}
		c := &mockCounter{}

		u, err := newTestService(t, repo, c).Shorten(ctx, "https://example.com")
		if err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}
		if u.ShortID != "ax1" {
			t.Errorf("ShortID = %q, want ax1", u.ShortID)
		}
		if strings.Join(repo.created, ",") != "ax0,ax1" {
			t.Errorf("Create calls = %v, want [ax0 ax1]", repo.created)
		}
		want := []sluggen.State{{Last: 1}, {Second: 1}}
		if len(c.saved) != 2 || c.saved[0] != want[0] || c.saved[1] != want[1] {
			t.Errorf("saved = %v, want %v", c.saved, want)
		}
	})

	t.Run("logs how far into the space a lost slug was", func(t *testing.T) {
		repo := &mockRepository{}
		repo.createFunc = func(_ context.Context, u URL) (URL, error) {
			if u.ShortID == "ay0" {
				return URL{}, conflictErr(u.ShortID)
			}
			return u, nil
		}
		gen, err := sluggen.New(sluggen.WithAlphabets(tiny))
		if err != nil {
			t.Fatalf("sluggen.New() error: %v", err)
		}
		var buf bytes.Buffer
		svc, err := NewService(repo, &ServiceConfig{
			Counter:   &mockCounter{state: sluggen.State{Second: 1}},
			Generator: gen,
			Logger:    slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		})
		if err != nil {
			t.Fatalf("NewService() error: %v", err)
		}

		if _, err := svc.Shorten(ctx, "https://example.com"); err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", buf.String(), err)
		}
		if entry["short_id"] != "ay0" {
			t.Errorf("short_id = %v, want ay0", entry["short_id"])
		}
		// ay0 is {0,1,0}: third of eight
		if entry["position"] != float64(2) || entry["space"] != float64(8) {
			t.Errorf("position/space = %v/%v, want 2/8", entry["position"], entry["space"])
		}
	})

	t.Run("oracle rejections and conflicts share one budget", func(t *testing.T) {
		repo := &mockRepository{existsFunc: takenIn("ax0")}
		repo.createFunc = func(_ context.Context, u URL) (URL, error) {
			if u.ShortID == "ax1" {
				return URL{}, conflictErr(u.ShortID)
			}
			return u, nil
		}

		u, err := newTestService(t, repo, &mockCounter{}, sluggen.WithMaxAttempts(3)).Shorten(ctx, "https://example.com")
		if err != nil {
			t.Fatalf("Shorten() unexpected error: %v", err)
		}
		if u.ShortID != "ay0" {
			t.Errorf("ShortID = %q, want ay0", u.ShortID)
		}
	})

	t.Run("budget spent on rejections and conflicts is Exhausted", func(t *testing.T) {
		repo := &mockRepository{existsFunc: takenIn("ax0", "ay0")}
		repo.createFunc = func(_ context.Context, u URL) (URL, error) {
			return URL{}, conflictErr(u.ShortID)
		}

		_, err := newTestService(t, repo, &mockCounter{}, sluggen.WithMaxAttempts(3)).Shorten(ctx, "https://example.com")
		if errx.KindOf(err) != errx.Exhausted {
			t.Fatalf("Shorten() kind = %v, want Exhausted (err: %v)", errx.KindOf(err), err)
		}
		if !errors.Is(err, sluggen.ErrSpaceExhausted) {
			t.Errorf("Shorten() error = %v, want ErrSpaceExhausted", err)
		}
		if strings.Join(repo.created, ",") != "ax1" {
			t.Errorf("Create calls = %v, want [ax1]", repo.created)
		}
	})

	t.Run("full space is Exhausted without inserting", func(t *testing.T) {
		repo := &mockRepository{existsFunc: func(context.Context, string) (bool, error) { return true, nil }}
		c := &mockCounter{}

		_, err := newTestService(t, repo, c).Shorten(ctx, "https://example.com")
		if errx.KindOf(err) != errx.Exhausted {
			t.Fatalf("Shorten() kind = %v, want Exhausted", errx.KindOf(err))
		}
		if !errors.Is(err, sluggen.ErrSpaceExhausted) {
			t.Errorf("Shorten() error = %v, want ErrSpaceExhausted", err)
		}
		if len(repo.created) != 0 || len(c.saved) != 0 {
			t.Errorf("created/saved = %v/%v, want none", repo.created, c.saved)
		}
	})

	t.Run("every insert conflicting is Exhausted", func(t *testing.T) {
		repo := &mockRepository{createFunc: func(_ context.Context, u URL) (URL, error) {
			return URL{}, conflictErr(u.ShortID)
		}}

		_, err := newTestService(t, repo, &mockCounter{}).Shorten(ctx, "https://example.com")
		if errx.KindOf(err) != errx.Exhausted {
			t.Fatalf("Shorten() kind = %v, want Exhausted", errx.KindOf(err))
		}
		if len(repo.created) != tiny.Space() {
			t.Errorf("Create called %d times, want %d", len(repo.created), tiny.Space())
		}
	})
}

func TestServiceShorten_Failures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	tests := []struct {
		name        string
		repo        *mockRepository
		counter     *mockCounter
		wantKind    errx.Kind
		wantCreates int
	}{
		{
			name:     "counter load failure",
			repo:     &mockRepository{},
			counter:  &mockCounter{loadFunc: func(context.Context) (sluggen.State, error) { return sluggen.State{}, boom }},
			wantKind: errx.Unavailable,
		},
		{
			name: "counter load keeps its own kind",
			repo: &mockRepository{},
			counter: &mockCounter{loadFunc: func(context.Context) (sluggen.State, error) {
				return sluggen.State{}, errx.E("counter.Load", errx.Internal, boom)
			}},
			wantKind: errx.Internal,
		},
		{
			name:     "oracle failure",
			repo:     &mockRepository{existsFunc: func(context.Context, string) (bool, error) { return false, boom }},
			counter:  &mockCounter{},
			wantKind: errx.Unavailable,
		},
		{
			name:     "counter save failure stops before insert",
			repo:     &mockRepository{},
			counter:  &mockCounter{saveFunc: func(context.Context, sluggen.State) error { return boom }},
			wantKind: errx.Unavailable,
		},
		{
			name: "insert failure other than conflict",
			repo: &mockRepository{createFunc: func(context.Context, URL) (URL, error) {
				return URL{}, errx.E("repo.Create", errx.Unavailable, boom)
			}},
			counter:     &mockCounter{},
			wantKind:    errx.Unavailable,
			wantCreates: 1,
		},
		{
			name:     "corrupt counter state",
			repo:     &mockRepository{},
			counter:  &mockCounter{state: sluggen.State{First: 7}},
			wantKind: errx.Internal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestService(t, tt.repo, tt.counter).Shorten(ctx, "https://example.com")
			if err == nil {
				t.Fatal("Shorten() expected error, got nil")
			}
			if errx.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %v, want %v (err: %v)", errx.KindOf(err), tt.wantKind, err)
			}
			if errx.OpOf(err) != "shortener.service.Shorten" {
				t.Errorf("op = %q", errx.OpOf(err))
			}
			if len(tt.repo.created) != tt.wantCreates {
				t.Errorf("Create called %d times, want %d", len(tt.repo.created), tt.wantCreates)
			}
		})
	}
}

func TestServiceShorten_ValidatesURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "example.com"},
		{"wrong scheme", "ftp://example.com"},
		{"no host", "http://"},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxURLLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &mockCounter{loadFunc: func(context.Context) (sluggen.State, error) {
				t.Fatal("counter loaded for invalid URL")
				return sluggen.State{}, nil
			}}

			_, err := newTestService(t, &mockRepository{}, c).Shorten(context.Background(), tt.url)
			if errx.KindOf(err) != errx.Invalid {
				t.Errorf("kind = %v, want Invalid (err: %v)", errx.KindOf(err), err)
			}
		})
	}
}

func TestServiceShorten_ConcurrentCallsNeverDuplicate(t *testing.T) {
	svc, err := NewService(NewMemoryRepository(nil), &ServiceConfig{
		Counter: counter.NewMemory(sluggen.Default()),
	})
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	const n = 64
	ids := make([]string, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			u, err := svc.Shorten(context.Background(), fmt.Sprintf("https://example.com/%d", i))
			ids[i] = u.ShortID
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Shorten() error: %v", err)
	}

	seen := make(map[string]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate short id %q", id)
		}
		seen[id] = true
	}
}

/***************
 * Lookups
 ***************/

func TestServiceResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns original URL", func(t *testing.T) {
		repo := &mockRepository{resolveAndTrackFunc: func(_ context.Context, shortID string) (URL, error) {
			return URL{ShortID: shortID, OriginalURL: "https://example.com", AccessCount: 1}, nil
		}}

		got, err := newTestService(t, repo, &mockCounter{}).Resolve(ctx, "ax0")
		if err != nil {
			t.Fatalf("Resolve() unexpected error: %v", err)
		}
		if got != "https://example.com" {
			t.Errorf("Resolve() = %q", got)
		}
	})

	t.Run("empty id is Invalid", func(t *testing.T) {
		_, err := newTestService(t, &mockRepository{}, &mockCounter{}).Resolve(ctx, "")
		if errx.KindOf(err) != errx.Invalid {
			t.Errorf("kind = %v, want Invalid", errx.KindOf(err))
		}
	})

	t.Run("id outside the alphabets is NotFound without a lookup", func(t *testing.T) {
		repo := &mockRepository{}
		for _, id := range []string{"ax", "ax00", "zz9", "a-0"} {
			_, err := newTestService(t, repo, &mockCounter{}).Resolve(ctx, id)
			if errx.KindOf(err) != errx.NotFound {
				t.Errorf("Resolve(%q) kind = %v, want NotFound", id, errx.KindOf(err))
			}
		}
		if n := repo.lookupCount(); n != 0 {
			t.Errorf("repository hit %d times, want 0", n)
		}
	})

	t.Run("repository kind is preserved", func(t *testing.T) {
		repo := &mockRepository{resolveAndTrackFunc: func(context.Context, string) (URL, error) {
			return URL{}, errx.E("repo", errx.Unavailable, errors.New("timeout"))
		}}

		_, err := newTestService(t, repo, &mockCounter{}).Resolve(ctx, "by1")
		if errx.KindOf(err) != errx.Unavailable {
			t.Errorf("kind = %v, want Unavailable", errx.KindOf(err))
		}
		if errx.OpOf(err) != "shortener.service.Resolve" {
			t.Errorf("op = %q", errx.OpOf(err))
		}
	})
}

func TestServiceGetByShortID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns record", func(t *testing.T) {
		want := URL{ID: uuid.New(), ShortID: "ay1", OriginalURL: "https://example.com", AccessCount: 3}
		repo := &mockRepository{getByShortIDFunc: func(context.Context, string) (URL, error) { return want, nil }}

		got, err := newTestService(t, repo, &mockCounter{}).GetByShortID(ctx, "ay1")
		if err != nil {
			t.Fatalf("GetByShortID() unexpected error: %v", err)
		}
		if got.ID != want.ID || got.AccessCount != 3 {
			t.Errorf("GetByShortID() = %+v, want %+v", got, want)
		}
	})

	t.Run("missing record is NotFound", func(t *testing.T) {
		_, err := newTestService(t, &mockRepository{}, &mockCounter{}).GetByShortID(ctx, "ay1")
		if errx.KindOf(err) != errx.NotFound {
			t.Errorf("kind = %v, want NotFound", errx.KindOf(err))
		}
	})
}
