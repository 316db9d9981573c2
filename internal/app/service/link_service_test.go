package service

import (
	"context"
	"errors"
	mathrand "math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linkvault/linkvault/internal/app/model"
	"github.com/linkvault/linkvault/internal/app/repository"
	"github.com/linkvault/linkvault/internal/app/risk"
	"github.com/linkvault/linkvault/internal/app/shortcode"
)

const (
	safeURL  = "https://example.org/some/page"
	phishURL = "http://192.168.1.1/a//b@c" // IP + @ + http + double slash = 85
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// memoryLinkRepo mimics the store including its unique-index semantics.
type memoryLinkRepo struct {
	mu     sync.Mutex
	links  map[string]*model.Link
	nextID uint

	existsCalls int
}

func newMemoryLinkRepo() *memoryLinkRepo {
	return &memoryLinkRepo{links: map[string]*model.Link{}}
}

func (m *memoryLinkRepo) Create(ctx context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[link.ShortCode]; ok {
		return repository.ErrCodeTaken
	}
	m.nextID++
	link.ID = m.nextID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	cp := *link
	m.links[link.ShortCode] = &cp
	return nil
}

func (m *memoryLinkRepo) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (m *memoryLinkRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	_, ok := m.links[code]
	return ok, nil
}

func (m *memoryLinkRepo) IncrementClicks(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[code]
	if !ok || !link.IsActive {
		return repository.ErrLinkNotFound
	}
	link.ClickCount++
	return nil
}

func (m *memoryLinkRepo) ListActive(ctx context.Context) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Link
	for _, link := range m.links {
		if link.IsActive {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (m *memoryLinkRepo) ListCheckedBefore(ctx context.Context, before time.Time, limit int) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Link
	for _, link := range m.links {
		if !link.IsActive {
			continue
		}
		if link.LastChecked == nil || link.LastChecked.Before(before) {
			out = append(out, *link)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryLinkRepo) AllCodes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := make([]string, 0, len(m.links))
	for code := range m.links {
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *memoryLinkRepo) UpdateRiskScore(ctx context.Context, code string, score int, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[code]
	if !ok {
		return repository.ErrLinkNotFound
	}
	link.RiskScore = score
	at := checkedAt
	link.LastChecked = &at
	return nil
}

// memoryCache mimics the redis fast path, minus TTL expiry.
type memoryCache struct {
	mu     sync.Mutex
	urls   map[string]string
	clicks map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{urls: map[string]string{}, clicks: map[string]int64{}}
}

func (m *memoryCache) GetURL(ctx context.Context, code string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url, ok := m.urls[code]
	return url, ok, nil
}

func (m *memoryCache) SetURL(ctx context.Context, code, originalURL string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[code] = originalURL
	return nil
}

func (m *memoryCache) IncrementClicks(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[code]++
	return nil
}

func (m *memoryCache) GetClicks(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clicks[code], nil
}

func (m *memoryCache) drop(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.urls, code)
}

type stubStatsRepo struct {
	summary *repository.StatsSummary
}

func (s *stubStatsRepo) Summary(ctx context.Context) (*repository.StatsSummary, error) {
	return s.summary, nil
}

type testEnv struct {
	svc   LinkService
	repo  *memoryLinkRepo
	cache *memoryCache
	clock *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newMemoryLinkRepo()
	mc := newMemoryCache()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewLinkService(Deps{
		Links:     repo,
		Stats:     &stubStatsRepo{summary: &repository.StatsSummary{}},
		Cache:     mc,
		Scorer:    risk.NewScorer(),
		Generator: shortcode.NewGenerator(7, mathrand.New(mathrand.NewSource(1))),
		Filter:    shortcode.NewFilter(1000, 0.01),
		NowFunc:   clock.Now,
	})
	return &testEnv{svc: svc, repo: repo, cache: mc, clock: clock}
}

func TestLinkService_CreateGeneratedCode(t *testing.T) {
	env := newTestEnv(t)

	link, err := env.svc.CreateLink(context.Background(), CreateLinkInput{OriginalURL: safeURL})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if len(link.ShortCode) != 7 {
		t.Fatalf("expected code of length 7, got %q", link.ShortCode)
	}
	for _, c := range link.ShortCode {
		if !strings.ContainsRune(shortcode.Charset, c) {
			t.Fatalf("code %q contains %q outside the charset", link.ShortCode, c)
		}
	}
	if !link.IsActive {
		t.Fatal("new links must be active")
	}
	if link.ClickCount != 0 {
		t.Fatalf("expected zero clicks on creation, got %d", link.ClickCount)
	}
}

func TestLinkService_CreateRejectsSuspicious(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateLink(context.Background(), CreateLinkInput{OriginalURL: phishURL})
	var suspicious *SuspiciousURLError
	if !errors.As(err, &suspicious) {
		t.Fatalf("expected SuspiciousURLError, got %v", err)
	}
	if suspicious.Result.RiskScore <= 70 {
		t.Fatalf("expected score above 70, got %d", suspicious.Result.RiskScore)
	}
	if len(suspicious.Result.Reasons) == 0 {
		t.Fatal("rejection must carry reasons")
	}
}

func TestLinkService_CreateInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: "not a url"}); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: "ftp://example.com/x"}); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL for non-http scheme, got %v", err)
	}
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "has space"}); !errors.Is(err, ErrInvalidCustomCode) {
		t.Fatalf("expected ErrInvalidCustomCode, got %v", err)
	}
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "morethantenchars"}); !errors.Is(err, ErrInvalidCustomCode) {
		t.Fatalf("expected ErrInvalidCustomCode for long code, got %v", err)
	}
	days := -1
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, ExpiresInDays: &days}); !errors.Is(err, ErrInvalidExpiry) {
		t.Fatalf("expected ErrInvalidExpiry, got %v", err)
	}
}

func TestLinkService_CustomCodeRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	link, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "abc123"})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if link.ShortCode != "abc123" {
		t.Fatalf("expected custom code to be used, got %q", link.ShortCode)
	}

	dest, err := env.svc.Resolve(ctx, "abc123")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if dest != safeURL {
		t.Fatalf("expected %q, got %q", safeURL, dest)
	}
}

func TestLinkService_DuplicateCustomCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "mycode"})
	if err != nil {
		t.Fatalf("first CreateLink returned error: %v", err)
	}

	_, err = env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: "https://other.example.org/", CustomCode: "mycode"})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	// The first link is unaffected.
	got, err := env.svc.GetLink(ctx, "mycode")
	if err != nil {
		t.Fatalf("GetLink returned error: %v", err)
	}
	if got.OriginalURL != first.OriginalURL {
		t.Fatalf("first link was modified: %q", got.OriginalURL)
	}
}

func TestLinkService_ConcurrentCustomCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "race01"})
			results <- err
		}()
	}

	var successes, duplicates int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateCode):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || duplicates != 1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d duplicates", successes, duplicates)
	}
}

func TestLinkService_ClickAccounting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	link, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "clicky"})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if link.ClickCount != 0 {
		t.Fatalf("expected zero clicks after creation, got %d", link.ClickCount)
	}

	// Creation warmed the cache; force one store-path resolution first.
	env.cache.drop("clicky")
	if _, err := env.svc.Resolve(ctx, "clicky"); err != nil {
		t.Fatalf("store-path Resolve returned error: %v", err)
	}

	// Two more resolutions ride the warm cache and only bump the
	// cache-side counter. The store count deliberately undercounts.
	for i := 0; i < 2; i++ {
		if _, err := env.svc.Resolve(ctx, "clicky"); err != nil {
			t.Fatalf("cache-path Resolve returned error: %v", err)
		}
	}

	stored, err := env.svc.GetLink(ctx, "clicky")
	if err != nil {
		t.Fatalf("GetLink returned error: %v", err)
	}
	if stored.ClickCount != 1 {
		t.Fatalf("expected exactly 1 store-path click, got %d", stored.ClickCount)
	}

	cached, err := env.cache.GetClicks(ctx, "clicky")
	if err != nil {
		t.Fatalf("GetClicks returned error: %v", err)
	}
	if cached != 3 {
		t.Fatalf("expected 3 cache-side clicks, got %d", cached)
	}
}

func TestLinkService_ResolveNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Resolve(context.Background(), "missing")
	if !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestLinkService_ResolveInactive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "gone"}); err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}

	// Soft-delete behind the service's back; resolution must miss it.
	env.repo.mu.Lock()
	env.repo.links["gone"].IsActive = false
	env.repo.mu.Unlock()
	env.cache.drop("gone")

	_, err := env.svc.Resolve(ctx, "gone")
	if !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound for inactive link, got %v", err)
	}
}

func TestLinkService_ResolveExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	days := 0
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "expired", ExpiresInDays: &days}); err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}

	env.clock.Advance(time.Second)

	_, err := env.svc.Resolve(ctx, "expired")
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
}

func TestLinkService_ExpiredLinkNotCacheWarmed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	days := 0
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "nocache", ExpiresInDays: &days}); err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}

	if _, ok, _ := env.cache.GetURL(ctx, "nocache"); ok {
		t.Fatal("an already-expired link must not be cache warmed")
	}
}

func TestLinkService_FutureExpiryResolves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	days := 7
	if _, err := env.svc.CreateLink(ctx, CreateLinkInput{OriginalURL: safeURL, CustomCode: "weekly", ExpiresInDays: &days}); err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}

	if _, err := env.svc.Resolve(ctx, "weekly"); err != nil {
		t.Fatalf("Resolve before expiry returned error: %v", err)
	}

	env.clock.Advance(8 * 24 * time.Hour)
	env.cache.drop("weekly")

	_, err := env.svc.Resolve(ctx, "weekly")
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired after the window, got %v", err)
	}
}

type alwaysTakenRepo struct {
	*memoryLinkRepo
	attempts int
}

func (m *alwaysTakenRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	m.attempts++
	return true, nil
}

func TestLinkService_GenerationExhausted(t *testing.T) {
	repo := &alwaysTakenRepo{memoryLinkRepo: newMemoryLinkRepo()}

	svc := NewLinkService(Deps{
		Links:     repo,
		Stats:     &stubStatsRepo{summary: &repository.StatsSummary{}},
		Cache:     newMemoryCache(),
		Scorer:    risk.NewScorer(),
		Generator: shortcode.NewGenerator(7, mathrand.New(mathrand.NewSource(3))),
		NowFunc:   time.Now,
	})

	_, err := svc.CreateLink(context.Background(), CreateLinkInput{OriginalURL: safeURL})
	if !errors.Is(err, ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if repo.attempts != 10 {
		t.Fatalf("expected exactly 10 generation attempts, got %d", repo.attempts)
	}
}

func TestLinkService_ScoreURLPassthrough(t *testing.T) {
	env := newTestEnv(t)

	res := env.svc.ScoreURL("https://github.com/owner/repo")
	if res.RiskScore != 0 {
		t.Fatalf("expected trusted domain score 0, got %d", res.RiskScore)
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != "Verified trusted domain" {
		t.Fatalf("expected trust reason, got %v", res.Reasons)
	}
}
