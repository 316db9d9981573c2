package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/linkvault/linkvault/internal/app/cache"
	"github.com/linkvault/linkvault/internal/app/model"
	"github.com/linkvault/linkvault/internal/app/repository"
	"github.com/linkvault/linkvault/internal/app/risk"
	"github.com/linkvault/linkvault/internal/app/shortcode"
	"github.com/linkvault/linkvault/internal/infra/metrics"
	"go.uber.org/zap"
)

const maxGenerateAttempts = 10

// LinkService defines behaviour-level operations on short links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	Resolve(ctx context.Context, code string) (string, error)
	ScoreURL(rawURL string) risk.Result
	GetLink(ctx context.Context, code string) (*model.Link, error)
	ListActiveLinks(ctx context.Context) ([]model.Link, error)
	Stats(ctx context.Context) (*repository.StatsSummary, error)
}

// Deps bundles the collaborators a link service needs.
type Deps struct {
	Logger    *zap.Logger
	Links     repository.LinkRepository
	Stats     repository.StatsRepository
	Cache     cache.LinkCache
	Scorer    *risk.Scorer
	Generator *shortcode.Generator
	Filter    *shortcode.Filter
	CacheTTL  time.Duration
	NowFunc   func() time.Time
}

type linkService struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	stats    repository.StatsRepository
	cache    cache.LinkCache
	scorer   *risk.Scorer
	gen      *shortcode.Generator
	filter   *shortcode.Filter
	cacheTTL time.Duration
	now      func() time.Time
}

// NewLinkService returns a service implementation wired to the given deps.
func NewLinkService(deps Deps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	now := deps.NowFunc
	if now == nil {
		now = time.Now
	}
	return &linkService{
		logger:   logger,
		links:    deps.Links,
		stats:    deps.Stats,
		cache:    deps.Cache,
		scorer:   deps.Scorer,
		gen:      deps.Generator,
		filter:   deps.Filter,
		cacheTTL: ttl,
		now:      now,
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	OriginalURL   string
	CustomCode    string
	ExpiresInDays *int
}

// CreateLink runs the creation pipeline: risk screening, code assignment,
// durable insert, then best-effort cache warm.
func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateURL(input.OriginalURL); err != nil {
		metrics.Creations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	scored := s.scorer.Score(input.OriginalURL)
	if scored.IsSuspicious {
		metrics.Creations.WithLabelValues("rejected_suspicious").Inc()
		return nil, &SuspiciousURLError{Result: scored}
	}

	expiresAt, err := s.expiryFromDays(input.ExpiresInDays)
	if err != nil {
		metrics.Creations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var link *model.Link
	if input.CustomCode != "" {
		link, err = s.insertCustom(ctx, input, scored.RiskScore, expiresAt)
	} else {
		link, err = s.insertGenerated(ctx, input, scored.RiskScore, expiresAt)
	}
	if err != nil {
		return nil, err
	}

	if s.filter != nil {
		s.filter.Add(link.ShortCode)
	}
	s.warmCache(ctx, link.ShortCode, link.OriginalURL, link.ExpiresAt)

	metrics.Creations.WithLabelValues("created").Inc()
	return link, nil
}

func (s *linkService) insertCustom(ctx context.Context, input CreateLinkInput, score int, expiresAt *time.Time) (*model.Link, error) {
	if !shortcode.Valid(input.CustomCode) {
		metrics.Creations.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCustomCode
	}

	taken, err := s.links.ExistsByCode(ctx, input.CustomCode)
	if err != nil {
		return nil, fmt.Errorf("check custom code: %w", err)
	}
	if taken {
		metrics.Creations.WithLabelValues("duplicate_code").Inc()
		return nil, ErrDuplicateCode
	}

	link := s.newLink(input.OriginalURL, input.CustomCode, score, expiresAt)
	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeTaken) {
			// Lost the pre-check race; the unique index is the arbiter.
			metrics.Creations.WithLabelValues("duplicate_code").Inc()
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("create link: %w", err)
	}
	return link, nil
}

func (s *linkService) insertGenerated(ctx context.Context, input CreateLinkInput, score int, expiresAt *time.Time) (*model.Link, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code := s.gen.Generate(input.OriginalURL)

		// The bloom filter short-circuits the store round trip when the
		// code was definitely never issued.
		if s.filter == nil || s.filter.MayContain(code) {
			taken, err := s.links.ExistsByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("check generated code: %w", err)
			}
			if taken {
				continue
			}
		}

		link := s.newLink(input.OriginalURL, code, score, expiresAt)
		if err := s.links.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrCodeTaken) {
				continue
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
		return link, nil
	}

	metrics.Creations.WithLabelValues("exhausted").Inc()
	return nil, ErrGenerationExhausted
}

func (s *linkService) newLink(originalURL, code string, score int, expiresAt *time.Time) *model.Link {
	return &model.Link{
		OriginalURL: originalURL,
		ShortCode:   code,
		ExpiresAt:   expiresAt,
		IsActive:    true,
		RiskScore:   score,
	}
}

// Resolve maps a short code to its destination. Cache hits increment only
// the cache-side counter; the store's click_count is allowed to undercount
// once a code is cache-warm.
func (s *linkService) Resolve(ctx context.Context, code string) (string, error) {
	dest, hit, err := s.cache.GetURL(ctx, code)
	if err != nil {
		s.logger.Warn("cache lookup failed", zap.String("code", code), zap.Error(err))
	} else if hit {
		if err := s.cache.IncrementClicks(ctx, code); err != nil {
			s.logger.Warn("cache click increment failed", zap.String("code", code), zap.Error(err))
		}
		metrics.Resolutions.WithLabelValues("cache_hit").Inc()
		return dest, nil
	}

	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			metrics.Resolutions.WithLabelValues("not_found").Inc()
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("load link: %w", err)
	}
	if !link.IsActive {
		metrics.Resolutions.WithLabelValues("not_found").Inc()
		return "", ErrLinkNotFound
	}
	if link.Expired(s.now()) {
		metrics.Resolutions.WithLabelValues("expired").Inc()
		return "", ErrLinkExpired
	}

	if err := s.links.IncrementClicks(ctx, code); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			metrics.Resolutions.WithLabelValues("not_found").Inc()
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("increment clicks: %w", err)
	}

	s.warmCache(ctx, code, link.OriginalURL, link.ExpiresAt)
	if err := s.cache.IncrementClicks(ctx, code); err != nil {
		s.logger.Warn("cache click increment failed", zap.String("code", code), zap.Error(err))
	}

	metrics.Resolutions.WithLabelValues("store_hit").Inc()
	return link.OriginalURL, nil
}

// ScoreURL exposes the risk scorer without touching storage.
func (s *linkService) ScoreURL(rawURL string) risk.Result {
	return s.scorer.Score(rawURL)
}

func (s *linkService) GetLink(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListActiveLinks(ctx context.Context) ([]model.Link, error) {
	links, err := s.links.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) Stats(ctx context.Context) (*repository.StatsSummary, error) {
	summary, err := s.stats.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats summary: %w", err)
	}
	return summary, nil
}

// warmCache is best effort; the cache being down never fails a request.
// The TTL is capped at the link's expiry so a warm cache can never serve a
// destination past its expiration.
func (s *linkService) warmCache(ctx context.Context, code, dest string, expiresAt *time.Time) {
	ttl := s.cacheTTL
	if expiresAt != nil {
		untilExpiry := expiresAt.Sub(s.now())
		if untilExpiry <= 0 {
			return
		}
		if untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if err := s.cache.SetURL(ctx, code, dest, ttl); err != nil {
		s.logger.Warn("cache warm failed", zap.String("code", code), zap.Error(err))
	}
}

func (s *linkService) expiryFromDays(days *int) (*time.Time, error) {
	if days == nil {
		return nil, nil
	}
	if *days < 0 {
		return nil, ErrInvalidExpiry
	}
	// Zero days yields an already-expired link, which resolves to the
	// expired error rather than not-found.
	at := s.now().Add(time.Duration(*days) * 24 * time.Hour)
	return &at, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
