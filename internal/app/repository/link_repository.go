package repository

import (
	"context"
	"errors"
	"time"

	"github.com/linkvault/linkvault/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")

	// ErrCodeTaken signals that the short code collided with an existing row.
	// The unique index on short_code is the final arbiter under concurrency.
	ErrCodeTaken = errors.New("short code already taken")
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	IncrementClicks(ctx context.Context, code string) error
	ListActive(ctx context.Context) ([]model.Link, error)
	ListCheckedBefore(ctx context.Context, before time.Time, limit int) ([]model.Link, error)
	UpdateRiskScore(ctx context.Context, code string, score int, checkedAt time.Time) error
	AllCodes(ctx context.Context) ([]string, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrCodeTaken
		}
		return err
	}
	return nil
}

// GetByCode loads a link regardless of its active flag; callers decide how
// inactive rows are surfaced.
func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

// ExistsByCode checks active and inactive rows alike: a soft-deleted code is
// still unavailable for reuse.
func (r *linkRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("short_code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// IncrementClicks bumps click_count atomically in SQL for the active link.
func (r *linkRepository) IncrementClicks(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("short_code = ? AND is_active = ?", code, true).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) ListActive(ctx context.Context) ([]model.Link, error) {
	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ListCheckedBefore returns active links whose last risk check is older than
// the given time (or never happened), for the recheck worker.
func (r *linkRepository) ListCheckedBefore(ctx context.Context, before time.Time, limit int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 50
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("last_checked IS NULL OR last_checked < ?", before).
		Order("last_checked ASC NULLS FIRST").
		Limit(limit).
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// AllCodes returns every issued short code, active or not. Used to seed the
// bloom filter at startup.
func (r *linkRepository) AllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Pluck("short_code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *linkRepository) UpdateRiskScore(ctx context.Context, code string, score int, checkedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("short_code = ?", code).
		Updates(map[string]interface{}{
			"risk_score":   score,
			"last_checked": checkedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}
