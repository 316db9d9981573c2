package model

import "time"

// Link describes the core short-link entity stored in Postgres.
type Link struct {
	ID          uint       `db:"id" gorm:"primaryKey"`
	OriginalURL string     `db:"original_url" gorm:"type:text;not null;index"`
	ShortCode   string     `db:"short_code" gorm:"size:10;not null;uniqueIndex"`
	CreatedAt   time.Time  `db:"created_at" gorm:"autoCreateTime"`
	ExpiresAt   *time.Time `db:"expires_at" gorm:"index"`
	IsActive    bool       `db:"is_active" gorm:"not null;default:true"`
	ClickCount  int64      `db:"click_count" gorm:"not null;default:0"`
	RiskScore   int        `db:"risk_score" gorm:"not null;default:0"`
	LastChecked *time.Time `db:"last_checked"`
}

// Expired reports whether the link carries an expiry in the past.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
