package model

import "time"

// ClickEvent is an audit record for a single resolution of a short link.
type ClickEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	ShortCode string    `json:"short_code" gorm:"size:10;not null;index"`
	IP        string    `json:"ip" gorm:"size:45"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-logger"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
