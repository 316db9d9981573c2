package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/linkvault/linkvault/internal/app/model"
	"github.com/nats-io/nats.go"
)

// ClickPublisher publishes click audit events to NATS JetStream.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish emits a click event for the resolved short code.
func (p *ClickPublisher) Publish(code, ip, userAgent string) error {
	event := model.ClickEvent{
		ID:        uuid.New().String(),
		ShortCode: code,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data)
	return err
}
