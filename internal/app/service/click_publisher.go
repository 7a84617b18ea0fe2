package service

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/thisux/shortlink/internal/app/model"
)

// ClickPublisher publishes recorded clicks to the NATS JetStream
// firehose for downstream consumers. Publishing happens after the
// click is durable in Postgres, so a lost message never loses a click.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish emits one click message to the stream. A nil publisher is a
// no-op.
func (p *ClickPublisher) Publish(link *model.Link, ev model.ClickEvent) error {
	if p == nil || p.js == nil {
		return nil
	}

	msg := model.ClickMessage{
		ID:     uuid.New().String(),
		LinkID: link.ID,
		Code:   link.Code(),
		Event:  ev,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data)
	return err
}
