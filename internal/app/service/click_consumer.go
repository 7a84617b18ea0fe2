package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/thisux/shortlink/internal/app/model"
	"github.com/thisux/shortlink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// dailyCounterTTL keeps per-day click counters around long enough for
// dashboards without growing Redis unboundedly.
const dailyCounterTTL = 40 * 24 * time.Hour

// ClickConsumer drains the click firehose into fast-read side effects:
// Prometheus counters and per-day Redis counters keyed by code. The
// authoritative click history lives on the link row.
type ClickConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	rdb    *redis.Client
}

// NewClickConsumer creates a click event consumer.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, rdb *redis.Client) *ClickConsumer {
	return &ClickConsumer{js: js, logger: logger, rdb: rdb}
}

// Start ensures the stream and durable consumer exist, then begins
// consuming in the background.
func (c *ClickConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ClickStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ClickStreamName,
			Subjects: []string{model.ClickStreamSubject},
			MaxBytes: model.ClickStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *ClickConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.ClickMessage
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal click message", zap.Error(err))
				msg.Nak()
				continue
			}

			c.apply(ctx, event)

			c.logger.Debug("click message consumed",
				zap.String("id", event.ID),
				zap.String("code", event.Code),
				zap.Time("timestamp", event.Event.Timestamp),
			)

			msg.Ack()
		}
	}
}

func (c *ClickConsumer) apply(ctx context.Context, event model.ClickMessage) {
	prometheus.ClicksRecorded.Inc()

	if c.rdb == nil {
		return
	}

	day := event.Event.Timestamp.Format("2006-01-02")
	key := fmt.Sprintf("clicks:daily:%s:%s", event.Code, day)
	if err := c.rdb.Incr(ctx, key).Err(); err != nil {
		c.logger.Error("failed to bump daily click counter",
			zap.Error(err), zap.String("key", key))
		return
	}
	c.rdb.Expire(ctx, key, dailyCounterTTL)
}
