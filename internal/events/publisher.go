// Package events publishes sync notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventTypeActivitySynced is the header value attached to synced-activity messages.
const EventTypeActivitySynced = "activity.synced"

// ActivitySynced announces one activity imported by a sync run.
type ActivitySynced struct {
	ActivityID int64     `json:"activity_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	StartTime  time.Time `json:"start_time"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Publisher writes synced-activity events to a single Kafka topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// PublishSynced emits one activity.synced message keyed by activity id.
func (p *Publisher) PublishSynced(ctx context.Context, event ActivitySynced) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.ActivityID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeActivitySynced)},
		},
	})
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
