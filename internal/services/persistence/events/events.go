// Package events publishes persistence lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicTerrainCommitted receives one message per committed transaction.
const TopicTerrainCommitted = "terrain.committed"

// batchTimeout flushes partial batches. kafka-go waits a full second by
// default, which every single-event write would pay.
const batchTimeout = 10 * time.Millisecond

// Committed describes a committed transaction.
type Committed struct {
	TransactionID string    `json:"transaction_id"`
	Operations    int       `json:"operations"`
	Writes        int       `json:"writes"`
	CommittedAt   time.Time `json:"committed_at"`
}

// Publisher delivers persistence events.
type Publisher interface {
	PublishCommitted(ctx context.Context, event Committed) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) PublishCommitted(context.Context, Committed) error { return nil }

func (Nop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON keyed by transaction id.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher returns a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = TopicTerrainCommitted
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}}
}

// PublishCommitted implements Publisher.
func (p *KafkaPublisher) PublishCommitted(ctx context.Context, event Committed) error {
	if event.TransactionID == "" {
		return fmt.Errorf("committed event missing transaction id")
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal committed event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: msg,
	}); err != nil {
		return fmt.Errorf("publish committed event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
