package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

// Event is the envelope written to the broker
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	PortfolioID int64     `json:"portfolio_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     any       `json:"payload"`
}

// NewEvent wraps a notification in an envelope
func NewEvent(source string, n domain.Notification) *Event {
	occurred := n.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return &Event{
		ID:          uuid.New().String(),
		Type:        n.Type,
		Source:      source,
		PortfolioID: n.PortfolioID,
		OccurredAt:  occurred,
		Payload:     n.Payload,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes notifications to one writer per topic
type KafkaPublisher struct {
	mu      sync.Mutex
	writers map[string]messageWriter
	brokers []string
	topic   string
	source  string

	newWriter func(topic string) messageWriter
}

// NewKafkaPublisher creates a publisher that writes every notification to topic
func NewKafkaPublisher(brokers []string, topic, source string) *KafkaPublisher {
	p := &KafkaPublisher{
		writers: make(map[string]messageWriter),
		brokers: brokers,
		topic:   topic,
		source:  source,
	}
	p.newWriter = p.kafkaWriter
	return p
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func (p *KafkaPublisher) getWriter(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

// Publish keys messages by portfolio so one portfolio's notifications stay ordered
func (p *KafkaPublisher) Publish(ctx context.Context, n domain.Notification) error {
	event := NewEvent(p.source, n)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	writer := p.getWriter(p.topic)
	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.PortfolioID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			return err
		}
	}
	return nil
}

// LogPublisher logs notifications instead of sending them; used when kafka is disabled
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, n domain.Notification) error {
	p.Logger.Debug().
		Str("type", n.Type).
		Int64("portfolio_id", n.PortfolioID).
		Msg("notification not sent: publisher disabled")
	return nil
}

var (
	_ domain.Publisher = (*KafkaPublisher)(nil)
	_ domain.Publisher = (*LogPublisher)(nil)
)
