package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/portfolio-valuation/internal/domain"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(w *recordingWriter) *KafkaPublisher {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "portfolio.events", "portfolio-valuation")
	p.newWriter = func(topic string) messageWriter { return w }
	return p
}

func TestKafkaPublisher_getWriter(t *testing.T) {
	publisher := NewKafkaPublisher([]string{"localhost:9092"}, "portfolio.events", "svc")
	defer publisher.Close()

	writer := publisher.getWriter("portfolio.events")
	require.NotNil(t, writer)
	assert.Same(t, writer, publisher.getWriter("portfolio.events"))
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := newTestPublisher(w)

	occurred := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), domain.Notification{
		Type:        domain.NotificationTradeSimulated,
		PortfolioID: 12,
		OccurredAt:  occurred,
		Payload:     map[string]string{"amount": "100"},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "12", string(msg.Key))

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, domain.NotificationTradeSimulated, event.Type)
	assert.Equal(t, "portfolio-valuation", event.Source)
	assert.Equal(t, int64(12), event.PortfolioID)
	assert.True(t, event.OccurredAt.Equal(occurred))
	assert.Equal(t, map[string]any{"amount": "100"}, event.Payload)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newTestPublisher(w)

	err := p.Publish(context.Background(), domain.Notification{Type: domain.NotificationDepositRecorded, PortfolioID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestNewEvent_DefaultsOccurredAt(t *testing.T) {
	event := NewEvent("svc", domain.Notification{Type: "x", PortfolioID: 3})
	assert.False(t, event.OccurredAt.IsZero())
	assert.NotEmpty(t, event.ID)
}

func TestLogPublisher(t *testing.T) {
	p := &LogPublisher{Logger: zerolog.Nop()}
	assert.NoError(t, p.Publish(context.Background(), domain.Notification{Type: "x"}))
}
