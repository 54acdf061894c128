package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/ledger_service/internal/domain/entities"
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

func sampleEvent() entities.LedgerEvent {
	tx := &entities.Transaction{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Amount: decimal.NewFromInt(100),
		Status: entities.TransactionStatusCompleted,
	}
	return entities.NewLedgerEvent(entities.EventTransferCompleted, tx, "USDT")
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &recordingWriter{}
	p := NewKafkaPublisher(writer, zap.NewNop())
	event := sampleEvent()

	require.NoError(t, p.Publish(context.Background(), event))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, event.UserID.String(), string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "transfer.completed", string(msg.Headers[0].Value))

	var decoded entities.LedgerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.TransactionID, decoded.TransactionID)
	assert.True(t, decoded.Amount.Equal(decimal.NewFromInt(100)))

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&recordingWriter{err: errors.New("broker down")}, zap.NewNop())
	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "broker down")
}
