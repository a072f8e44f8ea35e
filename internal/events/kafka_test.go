package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsKeyedJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "appt-1" {
			return errors.New("unexpected key " + string(key))
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.Type != AppointmentAssigned {
			return errors.New("unexpected type " + ev.Type)
		}
		return nil
	})

	p := newKafkaPublisher(producer, "evms.events")
	err := p.Publish(context.Background(), Event{
		Type:       AppointmentAssigned,
		Key:        "appt-1",
		OccurredAt: time.Now(),
		Payload:    map[string]string{"status": "confirmed"},
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestKafkaPublisherWrapsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := newKafkaPublisher(producer, "evms.events")
	err := p.Publish(context.Background(), Event{Type: ConversationClaimed, Key: "c-1", OccurredAt: time.Now()})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	_ = p.Close()
}

func TestKafkaPublisherHonoursCancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := newKafkaPublisher(producer, "evms.events")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{Type: ConversationClosed}), context.Canceled)
	_ = p.Close()
}
