package feed

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokmz/roomcast/pkg/errors"
)

func sampleEvent() DocumentEvent {
	return DocumentEvent{
		RoomKey:    "ABCD12",
		DocumentID: "6f1c2b8e-6d8e-4d8a-9a53-0f6f8a4c1b2d",
		Size:       5,
		UpdatedBy:  "alice",
		UpdatedAt:  time.Unix(1700000000, 0).UTC(),
	}
}

func TestNewNoopByDefault(t *testing.T) {
	p, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(Config{Driver: "nats"}, nil)
	assert.Error(t, err)
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	_, err := New(Config{Driver: DriverKafka}, nil)
	assert.Error(t, err)
}

func TestKafkaPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "document-updates", msg.Topic)
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, sampleEvent().DocumentID, string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var ev DocumentEvent
		require.NoError(t, json.Unmarshal(value, &ev))
		assert.Equal(t, "ABCD12", ev.RoomKey)
		assert.Equal(t, "alice", ev.UpdatedBy)
		return nil
	})

	k := NewKafkaWithProducer(producer, "", nil)
	require.NoError(t, k.Publish(context.Background(), sampleEvent()))
	require.NoError(t, k.Close())
}

func TestKafkaPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafkaWithProducer(producer, "updates", nil)
	err := k.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPublishFailed))
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	require.NoError(t, k.Close())
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublish(t *testing.T) {
	ch := &fakeChannel{}
	a := newAMQPWithChannel(ch, "document-updates", nil)

	require.NoError(t, a.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "document-updates", ch.exchange)
	assert.Equal(t, "room.ABCD12", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var ev DocumentEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
	assert.Equal(t, sampleEvent().DocumentID, ev.DocumentID)

	require.NoError(t, a.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublishFailure(t *testing.T) {
	a := newAMQPWithChannel(&fakeChannel{err: stderrors.New("channel closed")}, "x", nil)
	err := a.Publish(context.Background(), sampleEvent())
	assert.True(t, errors.Is(err, ErrPublishFailed))
}
