package feed

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// amqpChannel amqp 通道中用到的方法
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP 基于 RabbitMQ topic exchange 的推送，routing key 为 room.<房间号>
type AMQP struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	log      logger.Logger
}

// NewAMQP 连接 broker 并声明 exchange
func NewAMQP(cfg AMQPConfig, log logger.Logger) (*AMQP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("feed: amqp url is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "document-updates"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("feed: amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("feed: amqp declare exchange: %w", err)
	}

	p := newAMQPWithChannel(ch, cfg.Exchange, log)
	p.conn = conn
	return p, nil
}

func newAMQPWithChannel(ch amqpChannel, exchange string, log logger.Logger) *AMQP {
	if log == nil {
		log = logger.Nop()
	}
	return &AMQP{ch: ch, exchange: exchange, log: log}
}

func (a *AMQP) Publish(ctx context.Context, ev DocumentEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return ErrPublishFailed.WithError(err)
	}

	err = a.ch.PublishWithContext(ctx, a.exchange, "room."+ev.RoomKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.DocumentID,
		Timestamp:    ev.UpdatedAt,
		Body:         body,
	})
	if err != nil {
		return ErrPublishFailed.WithError(err)
	}

	a.log.DebugContext(ctx, "document event published",
		zap.String("exchange", a.exchange),
		zap.String("document_id", ev.DocumentID),
	)
	return nil
}

func (a *AMQP) Close() error {
	err := a.ch.Close()
	if a.conn != nil {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
