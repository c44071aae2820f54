// Package feed 文档持久化成功后的变更通知
package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
)

var (
	// ErrPublishFailed 推送失败
	ErrPublishFailed = errors.New(5001, "feed publish failed", 500)
)

// 驱动名
const (
	DriverNoop  = "noop"
	DriverKafka = "kafka"
	DriverAMQP  = "amqp"
)

// DocumentEvent 已持久化的文档变更
type DocumentEvent struct {
	RoomKey     string    `json:"roomKey"`
	DocumentID  string    `json:"documentId"`
	ContentType string    `json:"contentType,omitempty"`
	Binary      bool      `json:"binary"`
	Size        int       `json:"size"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Publisher 变更推送
type Publisher interface {
	Publish(ctx context.Context, ev DocumentEvent) error
	Close() error
}

// KafkaConfig kafka 配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// AMQPConfig amqp 配置
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Config 推送配置
type Config struct {
	Driver string      `mapstructure:"driver"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
	AMQP   AMQPConfig  `mapstructure:"amqp"`
}

// New 按驱动创建推送
func New(cfg Config, log logger.Logger) (Publisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("feed")

	switch cfg.Driver {
	case "", DriverNoop:
		return Noop{}, nil
	case DriverKafka:
		p, err := NewKafka(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		log.Info("use feed", zap.String("driver", DriverKafka), zap.Strings("brokers", cfg.Kafka.Brokers))
		return p, nil
	case DriverAMQP:
		p, err := NewAMQP(cfg.AMQP, log)
		if err != nil {
			return nil, err
		}
		log.Info("use feed", zap.String("driver", DriverAMQP), zap.String("exchange", cfg.AMQP.Exchange))
		return p, nil
	default:
		return nil, fmt.Errorf("feed: unsupported driver %q", cfg.Driver)
	}
}

// Noop 不推送
type Noop struct{}

func (Noop) Publish(context.Context, DocumentEvent) error { return nil }
func (Noop) Close() error                                 { return nil }
