package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// Kafka 基于 sarama 同步生产者的推送
// 以文档 ID 作为消息 key，同一文档的变更落在同一分区
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	log      logger.Logger
}

// NewKafka 连接 kafka 集群
func NewKafka(cfg KafkaConfig, log logger.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("feed: kafka brokers are required")
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("feed: kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, cfg.Topic, log), nil
}

// NewKafkaWithProducer 使用已有生产者创建推送
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, log logger.Logger) *Kafka {
	if topic == "" {
		topic = "document-updates"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Kafka{producer: producer, topic: topic, log: log}
}

func (k *Kafka) Publish(ctx context.Context, ev DocumentEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return ErrPublishFailed.WithError(err)
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.DocumentID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("room"), Value: []byte(ev.RoomKey)},
		},
	})
	if err != nil {
		return ErrPublishFailed.WithError(err)
	}

	k.log.DebugContext(ctx, "document event published",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("document_id", ev.DocumentID),
	)
	return nil
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
