package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

const defaultChannelPrefix = "roomcast:room:"

// Redis 基于 redis pub/sub 的总线，每个房间一个 channel
type Redis struct {
	rdb    *redis.Client
	prefix string
	origin string
	log    logger.Logger
}

// NewRedis 连接 redis 并检查连通性
func NewRedis(ctx context.Context, cfg Config, log logger.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("bus: redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, cfg.ChannelPrefix, log), nil
}

// NewRedisWithClient 使用已有客户端创建总线
func NewRedisWithClient(rdb *redis.Client, prefix string, log logger.Logger) *Redis {
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Redis{rdb: rdb, prefix: prefix, origin: newOrigin(), log: log}
}

func (b *Redis) channel(roomKey string) string {
	return b.prefix + roomKey
}

func (b *Redis) Publish(ctx context.Context, roomKey string, payload []byte) error {
	raw, err := json.Marshal(Envelope{Origin: b.origin, Room: roomKey, Payload: payload})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel(roomKey), raw).Err()
}

func (b *Redis) Subscribe(ctx context.Context, fn Handler) error {
	pubsub := b.rdb.PSubscribe(ctx, b.channel("*"))
	defer pubsub.Close()

	// 等待订阅确认
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("bus: redis subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Warn("drop malformed bus message", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			if env.Origin == b.origin {
				continue
			}
			if env.Room == "" {
				env.Room = strings.TrimPrefix(msg.Channel, b.prefix)
			}
			fn(env.Room, env.Payload)
		}
	}
}

func (b *Redis) Close() error {
	return b.rdb.Close()
}
