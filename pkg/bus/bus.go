// Package bus 多实例之间的房间消息转发
package bus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
)

// 驱动名
const (
	DriverLocal = "local"
	DriverRedis = "redis"
)

// Handler 收到其它实例的房间消息
type Handler func(roomKey string, payload []byte)

// Bus 跨实例消息总线；实例自己发布的消息不会回送给自己
type Bus interface {
	Publish(ctx context.Context, roomKey string, payload []byte) error
	// Subscribe 阻塞直到 ctx 结束
	Subscribe(ctx context.Context, fn Handler) error
	Close() error
}

// Envelope 总线上传输的消息
type Envelope struct {
	Origin  string `json:"origin"`
	Room    string `json:"room"`
	Payload []byte `json:"payload"`
}

// RedisConfig redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Config 总线配置
type Config struct {
	Driver        string      `mapstructure:"driver"`
	Redis         RedisConfig `mapstructure:"redis"`
	ChannelPrefix string      `mapstructure:"channel_prefix"`
}

// New 按驱动创建总线
func New(ctx context.Context, cfg Config, log logger.Logger) (Bus, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("bus")

	switch cfg.Driver {
	case "", DriverLocal:
		return NewLocalBroker().Join(), nil
	case DriverRedis:
		b, err := NewRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		log.Info("use bus", zap.String("driver", DriverRedis), zap.String("addr", cfg.Redis.Addr))
		return b, nil
	default:
		return nil, fmt.Errorf("bus: unsupported driver %q", cfg.Driver)
	}
}

func newOrigin() string {
	return uuid.NewString()
}
