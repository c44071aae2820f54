package roomcast

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tokmz/roomcast/pkg/bus"
	"github.com/tokmz/roomcast/pkg/feed"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/store"
	"github.com/tokmz/roomcast/pkg/tracing"
	"github.com/tokmz/roomcast/pkg/ws"
)

// ServerSettings 服务器配置
type ServerSettings struct {
	// Addr 监听地址，默认 ":8080"
	Addr string `mapstructure:"addr"`

	// Mode 运行模式：debug, release, test
	Mode string `mapstructure:"mode"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AllowedOrigins 允许的跨域来源，空表示只允许同源，"*" 表示全部
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// TrustedProxies 信任的代理 IP
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// RotateSettings 日志轮转配置
type RotateSettings struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SamplingSettings 日志采样，initial 为 0 时关闭
type SamplingSettings struct {
	Initial    int `mapstructure:"initial"`
	Thereafter int `mapstructure:"thereafter"`
}

// LogSettings 日志配置
type LogSettings struct {
	Level    string           `mapstructure:"level"`
	Format   string           `mapstructure:"format"`
	Console  bool             `mapstructure:"console"`
	File     string           `mapstructure:"file"`
	Caller   bool             `mapstructure:"caller"`
	Rotate   RotateSettings   `mapstructure:"rotate"`
	Sampling SamplingSettings `mapstructure:"sampling"`
}

// WSSettings WebSocket 传输配置
type WSSettings struct {
	MaxConnections    int           `mapstructure:"max_connections"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	MessageQueueSize  int           `mapstructure:"message_queue_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`
	WriteWait         time.Duration `mapstructure:"write_wait"`
}

// TracingSettings 链路追踪配置
type TracingSettings struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	Endpoint     string  `mapstructure:"endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// Settings 应用配置
type Settings struct {
	Server  ServerSettings  `mapstructure:"server"`
	Log     LogSettings     `mapstructure:"log"`
	WS      WSSettings      `mapstructure:"ws"`
	Store   store.Config    `mapstructure:"store"`
	Bus     bus.Config      `mapstructure:"bus"`
	Feed    feed.Config     `mapstructure:"feed"`
	Tracing TracingSettings `mapstructure:"tracing"`
}

// Defaults 返回 viper 默认值，键与配置文件一致
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":             ":8080",
		"server.mode":             gin.ReleaseMode,
		"server.read_timeout":     10 * time.Second,
		"server.write_timeout":    10 * time.Second,
		"server.idle_timeout":     60 * time.Second,
		"server.shutdown_timeout": 10 * time.Second,
		"server.allowed_origins":  []string{},
		"server.trusted_proxies":  []string{},

		"log.level":               "info",
		"log.format":              "json",
		"log.console":             true,
		"log.file":                "",
		"log.caller":              false,
		"log.sampling.initial":    0,
		"log.sampling.thereafter": 100,
		"log.rotate.filename":     "",
		"log.rotate.max_size":     100,
		"log.rotate.max_age":      30,
		"log.rotate.max_backups":  10,
		"log.rotate.compress":     false,

		"ws.max_connections":    10000,
		"ws.max_message_size":   1 << 20,
		"ws.message_queue_size": 256,
		"ws.heartbeat_interval": 30 * time.Second,
		"ws.heartbeat_timeout":  time.Duration(0),
		"ws.write_wait":         10 * time.Second,

		"store.driver":       store.DriverMemory,
		"store.dsn":          "",
		"store.auto_migrate": true,

		"bus.driver":         bus.DriverLocal,
		"bus.redis.addr":     "localhost:6379",
		"bus.redis.password": "",
		"bus.redis.db":       0,
		"bus.channel_prefix": "roomcast:room:",

		"feed.driver":        feed.DriverNoop,
		"feed.kafka.brokers": []string{},
		"feed.kafka.topic":   "document-updates",
		"feed.amqp.url":      "",
		"feed.amqp.exchange": "document-updates",

		"tracing.enabled":       false,
		"tracing.exporter":      tracing.ExporterStdout,
		"tracing.endpoint":      "",
		"tracing.insecure":      true,
		"tracing.sampling_rate": 1.0,
	}
}

// LoggerOptions 转换为日志选项
func (s LogSettings) LoggerOptions() ([]logger.Option, error) {
	level, err := logger.ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	return []logger.Option{
		logger.WithLevel(level),
		logger.WithFormat(logger.Format(s.Format)),
		logger.WithConsole(s.Console),
		logger.WithFile(s.File),
		logger.WithRotate(logger.RotateConfig{
			Filename:   s.Rotate.Filename,
			MaxSize:    s.Rotate.MaxSize,
			MaxAge:     s.Rotate.MaxAge,
			MaxBackups: s.Rotate.MaxBackups,
			Compress:   s.Rotate.Compress,
		}),
		logger.WithSampling(s.Sampling.Initial, s.Sampling.Thereafter),
		logger.WithCaller(s.Caller),
		logger.WithStacktrace(true),
	}, nil
}

// TracingConfig 转换为链路追踪配置
func (s TracingSettings) TracingConfig(version string) *tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Enabled = s.Enabled
	if s.Exporter != "" {
		cfg.ExporterType = s.Exporter
	}
	cfg.ExporterEndpoint = s.Endpoint
	cfg.Insecure = s.Insecure
	cfg.SamplingRate = s.SamplingRate
	return cfg
}

// Options 转换为 ws 管理器选项
func (s WSSettings) Options(allowedOrigins []string) []ws.Option {
	opts := []ws.Option{
		ws.WithMaxConnections(s.MaxConnections),
		ws.WithMessageSizeLimit(s.MaxMessageSize),
		ws.WithMessageQueueSize(s.MessageQueueSize),
		ws.WithHeartbeatInterval(s.HeartbeatInterval),
		ws.WithHeartbeatTimeout(s.HeartbeatTimeout),
		ws.WithWriteWait(s.WriteWait),
	}
	if len(allowedOrigins) > 0 {
		opts = append(opts, ws.WithCheckOriginWhitelist(allowedOrigins))
	}
	return opts
}
