package tracing

import (
	"fmt"
	"time"
)

// 导出器类型
const (
	ExporterStdout   = "stdout"
	ExporterOTLP     = "otlp"      // OTLP/HTTP
	ExporterOTLPGRPC = "otlp-grpc" // OTLP/gRPC
	ExporterNoop     = "noop"
)

// Config 链路追踪配置
type Config struct {
	ServiceName    string // 服务名称（必填）
	ServiceVersion string // 服务版本
	Environment    string // 环境（dev/staging/prod）

	Enabled          bool              // 是否启用，关闭时使用 noop 导出器
	ExporterType     string            // 导出器类型（stdout/otlp/otlp-grpc/noop）
	ExporterEndpoint string            // 导出器端点，空则读取 OTEL_EXPORTER_OTLP_ENDPOINT
	ExporterHeaders  map[string]string // 导出器请求头
	Insecure         bool              // 是否使用非 TLS 连接

	SamplingRate float64 // 采样率（0.0-1.0）
	SamplingType string  // 采样类型（always/never/ratio/parent_based）

	BatchTimeout       time.Duration // 批量导出超时（默认 5s）
	MaxExportBatchSize int           // 最大批量大小（默认 512）
	MaxQueueSize       int           // 最大队列大小（默认 2048）
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		ServiceName:        "roomcast",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		ExporterType:       ExporterStdout,
		SamplingRate:       1.0,
		SamplingType:       "parent_based",
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("tracing: service name is required")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("tracing: sampling rate must be between 0.0 and 1.0, got %v", c.SamplingRate)
	}
	switch c.ExporterType {
	case ExporterStdout, ExporterOTLP, ExporterOTLPGRPC, ExporterNoop:
	default:
		return fmt.Errorf("tracing: invalid exporter type %q", c.ExporterType)
	}
	return nil
}
