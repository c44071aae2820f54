package logger

// Option 配置选项函数，配置文件中的 log 段按字段逐一转换为 Option
type Option func(*Config)

// WithLevel 日志级别
func WithLevel(level Level) Option {
	return func(c *Config) { c.Level = level }
}

// WithFormat 编码格式，非法值回退为 json
func WithFormat(format Format) Option {
	return func(c *Config) {
		if format.IsValid() {
			c.Format = format
		}
	}
}

// WithConsole 是否输出到标准输出
func WithConsole(enable bool) Option {
	return func(c *Config) { c.Console = enable }
}

// WithFile 追加写入文件，不轮转
func WithFile(filename string) Option {
	return func(c *Config) { c.File = filename }
}

// WithRotate 按大小轮转写入文件，filename 为空时忽略
func WithRotate(rotate RotateConfig) Option {
	return func(c *Config) {
		if rotate.Filename != "" {
			c.Rotate = &rotate
		}
	}
}

// WithSampling 每秒前 initial 条全部记录，之后每 thereafter 条记录 1 条；initial 为 0 时关闭采样
func WithSampling(initial, thereafter int) Option {
	return func(c *Config) {
		if initial <= 0 {
			c.Sampling = nil
			return
		}
		c.Sampling = &SamplingConfig{Initial: initial, Thereafter: thereafter}
	}
}

// WithCaller 是否记录调用位置
func WithCaller(enable bool) Option {
	return func(c *Config) { c.EnableCaller = enable }
}

// WithStacktrace Error 级别是否附带堆栈
func WithStacktrace(enable bool) Option {
	return func(c *Config) { c.EnableStacktrace = enable }
}
