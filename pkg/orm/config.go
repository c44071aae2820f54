package orm

import "time"

// DBType 数据库类型
type DBType string

const (
	MySQL     DBType = "mysql"
	Postgres  DBType = "postgres"
	SQLite    DBType = "sqlite"
	SQLServer DBType = "sqlserver"
)

// Config 数据库配置
type Config struct {
	Type DBType // mysql, postgres, sqlite, sqlserver
	DSN  string // 数据源名称

	// 连接池配置
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	PrepareStmt   bool          // 预编译语句
	SlowThreshold time.Duration // 慢查询阈值
	LogLevel      int           // 1:Silent 2:Error 3:Warn 4:Info

	Tracing  bool     // 是否注册链路追踪插件
	Replicas []string // 只读副本 DSN，非空时启用读写分离
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Type:            SQLite,
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PrepareStmt:     true,
		SlowThreshold:   200 * time.Millisecond,
		LogLevel:        3,
	}
}
