package orm

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/tokmz/roomcast/pkg/logger"
)

// New 创建 GORM 数据库实例
func New(cfg *Config, log logger.Logger) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("orm: DSN is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	dialector, err := dialectorFor(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: cfg.PrepareStmt,
		Logger:      newGormLogger(cfg, log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if len(cfg.Replicas) > 0 {
		if err := useReplicas(db, cfg); err != nil {
			return nil, fmt.Errorf("failed to setup read-write split: %w", err)
		}
	}

	if cfg.Tracing {
		if err := db.Use(NewTracingPlugin()); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dialectorFor 根据数据库类型返回对应的 Dialector
func dialectorFor(dbType DBType, dsn string) (gorm.Dialector, error) {
	switch dbType {
	case MySQL:
		return mysql.Open(dsn), nil
	case Postgres:
		return postgres.Open(dsn), nil
	case SQLite:
		return sqlite.Open(dsn), nil
	case SQLServer:
		return sqlserver.Open(dsn), nil
	default:
		return nil, fmt.Errorf("orm: unsupported database type: %s", dbType)
	}
}

// useReplicas 注册 dbresolver，查询走只读副本
func useReplicas(db *gorm.DB, cfg *Config) error {
	replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
	for _, dsn := range cfg.Replicas {
		dialector, err := dialectorFor(cfg.Type, dsn)
		if err != nil {
			return err
		}
		replicas = append(replicas, dialector)
	}

	return db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}))
}

// newGormLogger 将 GORM 日志输出到服务 Logger
func newGormLogger(cfg *Config, log logger.Logger) gormlogger.Interface {
	return gormlogger.New(
		printer{log: log.Named("gorm")},
		gormlogger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  gormlogger.LogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		},
	)
}

// printer 适配 gormlogger.Writer
type printer struct {
	log logger.Logger
}

func (p printer) Printf(format string, args ...any) {
	p.log.Info(fmt.Sprintf(format, args...), zap.Time("at", time.Now()))
}
