package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/orm"
)

// DriverMemory 内存存储驱动名，其余驱动名与 orm.DBType 一致
const DriverMemory = "memory"

// Config 存储配置
type Config struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	Tracing     bool   `mapstructure:"-"`
}

// New 按驱动创建存储
func New(cfg Config, log logger.Logger) (Store, error) {
	if log == nil {
		log = logger.Nop()
	}

	switch cfg.Driver {
	case "", DriverMemory:
		log.Info("use storage", zap.String("driver", DriverMemory))
		return NewMemoryStore(log), nil
	case string(orm.SQLite), string(orm.Postgres), string(orm.MySQL), string(orm.SQLServer):
		ormCfg := orm.DefaultConfig()
		ormCfg.Type = orm.DBType(cfg.Driver)
		ormCfg.DSN = cfg.DSN
		ormCfg.Tracing = cfg.Tracing

		db, err := orm.New(ormCfg, log)
		if err != nil {
			return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
		}
		s, err := NewGormStore(db, log, cfg.AutoMigrate)
		if err != nil {
			_ = orm.Close(db)
			return nil, err
		}
		log.Info("use storage", zap.String("driver", cfg.Driver))
		return s, nil
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
