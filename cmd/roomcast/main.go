package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/pkg/bus"
	"github.com/tokmz/roomcast/pkg/config"
	"github.com/tokmz/roomcast/pkg/feed"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/metrics"
	"github.com/tokmz/roomcast/pkg/room"
	"github.com/tokmz/roomcast/pkg/store"
	"github.com/tokmz/roomcast/pkg/tracing"
	"github.com/tokmz/roomcast/pkg/ws"
)

const usage = `Roomcast realtime room broadcast server.

Every config key can be overridden with ROOMCAST_<SECTION>_<KEY>.

Usage:
    roomcast [--config=<path>]
    roomcast -h | --help
    roomcast --version

Options:
    -h --help            Show this screen.
    --version            Show version.
    -c --config=<path>   Config file (yaml/json/toml). Defaults to roomcast.yaml
                         in . or /etc/roomcast when present.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], roomcast.Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomcast: %v\n", err)
		os.Exit(2)
	}
	configFile, _ := opts.String("--config")

	if err := run(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "roomcast: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 配置
	var (
		cfg *config.Config
		log logger.Logger
	)
	opts := []config.Option{
		config.WithDefaults(roomcast.Defaults()),
		config.WithEnvPrefix("ROOMCAST"),
		// 热更新只调整日志级别，其余配置需重启生效
		config.WithOnChange(func() {
			level, err := logger.ParseLevel(cfg.GetString("log.level"))
			if err != nil {
				log.Warn("ignore invalid log level", zap.Error(err))
				return
			}
			log.SetLevel(level)
			log.Info("log level reloaded", zap.String("level", level.String()))
		}),
	}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	} else {
		// 未指定时依次查找 ./roomcast.yaml 与 /etc/roomcast/roomcast.yaml，都没有则只用默认值与环境变量
		opts = append(opts,
			config.WithConfigName("roomcast"),
			config.WithConfigPaths(".", "/etc/roomcast"),
			config.WithOptional(true),
		)
	}
	cfg = config.New(opts...)
	if err := cfg.Load(); err != nil {
		return err
	}
	defer cfg.Close()

	var settings roomcast.Settings
	if err := cfg.Unmarshal(&settings); err != nil {
		return err
	}

	// 2. 日志
	logOpts, err := settings.Log.LoggerOptions()
	if err != nil {
		return err
	}
	log, err = logger.NewWithOptions(logOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.ConfigFileUsed() != "" {
		if err := cfg.StartWatch(); err != nil {
			log.Warn("config watch disabled", zap.Error(err))
		}
	}

	// 3. 链路追踪
	tp, err := tracing.NewTracerProvider(ctx, settings.Tracing.TracingConfig(roomcast.Version))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			log.Warn("tracer provider shutdown failed", zap.Error(err))
		}
	}()

	// 4. 存储、更新流、跨实例总线
	settings.Store.Tracing = settings.Tracing.Enabled
	st, err := store.New(settings.Store, log)
	if err != nil {
		return err
	}
	defer closeWith(log, "store", st.Close)

	pub, err := feed.New(settings.Feed, log)
	if err != nil {
		return err
	}
	defer closeWith(log, "feed", pub.Close)

	b, err := bus.New(ctx, settings.Bus, log)
	if err != nil {
		return err
	}
	defer closeWith(log, "bus", b.Close)

	// 5. 房间核心与传输
	prom := metrics.New()
	hub := room.NewHub(st,
		room.WithLogger(log),
		room.WithFeed(pub),
		room.WithBus(b),
		room.WithMetrics(prom),
	)

	wsOpts := append(settings.WS.Options(settings.Server.AllowedOrigins),
		ws.WithLogger(log),
		ws.WithMetrics(prom),
	)
	manager, err := ws.NewManager(roomcast.NewHandler(hub), wsOpts...)
	if err != nil {
		return err
	}

	engine := roomcast.New(settings.Server, hub, manager,
		roomcast.WithLogger(log),
		roomcast.WithMetrics(prom),
		roomcast.WithBanner(settings.Server.Mode != "release"),
	)

	log.Info("roomcast starting",
		zap.String("version", roomcast.Version),
		zap.String("store", settings.Store.Driver),
		zap.String("bus", settings.Bus.Driver),
		zap.String("feed", settings.Feed.Driver),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(sctx); err != nil {
			log.Warn("websocket shutdown timed out", zap.Error(err))
		}
		hub.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("roomcast stopped")
	return nil
}

// closeWith 关闭资源并记录错误
func closeWith(log logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("close failed", zap.String("component", name), zap.Error(err))
	}
}
