package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mmo-region/internal/api"
	"github.com/annel0/mmo-region/internal/auth"
	"github.com/annel0/mmo-region/internal/cache"
	"github.com/annel0/mmo-region/internal/config"
	"github.com/annel0/mmo-region/internal/eventbus"
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/observability"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/storage"
	"github.com/annel0/mmo-region/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logging.Configure(logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: logging.ParseLevel(cfg.Logging.ConsoleLevel),
		FileLevel:    logging.ParseLevel(cfg.Logging.FileLevel),
	})
	for component, level := range cfg.Logging.Components {
		logging.GetLoggerManager().SetComponentLevel(component, logging.ParseLevel(level))
	}
	if err := logging.InitDefaultLogger("regionserver"); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg)
	if err != nil {
		logging.Error("❌ %v", err)
	} else {
		logging.Info("✅ Сервер регионов остановлен")
	}
	logging.GetLoggerManager().CloseAll()
	logging.CloseDefaultLogger()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logging.Info("🚀 Запуск сервера регионов...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Телеметрия ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("⚠️ Остановка телеметрии: %v", err)
		}
	}()

	// === Каталог прототипов ===
	catalog, err := proto.LoadCatalog(cfg.Regions.CatalogPath)
	if err != nil {
		return fmt.Errorf("каталог %s: %w", cfg.Regions.CatalogPath, err)
	}
	logging.Info("📚 Каталог загружен: %s", cfg.Regions.CatalogPath)

	// === Шина событий ===
	bus, closeBus, err := openEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer closeBus()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("⚠️ Логгер событий не запущен: %v", err)
	}

	opts := []world.ManagerOption{
		world.WithEventBus(bus),
		world.WithMetrics(world.NewRegionMetrics(prometheus.DefaultRegisterer)),
	}

	// === Хранилище архивов ===
	if cfg.Storage.ArchivePath != "" {
		store, err := storage.NewRegionArchiveStore(cfg.Storage.ArchivePath, cfg.Storage.Compression)
		if err != nil {
			return fmt.Errorf("хранилище архивов: %w", err)
		}
		defer store.Close()

		var archives world.ArchiveStore = store
		if addr := cfg.Cache.GetRedisAddr(); addr != "" {
			redisCache, err := cache.NewRedisArchiveCache(cache.ArchiveCacheConfig{
				RedisURL: addr,
				TTL:      cfg.Cache.TTL,
			}, store)
			if err != nil {
				logging.Warn("⚠️ Redis недоступен, архивы без кеша: %v", err)
			} else {
				defer redisCache.Close()
				archives = redisCache
			}
		}
		opts = append(opts, world.WithArchiveStore(archives))
		logging.Info("💾 Архивы регионов: %s", cfg.Storage.ArchivePath)
	}

	manager := world.NewRegionManager(catalog, world.ManagerConfig{
		IdleThreshold:         cfg.Regions.IdleThreshold,
		CleanupInterval:       cfg.Regions.CleanupInterval,
		TickInterval:          cfg.Regions.TickInterval,
		MaxGenerationAttempts: cfg.Regions.MaxGenerationAttempts,
		MaxPositionTests:      cfg.Regions.MaxPositionTests,
		NaviCellSize:          cfg.Regions.NaviCellSize,
	}, opts...)

	// === Авторизация ===
	var tokens *auth.TokenIssuer
	if secret := cfg.Server.GetJWTSecret(); secret != "" {
		tokens, err = auth.NewTokenIssuer(secret, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("JWT: %w", err)
		}
	}

	admin := api.NewAdminServer(api.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Server.GetAdminPort()),
		Manager:    manager,
		Tokens:     tokens,
		Registerer: prometheus.DefaultRegisterer,
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error { return eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer).Run(gctx) })
	g.Go(admin.Start)
	g.Go(func() error {
		logging.Info("📊 Метрики Prometheus на %s/metrics", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("🛑 Получен сигнал завершения, останавливаем сервер...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := admin.Shutdown(shutdownCtx); err != nil {
			logging.Warn("⚠️ Остановка админского API: %v", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn("⚠️ Остановка сервера метрик: %v", err)
		}
		manager.Shutdown(shutdownCtx)
		logging.Info("💾 Все регионы уничтожены и заархивированы")
		return nil
	})

	logging.Info("✅ Сервер регионов запущен (admin :%d, metrics :%d)",
		cfg.Server.GetAdminPort(), cfg.Server.GetMetricsPort())
	return g.Wait()
}

// openEventBus JetStream при заданном URL, иначе шина в памяти
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, func(), error) {
	url := cfg.GetURL()
	if url == "" {
		logging.Info("📨 Шина событий в памяти")
		bus := eventbus.NewMemoryBus(1024)
		return bus, func() { bus.Close() }, nil
	}

	bus, err := eventbus.NewJetStreamBus(url, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, nil, fmt.Errorf("JetStream %s: %w", url, err)
	}
	logging.Info("📨 Шина событий JetStream: %s (stream %s)", url, cfg.Stream)
	return bus, func() {
		if err := bus.Close(); err != nil {
			logging.Warn("⚠️ Закрытие JetStream: %v", err)
		}
	}, nil
}
