package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/commoncore/internal/config"
	"github.com/annel0/commoncore/internal/console"
	"github.com/annel0/commoncore/internal/eventbus"
	"github.com/annel0/commoncore/internal/forms"
	"github.com/annel0/commoncore/internal/logging"
	"github.com/annel0/commoncore/internal/metrics"
	"github.com/annel0/commoncore/internal/observability"
	"github.com/annel0/commoncore/internal/scene"
	"github.com/annel0/commoncore/internal/storage"
	"github.com/annel0/commoncore/internal/worldscene"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $COMMONCORE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.LogDir = cfg.Logging.Dir
	if err := logging.InitDefaultLogger("worldstate"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	applyLogLevels(cfg.Logging)

	logging.Info("🌍 Запуск CommonCore World State...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ШАБЛОНЫ И СЦЕНЫ ===
	registry := forms.NewRegistry()
	n, err := registry.LoadDir(cfg.World.FormsDir)
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("❌ Ошибка загрузки шаблонов: %v", err)
	}
	logging.Info("📦 Загружено шаблонов: %d из %s", n, cfg.World.FormsDir)

	specs, err := scene.LoadSpecDir(cfg.World.ScenesDir)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки сцен: %v", err)
	}
	logging.Info("🗺️ Загружено сцен: %d из %s", len(specs), cfg.World.ScenesDir)

	// === ХРАНИЛИЩЕ СОХРАНЕНИЙ ===
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища %s: %v", cfg.Storage.Driver, err)
	}
	logging.Info("💾 Хранилище сохранений: %s", cfg.Storage.Driver)

	// === ШИНА СОБЫТИЙ И МЕТРИКИ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	if err := eventbus.RegisterStats(prometheus.DefaultRegisterer, bus); err != nil {
		logging.Warn("⚠️ Метрики шины событий не зарегистрированы: %v", err)
	}
	if _, err := eventbus.StartLoggingListener(ctx, bus, logging.GetEventLogger()); err != nil {
		logging.Warn("⚠️ Не удалось запустить LoggingListener: %v", err)
	}

	engineMetrics, err := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("❌ Ошибка регистрации метрик движка: %v", err)
	}

	// === СЕССИЯ ===
	opts := worldscene.DefaultOptions()
	opts.PlayerFormID = cfg.World.PlayerFormID
	opts.PlayerName = cfg.World.PlayerName
	opts.PlayerTag = cfg.World.PlayerTag
	opts.DefaultSpawn = cfg.World.DefaultSpawn
	opts.Logger = logging.GetWorldLogger()
	opts.Metrics = engineMetrics
	opts.Bus = bus

	session := console.NewSession(specs, registry, repo, opts)
	if err := startGame(ctx, session, cfg.World); err != nil {
		log.Fatalf("❌ Ошибка запуска игры: %v", err)
	}

	// === КОНСОЛЬ / METRICS ===
	var (
		consoleServer *console.Server
		metricsServer *http.Server
	)
	if cfg.Console.Enabled {
		consoleServer, err = console.NewServer(console.Config{
			Port:    cfg.Console.GetPort(),
			Session: session,
			Logger:  logging.GetConsoleLogger(),
		})
		if err != nil {
			log.Fatalf("❌ Ошибка создания консоли: %v", err)
		}
		go func() {
			if err := consoleServer.Start(); err != nil {
				logging.Error("❌ Консоль остановилась с ошибкой: %v", err)
			}
		}()
		logging.Info("   🛠️ Консоль: http://localhost:%d/api/state", cfg.Console.GetPort())
	} else {
		metricsServer = startMetricsServer(cfg.Console.GetMetricsPort())
	}

	logging.Info("✅ World State запущен, сцена %s", cfg.World.StartScene)

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, останавливаемся...")

	// === GRACEFUL SHUTDOWN ===
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if cfg.World.AutosaveSlot != "" {
		if info, err := session.SaveSlot(stopCtx, cfg.World.AutosaveSlot); err != nil {
			logging.Error("❌ Автосохранение в слот %s не удалось: %v", cfg.World.AutosaveSlot, err)
		} else {
			logging.Info("💾 Автосохранение: слот %s, сцена %s, %d байт", info.Slot, info.CurrentScene, info.Size)
		}
	}

	if consoleServer != nil {
		if err := consoleServer.Stop(stopCtx); err != nil {
			logging.Error("❌ Ошибка остановки консоли: %v", err)
		}
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(stopCtx)
	}
	if err := bus.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия шины событий: %v", err)
	}
	if err := repo.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}
	if err := shutdownTelemetry(stopCtx); err != nil {
		logging.Error("❌ Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 World State остановлен")
}

// startGame продолжает игру из слота автосохранения или начинает новую
func startGame(ctx context.Context, session *console.Session, world config.WorldConfig) error {
	if world.AutosaveSlot != "" {
		rep, err := session.LoadSlot(ctx, world.AutosaveSlot)
		switch {
		case err == nil:
			logging.Info("📂 Продолжение из слота %s: восстановлено %d, создано %d, пропущено %d",
				world.AutosaveSlot, rep.Count(worldscene.OutcomeRestored),
				rep.Count(worldscene.OutcomeSpawned), rep.Count(worldscene.OutcomeSkipped))
			return nil
		case errors.Is(err, storage.ErrSlotNotFound):
			logging.Debug("Слота %s нет, начинаем новую игру", world.AutosaveSlot)
		default:
			logging.Warn("⚠️ Слот %s не загружен (%v), начинаем новую игру", world.AutosaveSlot, err)
		}
	}

	rep, err := session.NewGame(ctx, world.StartScene, nil)
	if err != nil {
		return fmt.Errorf("новая игра в сцене %s: %w", world.StartScene, err)
	}
	logging.Info("🆕 Новая игра: создано %d объектов", rep.Count(worldscene.OutcomeSpawned))
	return nil
}

func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	url := cfg.GetURL()
	if url == "" {
		logging.Info("📨 Шина событий в памяти (буфер %d)", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	jb, err := eventbus.NewJetStreamBus(url, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, err
	}
	logging.Info("📨 Шина событий NATS JetStream: %s, стрим %s", url, cfg.Stream)
	return jb, nil
}

// startMetricsServer отдаёт /metrics, когда консоль выключена
func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Сервер метрик: %v", err)
		}
	}()
	logging.Info("   📊 Метрики: http://localhost:%d/metrics", port)
	return srv
}

func applyLogLevels(cfg config.LoggingConfig) {
	consoleLevel, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		logging.Warn("⚠️ %v, используется INFO", err)
	}
	fileLevel, err := logging.ParseLevel(cfg.FileLevel)
	if err != nil {
		logging.Warn("⚠️ %v, используется INFO", err)
	}
	logging.Default().SetLevels(consoleLevel, fileLevel)
}
