package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/commoncore/internal/logging"
	"github.com/annel0/commoncore/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Version версия консоли в /api/server
const Version = "v0.1.0"

// Server REST-консоль разработчика поверх Session
type Server struct {
	router  *gin.Engine
	http    *http.Server
	session *Session
	metrics *ProcessMetrics
	log     *logging.Logger
}

// Config содержит конфигурацию консоли
type Config struct {
	Port     int                   // порт для запуска сервера
	Session  *Session              // песочница сохранений
	Registry prometheus.Registerer // куда регистрировать HTTP-метрики (nil - дефолтный)
	Gatherer prometheus.Gatherer   // что отдавать на /metrics (nil - дефолтный)
	Logger   *logging.Logger
}

// NewServer создаёт консоль и настраивает маршруты
func NewServer(config Config) (*Server, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("консоли нужна сессия")
	}
	if config.Port == 0 {
		config.Port = 8088
	}
	log := config.Logger
	if log == nil {
		log = logging.GetConsoleLogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("console"))
	router.Use(middleware.NewRequestLogger(log).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("console", config.Registry)
	if err != nil {
		return nil, fmt.Errorf("не удалось зарегистрировать HTTP-метрики: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	s := &Server{
		router:  router,
		session: config.Session,
		metrics: NewProcessMetrics(),
		log:     log,
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s, nil
}

// Handler HTTP-обработчик консоли (для тестов и встраивания)
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/server", s.handleServerInfo)
		api.GET("/state", s.handleState)
		api.GET("/scenes", s.handleScenes)
		api.GET("/scenes/:scene/objects", s.handleSceneObjects)
		api.POST("/scenes/:scene/save", s.handleSaveScene)
		api.GET("/motile", s.handleMotile)
		api.GET("/player", s.handlePlayer)
		api.POST("/newgame", s.handleNewGame)
		api.POST("/transition", s.handleTransition)
		api.GET("/slots", s.handleListSlots)
		api.POST("/slots/:slot/save", s.handleSaveSlot)
		api.POST("/slots/:slot/load", s.handleLoadSlot)
	}
}

// Start запускает сервер и блокируется до его остановки
func (s *Server) Start() error {
	s.log.Info("🛠️ Консоль разработчика слушает %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop мягко останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
