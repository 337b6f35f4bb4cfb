package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/mmo-region/internal/auth"
	"github.com/annel0/mmo-region/internal/logging"
	"github.com/annel0/mmo-region/internal/middleware"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/storage"
	"github.com/annel0/mmo-region/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// AdminServer REST API управления регионами
type AdminServer struct {
	router  *gin.Engine
	server  *http.Server
	manager *world.RegionManager
	tokens  *auth.TokenIssuer
	metrics *ServerMetrics
	log     *logging.Logger
}

// Config содержит конфигурацию для админского сервера
type Config struct {
	Addr    string               // адрес для запуска сервера
	Manager *world.RegionManager // менеджер регионов
	// Tokens проверка JWT; nil отключает авторизацию
	Tokens *auth.TokenIssuer
	// Registerer регистр HTTP-метрик; nil не регистрирует
	Registerer prometheus.Registerer
}

// NewAdminServer создает новый админский сервер
func NewAdminServer(config Config) *AdminServer {
	if config.Addr == "" {
		config.Addr = ":8088"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("region_admin"))
	router.Use(middleware.NewRequestLogger(nil).Handler())
	router.Use(middleware.NewPrometheusMiddleware("region_admin", config.Registerer, "/health").Handler())

	s := &AdminServer{
		router:  router,
		manager: config.Manager,
		tokens:  config.Tokens,
		metrics: NewServerMetrics(),
		log:     logging.GetComponentLogger("admin-api"),
	}
	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if s.tokens == nil {
		s.log.Warn("⚠️ Админский API без авторизации")
	}

	s.setupRoutes()
	return s
}

// Handler обработчик HTTP
func (s *AdminServer) Handler() http.Handler { return s.router }

// Start запускает сервер и блокируется до его остановки
func (s *AdminServer) Start() error {
	s.log.Info("🛠️ Админский API слушает %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes настраивает маршруты REST API
func (s *AdminServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	api.Use(s.jwtMiddleware())
	{
		api.GET("/stats", s.handleStats)
		api.GET("/regions", s.handleListRegions)
		api.GET("/regions/:id", s.handleGetRegion)

		admin := api.Group("/admin")
		admin.Use(s.adminMiddleware())
		{
			admin.POST("/regions", s.handleCreateRegion)
			admin.DELETE("/regions/:id", s.handleDestroyRegion)
			admin.POST("/regions/:id/shutdown", s.handleShutdownRegion)
			admin.POST("/regions/:id/resume", s.handleResumeRegion)
			admin.POST("/cleanup", s.handleCleanup)
		}
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateRegionRequest запрос на создание региона
type CreateRegionRequest struct {
	Prototype   string `json:"prototype" binding:"required"`
	Seed        *int64 `json:"seed"`
	MatchNumber int    `json:"match_number"`
}

func (s *AdminServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"regions": s.manager.RegionCount(),
		"uptime":  s.metrics.GetUptime(),
	})
}

// handleStats статистика регионов и процесса
func (s *AdminServer) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: s.manager.GetStats(),
		Data: gin.H{
			"regions": s.manager.RegionCount(),
			"cells":   s.manager.CellCount(),
			"process": s.metrics.Snapshot(),
		},
	})
}

func (s *AdminServer) handleListRegions(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Регионы",
		Data:    s.manager.Infos(),
	})
}

func (s *AdminServer) handleGetRegion(c *gin.Context) {
	id, ok := s.regionID(c)
	if !ok {
		return
	}
	info, found := s.manager.Info(id)
	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Регион не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Регион", Data: info})
}

func (s *AdminServer) handleCreateRegion(c *gin.Context) {
	var req CreateRegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	region := s.manager.CreateRegion(c.Request.Context(), world.RegionSettings{
		InstanceAddress: s.manager.AllocateRegionId(),
		Prototype:       proto.Ref(req.Prototype),
		Seed:            seed,
		MatchNumber:     req.MatchNumber,
		GenerateAreas:   true,
	})
	if region == nil {
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Success: false,
			Message: fmt.Sprintf("Регион %q не создан", req.Prototype),
		})
		return
	}

	info, _ := s.manager.Info(region.ID())
	s.log.Info("🌍 Регион 0x%X создан через API оператором %s", region.ID(), c.GetString("operator"))
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Регион создан", Data: info})
}

func (s *AdminServer) handleDestroyRegion(c *gin.Context) {
	id, ok := s.regionID(c)
	if !ok {
		return
	}
	if !s.manager.DestroyRegion(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Регион не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Регион уничтожен"})
}

func (s *AdminServer) handleShutdownRegion(c *gin.Context) {
	id, ok := s.regionID(c)
	if !ok {
		return
	}
	if !s.manager.RequestShutdown(id) {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Регион не найден"})
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Остановка запрошена"})
}

func (s *AdminServer) handleResumeRegion(c *gin.Context) {
	id, ok := s.regionID(c)
	if !ok {
		return
	}
	region, err := s.manager.ResumeRegionByID(c.Request.Context(), id)
	switch {
	case errors.Is(err, world.ErrRegionNotFound), errors.Is(err, storage.ErrArchiveNotFound):
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Архив региона не найден"})
		return
	case errors.Is(err, world.ErrArchiveMismatch):
		c.JSON(http.StatusConflict, GenericResponse{Success: false, Message: err.Error()})
		return
	case err != nil:
		s.log.Error("❌ Восстановление 0x%X: %v", id, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	info, _ := s.manager.Info(region.ID())
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Регион восстановлен", Data: info})
}

func (s *AdminServer) handleCleanup(c *gin.Context) {
	destroyed := s.manager.CleanupIdleRegions(c.Request.Context())
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Очистка выполнена",
		Data:    gin.H{"destroyed": destroyed},
	})
}

// regionID разбирает :id (десятичный или 0x...); при ошибке отвечает 400
func (s *AdminServer) regionID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 0, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный ID региона"})
		return 0, false
	}
	return id, true
}
