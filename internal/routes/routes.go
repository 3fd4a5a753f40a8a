// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-bridge/internal/config"
	"printer-bridge/internal/handler"
	"printer-bridge/internal/middleware"
	"printer-bridge/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config  *config.Config
	logger  *zap.Logger
	manager handler.Manager
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, manager handler.Manager) *Router {
	return &Router{
		config:  config,
		logger:  logger,
		manager: manager,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.manager, r.config, r.logger)
	printerHandler := handler.NewPrinterHandler(r.manager, r.logger)
	wsHandler := handler.NewWebSocketHandler(r.manager, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addPrinterRoutes(apiV1, printerHandler)

	r.addWebSocketRoutes(router, wsHandler)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadinessCheck)
	router.GET("/live", handler.LivenessCheck)
}

// addPrinterRoutes sets up printer control routes
func (r *Router) addPrinterRoutes(api *gin.RouterGroup, handler *handler.PrinterHandler) {
	printer := api.Group("/printer")
	{
		printer.POST("/print", handler.Print)
		printer.POST("/scan", handler.Scan)
		printer.POST("/connect", handler.Connect)
		printer.POST("/disconnect", handler.Disconnect)
		printer.POST("/reconnect", handler.Reconnect)
		printer.POST("/reprobe", handler.Reprobe)
		printer.GET("/state", handler.State)
		printer.GET("/device", handler.Device)
	}
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine, handler *handler.WebSocketHandler) {
	ws := router.Group("/ws")
	{
		ws.GET("/printer", handler.HandleStateConnection)
	}
}
