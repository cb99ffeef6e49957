package cmd

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"cgu-connect/internal/config"
	"cgu-connect/internal/handlers"
	"cgu-connect/internal/logging"
	"cgu-connect/internal/messaging"
	"cgu-connect/internal/middleware"
	"cgu-connect/internal/models"
	"cgu-connect/internal/observability"
	"cgu-connect/internal/rabbitmq"
	"cgu-connect/internal/telemetry"
	"cgu-connect/internal/ws"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type conversationGetter interface {
	Get(ctx context.Context, conversationID int64) (models.Conversation, error)
}

type routerDeps struct {
	store         pinger
	service       *messaging.Service
	conversations conversationGetter
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
	publisher     rabbitmq.Publisher
}

func newRouter(cfg *config.Config, deps routerDeps) *gin.Engine {
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.HTTP.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-User-ID", "X-Request-ID")
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(
		gin.Recovery(),
		cors.New(corsConfig),
		middleware.RequestID(),
		logging.GinLogger(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		observability.HTTPMetricsMiddleware(),
		middleware.Identity(),
	)

	handlers.RegisterRoutes(router,
		handlers.NewUserHandler(deps.service, deps.audit),
		handlers.NewConversationHandler(deps.service),
		handlers.NewMessageHandler(deps.service, deps.audit),
	)
	router.GET("/ws/conversations/:conversationId",
		ws.NewConversationWebSocketHandler(deps.hub, deps.conversations, cfg.HTTP.AllowedOrigins).Handle)

	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))
	router.GET("/healthz", func(c *gin.Context) {
		if err := deps.store.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterDebugRoutes(router, handlers.DebugOptions{
		Enabled: cfg.Debug.Enabled,
		Audit:   deps.audit,
		BrokerMode: func() (string, string) {
			return rabbitmq.Mode(deps.publisher)
		},
	})
	return router
}
