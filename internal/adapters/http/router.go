package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/curriculum-relay/internal/adapters/signal"
	"github.com/dkeye/curriculum-relay/internal/app"
	"github.com/dkeye/curriculum-relay/internal/auth"
	"github.com/dkeye/curriculum-relay/internal/config"
	"github.com/dkeye/curriculum-relay/internal/domain"
	"github.com/dkeye/curriculum-relay/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware keeps an incoming request id or mints one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func SignalOptions(cfg *config.Config) signal.Options {
	return signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	orch *app.Orchestrator,
	authn *auth.Authenticator,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	ctrl := signal.NewSignalWSController(orch, SignalOptions(cfg))

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	authed := api.Group("", authn.Middleware())

	authed.GET("/me", func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c)
		user, _ := auth.UserFrom(c)
		c.JSON(http.StatusOK, gin.H{"identity": id, "user": user})
	})

	authed.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": orch.Registry.Rooms()})
	})

	authed.GET("/rooms/:id/members", func(c *gin.Context) {
		room := domain.RoomID(c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"room": room, "members": orch.Registry.Occupants(room)})
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
