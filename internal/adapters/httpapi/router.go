// Package httpapi wires the gin router: static web client, health and room
// snapshot endpoints, and the websocket signaling upgrade.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duet/internal/adapters/signal"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/registry"
)

// ClientTokenMiddleware tags each browser with a stable cookie token.
// It is informational only; participant identity is minted per connection.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *registry.Registry, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("DuetSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, reg.List())
	})

	api.GET("/rooms/code", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"roomCode": domain.GenerateRoomCode()})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "httpapi").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
