package http

import (
	"context"

	"github.com/dkeye/Reception/internal/app"
	"github.com/dkeye/Reception/internal/app/dashboard"
	"github.com/dkeye/Reception/internal/config"
	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Dashboard   *dashboard.Dashboard
	Guests      *app.Registry
	Credentials core.CredentialFetcher
	Hub         *Hub
	Limiter     *ControlRateLimiter
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			sess.Set("ct", token)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter wires the dashboard and guest APIs. ctx bounds the sessions
// that requests start.
func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ReceptionSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	control := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		control = deps.Limiter.Middleware()
	}

	api := r.Group("/api")
	if deps.Credentials != nil {
		api.GET("/token", tokenProxy(deps.Credentials))
	}

	if deps.Dashboard != nil {
		h := &dashboardHandlers{d: deps.Dashboard}
		dash := api.Group("/dashboard")
		dash.GET("/tiles", h.list)
		dash.GET("/tiles/:room", h.get)
		dash.POST("/tiles/:room/fullscreen", control, h.enterFullscreen)
		dash.DELETE("/fullscreen", control, h.exitFullscreen)
		dash.POST("/tiles/:room/mute", control, h.toggleMute)
		dash.POST("/tiles/:room/mic", control, h.toggleMic)
		if deps.Hub != nil {
			dash.GET("/ws", func(c *gin.Context) {
				log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("dashboard ws endpoint hit")
				deps.Hub.ServeWS(c.Writer, c.Request)
			})
		}
	}

	if deps.Guests != nil {
		h := &guestHandlers{ctx: ctx, guests: deps.Guests}
		g := api.Group("/guest")
		g.POST("/:room", control, h.start)
		g.GET("/:room", h.get)
		g.POST("/:room/mute", control, h.toggleMute)
		g.DELETE("/:room", control, h.dispose)
	}

	return r
}
