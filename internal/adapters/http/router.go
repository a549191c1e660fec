package http

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/dkeye/LivePodcast/internal/adapters/signal"
	"github.com/dkeye/LivePodcast/internal/app/orch"
	"github.com/dkeye/LivePodcast/internal/config"
	"github.com/dkeye/LivePodcast/internal/domain"
)

const (
	sessionName    = "LivePodcastSessions"
	clientTokenKey = "client_token"
)

// ClientTokenMiddleware gives every browser a stable token kept in its session
// cookie, so reconnects can be correlated in the logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				Ctx(c).Warn().Err(err).Msg("failed to save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", headerRequestID},
		ExposeHeaders: []string{"Content-Length", headerRequestID},
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	return cc
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	r.Use(RequestLogger())
	r.Use(cors.New(corsConfig(cfg.CORS.AllowOrigins)))

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, Secure: cfg.TLS.Enabled()})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(o, cfg.WS)
	ws := func(c *gin.Context) {
		Ctx(c).Debug().Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	}
	r.GET("/ws", ws)
	r.GET("/primus", ws)

	r.GET("/broadcasts/*room", broadcastPresence(o))
	r.GET("/api/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.ListRooms()})
	})

	if cfg.ServeStatic {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
	}

	log.Info().
		Str("module", "adapters.http").
		Bool("static", cfg.ServeStatic).
		Str("static_path", cfg.StaticPath).
		Msg("router setup")

	return r
}

// broadcastPresence answers 200 while the room has a live host and 404 otherwise.
// Both responses carry an empty body.
func broadcastPresence(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.Param("room"), "/")
		room, err := domain.ValidateRoomName(raw)
		if err != nil || !o.IsLive(room) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	}
}
