package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"echallan-service/internal/config"
)

// NewRouter builds the gin engine with CORS, request logging and, for the
// local evidence backend, the static proof-image route.
func NewRouter(h *Handler, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(cors.New(corsConfig(cfg.HTTP.AllowedOrigins)))

	if cfg.Evidence.Backend == "local" && cfg.Evidence.URLPrefix != "" {
		r.Static(cfg.Evidence.URLPrefix, cfg.Evidence.Dir)
	}

	h.Register(r)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse("route not found"))
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	cc.AddAllowHeaders("Authorization")
	cc.AddExposeHeaders("Content-Disposition", "Content-Length")
	return cc
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
