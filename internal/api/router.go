package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"rotary-ams-gateway/config"
	"rotary-ams-gateway/internal/mw"
	"rotary-ams-gateway/internal/session"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/login", h.Login)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(session.RequireSession(h.tokens, h.sessions))
		{
			authed.POST("/logout", h.Logout)
			authed.GET("/me", h.Me)
			authed.GET("/me/qrcode.png", h.QRCode)

			authed.GET("/attendance-sheet", h.GetAttendanceSheet)
			authed.GET("/attendance/today", h.GetTodayAttendance)
			authed.POST("/attendance/scan", session.RequireAdmin(), h.ScanAttendance)

			authed.GET("/notifications", h.GetNotifications)
			authed.DELETE("/notifications/seen", h.ClearNotifications)

			authed.GET("/publications", caching, h.GetPublications)
			authed.GET("/financial-statements", caching, h.GetFinancialStatements)

			authed.PUT("/push/subscription", h.PutSubscription)
			authed.DELETE("/push/subscription", h.DeleteSubscription)
		}
	}

	return r
}
