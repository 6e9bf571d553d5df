package server

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"patient-portal-server/internal/config"
	"patient-portal-server/internal/database"
	"patient-portal-server/internal/identity"
)

// NewRouter wires the payment routes. The status route runs the auth
// middleware in optional mode: a valid token scopes the lookup to the token
// user, the legacy user_id query parameter keeps working without one.
func NewRouter(cfg config.Config, h *Handlers, verifier identity.Verifier, db *sql.DB) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		stats := database.Health(db)
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	r.POST("/mobile-money/webhook", h.Webhook)
	r.GET("/mobile-money/status", optionalAuth(verifier), h.Status)

	protected := r.Group("/")
	protected.Use(AuthMiddleware(verifier))
	{
		protected.POST("/mobile-money/pay", h.Pay)
		protected.GET("/notifications", h.Notifications)
	}

	return r
}

// optionalAuth resolves a Bearer token when one is supplied but lets the
// request through without one.
func optionalAuth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		userID, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}
