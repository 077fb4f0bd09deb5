package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/socialfeed/socialfeed-auth/internal/config"
	"github.com/socialfeed/socialfeed-auth/internal/http/handler"
	"github.com/socialfeed/socialfeed-auth/internal/http/middleware"
	"github.com/socialfeed/socialfeed-auth/internal/http/response"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *middleware.Auth, logger *zap.Logger) (*gin.Engine, error) {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidations(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	api := r.Group("/api/v1")

	api.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, "API is healthy", gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authMiddleware.RequireAuth, authHandler.Logout)
		auth.PUT("/fcm-token", authMiddleware.RequireAuth, authHandler.UpdateFCMToken)
	}

	r.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "The requested route does not exist.", nil)
	})

	return r, nil
}
