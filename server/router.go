package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"crosspost/infrastructure/realtime"
	httpHandler "crosspost/interfaces/http"
	"crosspost/interfaces/middleware"
)

func InitiateRouter(
	healthHandler httpHandler.IHealthHandler,
	publishHandler httpHandler.IPublishHandler,
	connectHandler httpHandler.IConnectHandler,
	jobHub *realtime.Hub,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200", "http://localhost:4201", "https://localhost:4200", "https://localhost:4201"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", healthHandler.Healthz)

	api := router.Group("api")
	api.Use(middleware.Auth())

	// OAuth connect routes. The callback is hit by the platform redirect and
	// carries its own state binding instead of a bearer token.
	if connectHandler != nil {
		api.GET("/auth/:platform", connectHandler.GetAuthURL)
		router.GET("/auth/:platform/callback", connectHandler.Callback)
		api.GET("/auth/status", connectHandler.Status)
	}

	if publishHandler != nil {
		api.POST("/publish", publishHandler.Publish)
		api.GET("/publish/requests/:requestId", publishHandler.GetRequest)
		api.GET("/publish/jobs/:jobId", publishHandler.GetJob)
		api.DELETE("/publish/jobs/:jobId", publishHandler.CancelJob)
		api.GET("/publish/jobs/:jobId/stats", publishHandler.GetStats)
		api.GET("/publish/platforms", publishHandler.GetPlatforms)
		api.POST("/publish/dispatch-due", publishHandler.DispatchDue)
	}

	// SSE endpoint for real-time job status
	if jobHub != nil {
		api.GET("/publish/stream", func(c *gin.Context) { jobHub.Serve(c) })
	}

	return router
}
