package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/newsreel-backend/internal/http/handlers"
	"github.com/yungbote/newsreel-backend/internal/platform/envutil"
)

type RouterConfig struct {
	VideoHandler *handlers.VideoHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("newsreel"))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			envutil.String("CORS_ALLOW_ORIGIN", "http://localhost:3000"),
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/videos/:id", cfg.VideoHandler.GetVideo)
		api.GET("/videos/:id/assets", cfg.VideoHandler.ListAssets)
		api.POST("/videos/:id/generate-assets", cfg.VideoHandler.GenerateAssets)
		api.POST("/videos/:id/render", cfg.VideoHandler.Render)
	}

	return router
}
