package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finrag/internal/bootstrap"
	"finrag/internal/transport/http/handler"
	"finrag/internal/transport/http/middleware"
	"finrag/internal/transport/http/response"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config
	if cfg.App.GinMode != "" {
		gin.SetMode(cfg.App.GinMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = cfg.App.MaxUploadBytes
	router.Use(middleware.RequestLogger(app.Logger), middleware.Recovery(app.Logger))

	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "")
	})
	router.NoMethod(func(c *gin.Context) {
		response.Error(c, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "")
	})

	dev := cfg.IsDevelopment()
	healthHandler := handler.NewHealthHandler(app)
	documentHandler := handler.NewDocumentHandler(app.Documents, cfg.App.MaxUploadBytes, dev)
	searchHandler := handler.NewSearchHandler(app.Search, dev)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Timeout(cfg.RequestTimeout()))

	guard := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if !cfg.Auth.Enabled {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{middleware.AuthJWT(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), h}
	}

	documents := v1.Group("/documents")
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.POST("", guard(documentHandler.Upload)...)
	documents.PATCH("/:id", guard(documentHandler.Patch)...)
	documents.DELETE("/:id", guard(documentHandler.Delete)...)
	documents.POST("/:id/reindex", guard(documentHandler.Reindex)...)

	v1.POST("/search", searchHandler.Search)
	v1.GET("/stats", documentHandler.Stats)

	return router
}
