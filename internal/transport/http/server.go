package http

import (
	"github.com/gin-gonic/gin"

	"coursetutor/internal/bootstrap"
	"coursetutor/internal/transport/http/handler"
	"coursetutor/internal/transport/http/middleware"
)

// Routes carries everything the engine serves.
type Routes struct {
	GinMode      string
	JWTSecret    string
	IndexerRoles []string

	Health *handler.HealthHandler
	Index  *handler.IndexHandler
	Answer *handler.AnswerHandler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	return NewEngine(Routes{
		GinMode:      app.Config.App.GinMode,
		JWTSecret:    app.Config.Auth.JWTSecret,
		IndexerRoles: app.Config.Auth.IndexerRoles,
		Health:       handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, app.HealthChecks()),
		Index:        handler.NewIndexHandler(app.Publisher, app.Ingestion, app.Chunks),
		Answer:       handler.NewAnswerHandler(app.Tutor, app.Companion),
	})
}

func NewEngine(r Routes) *gin.Engine {
	if r.GinMode != "" {
		gin.SetMode(r.GinMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", r.Health.Check)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(r.JWTSecret))

	indexer := middleware.RequireRole(r.IndexerRoles...)
	v1.POST("/courses/:id/index", indexer, r.Index.IndexCourse)
	v1.POST("/sources/:type/:id/index", indexer, r.Index.IndexSource)
	v1.DELETE("/sources/:type/:id/index", indexer, r.Index.DeleteSource)
	v1.GET("/sources/:type/:id/chunks", indexer, r.Index.ListChunks)

	v1.POST("/courses/:id/tutor", r.Answer.Tutor)
	v1.POST("/courses/:id/companion", r.Answer.Companion)

	return router
}
