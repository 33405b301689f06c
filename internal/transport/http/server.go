package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-study/internal/bootstrap"
	"gopherai-study/internal/transport/http/handler"
	"gopherai-study/internal/transport/http/middleware"
)

var errConnectionClosed = errors.New("connection closed")

// Handlers groups everything the router serves.
type Handlers struct {
	Health    *handler.HealthHandler
	Sessions  *handler.SessionHandler
	Documents *handler.DocumentHandler
	Quiz      *handler.QuizHandler
	Ask       *handler.AskHandler
	Metrics   http.Handler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	var publisher handler.JobPublisher
	if app.Publisher != nil {
		publisher = app.Publisher
	}
	h := Handlers{
		Health:   handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, dependencyChecks(app)...),
		Sessions: handler.NewSessionHandler(app.Lifecycle),
		Documents: handler.NewDocumentHandler(app.Outlines, publisher,
			app.Config.Outline.ChunkSize, app.Config.Outline.ChunkOverlap),
		Quiz:    handler.NewQuizHandler(app.Quiz),
		Ask:     handler.NewAskHandler(app.Ask),
		Metrics: app.Metrics.Handler(),
	}
	return Register(h, app.Config.Auth.JWTSecret)
}

// Register builds the engine with every route. Callers identify themselves
// with an optional bearer token; sessions are addressed by id.
func Register(h Handlers, jwtSecret string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", h.Health.Check)
	router.GET("/metrics", gin.WrapH(h.Metrics))

	v1 := router.Group("/api/v1")
	sessions := v1.Group("/sessions/:session_id")
	sessions.Use(middleware.OptionalAuthJWT(jwtSecret))
	sessions.POST("/heartbeat", h.Sessions.Heartbeat)
	sessions.DELETE("", h.Sessions.Teardown)

	sessions.GET("/outline", h.Documents.GetSessionOutline)
	sessions.POST("/documents", h.Documents.Upload)
	sessions.GET("/documents/:filename", h.Documents.GetOutline)
	sessions.GET("/documents/:filename/outline", h.Documents.GetOutline)
	sessions.DELETE("/documents/:filename", h.Documents.Delete)

	sessions.POST("/ask", h.Ask.Ask)
	sessions.POST("/quiz", h.Quiz.Generate)
	sessions.GET("/sections/:section_id/questions", h.Quiz.ListSectionQuestions)

	return router
}

func dependencyChecks(app *bootstrap.App) []handler.DependencyCheck {
	checks := []handler.DependencyCheck{{
		Name: app.Config.Storage.Driver,
		Check: func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	redisCheck := handler.DependencyCheck{Name: "redis"}
	if app.Redis != nil {
		redisCheck.Check = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}
	rabbitCheck := handler.DependencyCheck{Name: "rabbitmq"}
	if app.MQConn != nil {
		rabbitCheck.Check = func(context.Context) error {
			if app.MQConn.IsClosed() {
				return errConnectionClosed
			}
			return nil
		}
	}
	return append(checks, redisCheck, rabbitCheck)
}
