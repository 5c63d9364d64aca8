package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pdfchat/internal/bootstrap"
	"pdfchat/internal/transport/http/handler"
	"pdfchat/internal/transport/http/middleware"
)

// uploads beyond this are spilled to temp files by the multipart reader
const multipartMemory = 32 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := newEngine(app.Logger)

	healthHandler := handler.NewHealthHandler(
		app.Config.App.Name,
		app.Config.App.Env,
		app.StartedAt,
		app.RAG.State,
		healthChecks(app),
	)
	var historyHandler *handler.HistoryHandler
	if app.Builds != nil && app.QARecords != nil {
		historyHandler = handler.NewHistoryHandler(app.Config.Index.Name, app.Builds, app.QARecords)
	}
	registerRoutes(router, handler.NewRAGHandler(app.RAG), healthHandler, historyHandler)
	return router
}

func newEngine(logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = multipartMemory
	router.Use(middleware.Logger(logger), middleware.Recovery(logger))
	return router
}

// historyHandler may be nil.
func registerRoutes(router *gin.Engine, ragHandler *handler.RAGHandler, healthHandler *handler.HealthHandler, historyHandler *handler.HistoryHandler) {
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/documents", ragHandler.ProcessDocuments)
	v1.POST("/questions", ragHandler.AnswerQuestion)
	v1.GET("/index", ragHandler.IndexStatus)

	if historyHandler != nil {
		v1.GET("/index/builds", historyHandler.ListBuilds)
		v1.GET("/questions/recent", historyHandler.ListQuestions)
	}
}

func healthChecks(app *bootstrap.App) map[string]handler.Checker {
	checks := map[string]handler.Checker{}
	if app.MySQL != nil {
		checks["mysql"] = func(ctx context.Context) error {
			sqlDB, err := app.MySQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}
	if app.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error {
			if app.MQConn.IsClosed() {
				return errConnectionClosed
			}
			return nil
		}
	}
	return checks
}

var errConnectionClosed = errors.New("connection closed")
