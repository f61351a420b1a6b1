package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/raptaro/meditrakk-sub001/internal/common/middlewares"
	"github.com/raptaro/meditrakk-sub001/internal/queue/controllers"
	"github.com/raptaro/meditrakk-sub001/internal/queue/services"
	"github.com/raptaro/meditrakk-sub001/ws"
)

// Auth bundles the operator guard: JWT check plus role gate.
type Auth struct {
	Secret []byte
	Roles  []string
}

func (a Auth) middlewares() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middlewares.JWTMiddleware(a.Secret),
		middlewares.RequireRole(a.Roles...),
	}
}

// QueueRoutes mendaftarkan endpoint antrian walk-in dan websocket-nya.
func QueueRoutes(e *echo.Echo, svc *services.QueueService, hub *ws.Hub, auth Auth, logger zerolog.Logger) {
	queueController := controllers.NewQueueController(svc, logger)
	guard := auth.middlewares()

	api := e.Group("/api/queue")
	api.GET("/display", queueController.DisplayHandler) // Tidak pakai JWT, untuk layar TV

	operator := api.Group("", guard...)
	operator.POST("/entries", queueController.EnqueueHandler)
	operator.GET("/entries/:id", queueController.GetEntryHandler)
	operator.POST("/entries/:id/accept", queueController.AcceptHandler)
	operator.POST("/entries/:id/complete", queueController.CompleteHandler)
	operator.POST("/entries/:id/cancel", queueController.CancelHandler)
	operator.GET("/lanes", queueController.ListLanesHandler)
	operator.GET("/lanes/:lane", queueController.GetLaneHandler)
	operator.POST("/lanes/:lane/accept-next", queueController.AcceptNextHandler)

	e.GET("/ws/queue/operator", ws.ServeWS(hub, services.TopicOperator), guard...)
	e.GET("/ws/queue/display", ws.ServeWS(hub, services.TopicDisplay))
}
