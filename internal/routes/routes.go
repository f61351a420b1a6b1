package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/raptaro/meditrakk-sub001/config"
	queueRoutes "github.com/raptaro/meditrakk-sub001/internal/queue/routes"
	"github.com/raptaro/meditrakk-sub001/internal/queue/services"
	"github.com/raptaro/meditrakk-sub001/ws"
)

// Init menginisialisasi semua routes menggunakan Echo framework
func Init(e *echo.Echo, cfg *config.Config, svc *services.QueueService, hub *ws.Hub, logger zerolog.Logger) {
	e.GET("/healthz", HealthHandler(svc, hub))

	queueRoutes.QueueRoutes(e, svc, hub, queueRoutes.Auth{
		Secret: cfg.SigningSecret(),
		Roles:  cfg.OperatorRoles,
	}, logger.With().Str("component", "http").Logger())
}

// HealthHandler reports the store ping and how many screens are connected.
func HealthHandler(svc *services.QueueService, hub *ws.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		data := map[string]interface{}{
			"store":            "ok",
			"operator_clients": hub.TopicCount(services.TopicOperator),
			"display_clients":  hub.TopicCount(services.TopicDisplay),
		}
		if err := svc.Ping(ctx); err != nil {
			data["store"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":  http.StatusServiceUnavailable,
				"message": "Store unavailable",
				"data":    data,
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  http.StatusOK,
			"message": "OK",
			"data":    data,
		})
	}
}
