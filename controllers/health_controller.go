package controllers

import (
	"context"
	"net/http"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
	"saathi/websocket"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const (
	healthCheckTimeout = 2 * time.Second
	appVersion         = "1.0.0"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	store         Pinger
	redis         *redis.Client
	hub           *websocket.Hub
	collaborators []interfaces.Collaborator
	startedAt     time.Time
}

// HealthReport adds outbound channel availability and live connection
// stats to the core service checks. Channels do not affect the status.
type HealthReport struct {
	models.HealthResponse
	Channels  map[string]string  `json:"channels"`
	WebSocket websocket.HubStats `json:"websocket"`
}

func NewHealthController(store Pinger, redisClient *redis.Client, hub *websocket.Hub, collaborators ...interfaces.Collaborator) *HealthController {
	return &HealthController{
		store:         store,
		redis:         redisClient,
		hub:           hub,
		collaborators: collaborators,
		startedAt:     time.Now(),
	}
}

// HealthCheck answers 503 only when the store is down.
func (hc *HealthController) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"store": "healthy",
	}
	if err := hc.store.Ping(ctx); err != nil {
		checks["store"] = "unhealthy"
	}
	if hc.redis != nil {
		checks["redis"] = "healthy"
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy"
		}
	}

	report := HealthReport{
		HealthResponse: utils.HealthCheckResponse(checks, appVersion, time.Since(hc.startedAt).Round(time.Second).String()),
		Channels:       make(map[string]string, len(hc.collaborators)),
	}
	for _, collaborator := range hc.collaborators {
		report.Channels[collaborator.Name()] = collaborator.Availability().String()
	}
	if hc.hub != nil {
		report.WebSocket = hc.hub.GetStats()
	}

	status := http.StatusOK
	if checks["store"] != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
