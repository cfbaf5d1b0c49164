// routes/sos.go
package routes

import (
	"saathi/controllers"
	"saathi/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSOSRoutes configures SOS broadcast routes. Victim-side routes run
// under optional auth so anonymously triggered events stay reachable;
// responder actions require a token.
func SetupSOSRoutes(router *gin.RouterGroup, sosController *controllers.SOSController, auth *middleware.AuthMiddleware, deps Dependencies) {
	sos := router.Group("/sos")

	// Victim side
	victim := sos.Group("")
	victim.Use(auth.OptionalAuth())
	{
		victim.POST("/trigger",
			middleware.TriggerRateLimit(deps.Redis, deps.Config.TriggerRateLimit, deps.Config.TriggerRateWindow),
			sosController.TriggerSOS,
		)
		victim.POST("/:id/resolve", sosController.ResolveSOS)
		victim.POST("/:id/cancel", sosController.CancelSOS)
		victim.POST("/:id/location-update", sosController.UpdateLocation)

		// Reads filtered by the caller's commitment
		victim.GET("/active", sosController.GetActiveSOS)
		victim.GET("/:id", sosController.GetSOSDetail)
		victim.GET("/:id/status", sosController.GetSOSStatus)
		victim.GET("/:id/location-history", sosController.GetLocationHistory)
		victim.GET("/:id/stream", sosController.StreamSOS)
	}

	// Responder side
	responder := sos.Group("")
	responder.Use(auth.RequireAuth())
	{
		responder.POST("/:id/offer-help", sosController.OfferHelp)
		responder.POST("/:id/acknowledge", sosController.Acknowledge)
		responder.POST("/:id/update-status", sosController.UpdateStatus)
		responder.GET("/my-responses", sosController.GetMyResponses)
	}
}
