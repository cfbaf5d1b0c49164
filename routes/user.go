// routes/user.go
package routes

import (
	"saathi/controllers"
	"saathi/middleware"

	"github.com/gin-gonic/gin"
)

// SetupUserRoutes configures responder profile routes
func SetupUserRoutes(router *gin.RouterGroup, profileController *controllers.ProfileController, auth *middleware.AuthMiddleware) {
	users := router.Group("/users")
	users.Use(auth.RequireAuth())
	{
		users.GET("/me", profileController.GetProfile)
		users.PUT("/me", profileController.UpdateProfile)
		users.PUT("/location", profileController.UpdateLocation)
		users.PUT("/responder-settings", profileController.UpdateResponderSettings)
		users.PUT("/fcm-token", profileController.UpdateFCMToken)
	}
}
