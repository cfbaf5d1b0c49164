package controllers

import (
	"saathi/models"
	"saathi/services"
	"saathi/utils"

	"github.com/gin-gonic/gin"
)

type ProfileController struct {
	profileService *services.ProfileService
}

func NewProfileController(profileService *services.ProfileService) *ProfileController {
	return &ProfileController{
		profileService: profileService,
	}
}

// GetProfile returns the caller's responder profile, creating it on first
// access.
func (pc *ProfileController) GetProfile(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	profile, err := pc.profileService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get profile")
		return
	}

	utils.SuccessResponse(c, "Profile retrieved successfully", profile)
}

func (pc *ProfileController) UpdateProfile(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	profile, err := pc.profileService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to update profile")
		return
	}

	utils.SuccessResponse(c, "Profile updated successfully", profile)
}

func (pc *ProfileController) UpdateLocation(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	profile, err := pc.profileService.UpdateLocation(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to update location")
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", profile)
}

func (pc *ProfileController) UpdateResponderSettings(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.ResponderSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	profile, err := pc.profileService.UpdateResponderSettings(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to update responder settings")
		return
	}

	utils.SuccessResponse(c, "Responder settings updated successfully", profile)
}

func (pc *ProfileController) UpdateFCMToken(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := pc.profileService.UpdateFCMToken(c.Request.Context(), userID, req); err != nil {
		utils.HandleServiceError(c, err, "Failed to update FCM token")
		return
	}

	utils.SuccessResponse(c, "FCM token updated successfully", nil)
}
