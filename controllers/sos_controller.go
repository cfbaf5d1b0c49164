package controllers

import (
	"errors"
	"saathi/models"
	"saathi/services"
	"saathi/utils"
	"saathi/websocket"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxHistoryLimit = 500

type SOSController struct {
	sosService *services.SOSService
	hub        *websocket.Hub
}

func NewSOSController(sosService *services.SOSService, hub *websocket.Hub) *SOSController {
	return &SOSController{
		sosService: sosService,
		hub:        hub,
	}
}

// =================== TRIGGER ===================

// TriggerSOS accepts both the nested and the flat payload. The caller id,
// when authenticated, replaces any id in the body.
func (sc *SOSController) TriggerSOS(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	req, err := models.DecodeTriggerRequest(raw)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingLocation),
			errors.Is(err, models.ErrMissingContacts),
			errors.Is(err, models.ErrMissingVictimName),
			errors.Is(err, models.ErrUnknownTriggerFormat):
			utils.BadRequestResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, "Invalid request body")
		}
		return
	}

	resp, err := sc.sosService.Trigger(c.Request.Context(), req, c.GetString("userID"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to trigger SOS")
		return
	}

	utils.CreatedResponse(c, "SOS triggered successfully", resp)
}

// =================== RESPONDER ACTIONS ===================

func (sc *SOSController) OfferHelp(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.OfferHelpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	resp, err := sc.sosService.OfferHelp(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to offer help")
		return
	}

	message := "Help offered successfully"
	if resp.AlreadyOffered {
		message = "Help already offered"
	}
	utils.SuccessResponse(c, message, resp)
}

func (sc *SOSController) Acknowledge(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.AcknowledgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body")
			return
		}
	}

	resp, err := sc.sosService.Acknowledge(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to acknowledge SOS")
		return
	}

	utils.SuccessResponse(c, "SOS acknowledged", resp)
}

func (sc *SOSController) UpdateStatus(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	resp, err := sc.sosService.UpdateStatus(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to update responder status")
		return
	}

	utils.SuccessResponse(c, "Status updated successfully", resp)
}

// =================== RESOLUTION ===================

// ResolveSOS runs under optional auth: events triggered anonymously have
// no owner to check against.
func (sc *SOSController) ResolveSOS(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	resp, err := sc.sosService.Resolve(c.Request.Context(), c.Param("id"), c.GetString("userID"), req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to resolve SOS")
		return
	}

	utils.SuccessResponse(c, "SOS resolved successfully", resp)
}

func (sc *SOSController) CancelSOS(c *gin.Context) {
	resp, err := sc.sosService.Cancel(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to cancel SOS")
		return
	}

	utils.SuccessResponse(c, "SOS cancelled successfully", resp)
}

// =================== QUERIES ===================

func (sc *SOSController) GetSOSStatus(c *gin.Context) {
	status, err := sc.sosService.Status(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get SOS status")
		return
	}

	utils.SuccessResponse(c, "SOS status retrieved successfully", status)
}

func (sc *SOSController) GetSOSDetail(c *gin.Context) {
	detail, err := sc.sosService.Detail(c.Request.Context(), c.Param("id"), c.GetString("userID"))
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get SOS details")
		return
	}

	utils.SuccessResponse(c, "SOS details retrieved successfully", detail)
}

func (sc *SOSController) GetActiveSOS(c *gin.Context) {
	var query models.ActiveFeedQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query parameters")
		return
	}
	if c.Query("lat") == "" || c.Query("lon") == "" {
		utils.BadRequestResponse(c, "lat and lon are required")
		return
	}

	items, err := sc.sosService.ActiveFeed(c.Request.Context(), c.GetString("userID"), query)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get active SOS events")
		return
	}

	utils.SuccessResponseWithMeta(c, "Active SOS events retrieved successfully", items, &models.MetaData{
		Total: int64(len(items)),
	})
}

func (sc *SOSController) GetMyResponses(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	items, err := sc.sosService.MyResponses(c.Request.Context(), userID, limit)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get responses")
		return
	}

	utils.SuccessResponse(c, "Responses retrieved successfully", items)
}

// =================== VICTIM LOCATION ===================

func (sc *SOSController) UpdateLocation(c *gin.Context) {
	var req models.LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	point, err := sc.sosService.UpdateLocation(c.Request.Context(), c.Param("id"), c.GetString("userID"), req)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to update location")
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", point)
}

func (sc *SOSController) GetLocationHistory(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	history, err := sc.sosService.LocationHistory(c.Request.Context(), c.Param("id"), c.GetString("userID"), limit)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to get location history")
		return
	}

	utils.SuccessResponse(c, "Location history retrieved successfully", history)
}

// =================== LIVE UPDATES ===================

// StreamSOS upgrades to a websocket bound to the event room. Browsers
// cannot set headers on the upgrade, so the token may come as ?token=.
func (sc *SOSController) StreamSOS(c *gin.Context) {
	eventID := c.Param("id")
	userID := c.GetString("userID")

	allowed, err := sc.sosService.CanSubscribe(c.Request.Context(), eventID, userID)
	if err != nil {
		utils.HandleServiceError(c, err, "Failed to open SOS stream")
		return
	}
	if !allowed {
		utils.ForbiddenResponse(c, "Offer help to follow this SOS live")
		return
	}

	if err := websocket.ServeEvent(sc.hub, c.Writer, c.Request, eventID, userID); err != nil {
		logrus.WithFields(logrus.Fields{
			"sos_id":  eventID,
			"user_id": userID,
		}).Warnf("WebSocket upgrade failed: %v", err)
	}
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		utils.BadRequestResponse(c, "limit must be between 1 and 500")
		return 0, false
	}
	return limit, true
}
