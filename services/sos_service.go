package services

import (
	"context"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultActiveFeedLimit  = 50
	defaultMyResponsesLimit = 50
	defaultTrailLimit       = 100
)

type SOSService struct {
	events     interfaces.EventStore
	ledger     interfaces.ActionLedger
	profiles   interfaces.ProfileStore
	tracker    interfaces.LocationTracker
	engine     *BroadcastEngine
	dispatcher *NotificationDispatcher
	policy     *DisclosurePolicy
	alerter    *ContactAlerter
	validator  *utils.ValidationService

	allowAnonymous bool
	now            func() time.Time
}

func NewSOSService(
	events interfaces.EventStore,
	ledger interfaces.ActionLedger,
	profiles interfaces.ProfileStore,
	tracker interfaces.LocationTracker,
	engine *BroadcastEngine,
	dispatcher *NotificationDispatcher,
	policy *DisclosurePolicy,
	alerter *ContactAlerter,
	allowAnonymous bool,
) *SOSService {
	return &SOSService{
		events:         events,
		ledger:         ledger,
		profiles:       profiles,
		tracker:        tracker,
		engine:         engine,
		dispatcher:     dispatcher,
		policy:         policy,
		alerter:        alerter,
		validator:      utils.NewValidationService(),
		allowAnonymous: allowAnonymous,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// =================== TRIGGER ===================

// Trigger persists the event and returns before the community broadcast
// runs. callerID, when present, overrides any victim id in the body.
func (s *SOSService) Trigger(ctx context.Context, req *models.TriggerSOSRequest, callerID string) (*models.TriggerSOSResponse, error) {
	if callerID != "" {
		req.VictimID = callerID
	} else if !s.allowAnonymous {
		return nil, utils.NewUnauthorizedError("Authentication required to trigger SOS")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := utils.ValidateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	event := &models.SOSEvent{
		VictimID:                  req.VictimID,
		VictimName:                req.VictimName,
		VictimPhone:               req.VictimPhone,
		Latitude:                  req.Latitude,
		Longitude:                 req.Longitude,
		Accuracy:                  req.Accuracy,
		StreetAddress:             s.engine.ResolveAddress(ctx, req.Latitude, req.Longitude),
		Status:                    models.SOSStatusActive,
		TriggerMethod:             req.TriggerMethod,
		CommunityBroadcastEnabled: req.CommunityBroadcast,
		BroadcastRadiusMeters:     req.BroadcastRadiusMeters,
		MedicalInfo:               req.MedicalInfo,
		Contacts:                  models.NormalizeContacts(req.Contacts),
		CreatedAt:                 s.now(),
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"sos_id":    event.ID,
		"victim_id": event.VictimID,
		"format":    req.Format,
		"broadcast": event.CommunityBroadcastEnabled,
		"radius":    event.BroadcastRadiusMeters,
	}).Info("SOS triggered")

	if event.VictimID != "" {
		if err := s.profiles.IncrementStat(ctx, event.VictimID, models.StatTotalSOSTriggered, 1); err != nil {
			logrus.WithError(err).WithField("sos_id", event.ID).Warn("Failed to update victim stats")
		}
	}

	contactsAlerted := s.alerter.AlertTriggered(*event)

	if event.CommunityBroadcastEnabled {
		s.engine.Submit(*event)
	}

	return &models.TriggerSOSResponse{
		SOSID:                     event.ID,
		Status:                    event.Status,
		StreetAddress:             event.StreetAddress,
		CommunityBroadcastEnabled: event.CommunityBroadcastEnabled,
		BroadcastRadiusMeters:     event.BroadcastRadiusMeters,
		ContactsAlerted:           contactsAlerted,
		CreatedAt:                 event.CreatedAt,
	}, nil
}

// =================== RESPONDER ACTIONS ===================

// OfferHelp unlocks the exact location for the responder. Repeating the
// call returns the first result without new side effects.
func (s *SOSService) OfferHelp(ctx context.Context, eventID, responderID string, req models.OfferHelpRequest) (*models.OfferHelpResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	event, err := s.actionableEvent(ctx, eventID, responderID)
	if err != nil {
		return nil, err
	}

	distance, err := utils.DistanceBetween(*req.Latitude, *req.Longitude, event.Latitude, event.Longitude)
	if err != nil {
		return nil, err
	}

	stored, created, err := s.ledger.RecordAction(ctx, &models.ResponderAction{
		SOSEventID:     event.ID,
		ResponderID:    responderID,
		ActionType:     models.ActionOfferedHelp,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		DistanceMeters: &distance,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}

	if created {
		if err := s.profiles.IncrementStat(ctx, responderID, models.StatTotalResponses, 1); err != nil {
			logrus.WithError(err).WithField("responder_id", responderID).Warn("Failed to update responder stats")
		}
		s.dispatcher.NotifyVictimHelpOffered(ctx, event, s.responderName(ctx, responderID), distance)

		logrus.WithFields(logrus.Fields{
			"sos_id":       event.ID,
			"responder_id": responderID,
			"distance":     utils.RoundMeters(distance),
		}).Info("Help offered")
	}

	recorded := distance
	if stored.DistanceMeters != nil {
		recorded = *stored.DistanceMeters
	}

	return &models.OfferHelpResponse{
		SOSID:          event.ID,
		VictimName:     event.VictimName,
		VictimPhone:    event.VictimPhone,
		Latitude:       event.Latitude,
		Longitude:      event.Longitude,
		StreetAddress:  event.StreetAddress,
		DistanceMeters: utils.RoundMeters(recorded),
		AlreadyOffered: !created,
	}, nil
}

func (s *SOSService) Acknowledge(ctx context.Context, eventID, responderID string, req models.AcknowledgeRequest) (*models.ActionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := requirePair(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	event, err := s.actionableEvent(ctx, eventID, responderID)
	if err != nil {
		return nil, err
	}

	stored, created, err := s.ledger.RecordAction(ctx, &models.ResponderAction{
		SOSEventID:     event.ID,
		ResponderID:    responderID,
		ActionType:     models.ActionAcknowledged,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		DistanceMeters: distanceFrom(event, req.Latitude, req.Longitude),
	})
	if err != nil {
		return nil, err
	}

	return &models.ActionResponse{
		SOSID:      event.ID,
		ActionType: stored.ActionType,
		Recorded:   created,
		RecordedAt: stored.CreatedAt,
	}, nil
}

// UpdateStatus appends to the responder's status trail. Only responders
// who offered help may post status.
func (s *SOSService) UpdateStatus(ctx context.Context, eventID, responderID string, req models.UpdateStatusRequest) (*models.ActionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := requirePair(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	event, err := s.actionableEvent(ctx, eventID, responderID)
	if err != nil {
		return nil, err
	}

	committed, err := s.ledger.HasResponded(ctx, event.ID, responderID, models.ActionOfferedHelp)
	if err != nil {
		return nil, err
	}
	if !committed {
		return nil, utils.NewCommitmentRequiredError()
	}

	stored, _, err := s.ledger.RecordAction(ctx, &models.ResponderAction{
		SOSEventID:     event.ID,
		ResponderID:    responderID,
		ActionType:     req.Status,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		DistanceMeters: distanceFrom(event, req.Latitude, req.Longitude),
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}

	if req.Status == models.ActionHelped {
		if err := s.profiles.IncrementStat(ctx, responderID, models.StatSuccessfulHelps, 1); err != nil {
			logrus.WithError(err).WithField("responder_id", responderID).Warn("Failed to update responder stats")
		}
	}

	s.dispatcher.NotifyVictimStatusChange(ctx, event, s.responderName(ctx, responderID), req.Status)

	return &models.ActionResponse{
		SOSID:      event.ID,
		ActionType: stored.ActionType,
		Recorded:   true,
		RecordedAt: stored.CreatedAt,
	}, nil
}

// =================== RESOLUTION ===================

// Resolve ends the event. Events with a known victim can only be resolved
// by that victim; events triggered anonymously can be resolved by anyone.
func (s *SOSService) Resolve(ctx context.Context, eventID, callerID string, req models.ResolveRequest) (*models.ResolveResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.VictimID != "" && !event.IsOwnedBy(callerID) {
		return nil, utils.NewNotOwnerError()
	}

	resolved, err := s.events.ResolveEvent(ctx, event.ID, models.Resolution{
		Type:       req.ResolutionType,
		ResolvedBy: callerID,
		Notes:      req.Notes,
		ResolvedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	notified, err := s.dispatcher.NotifyResolution(ctx, resolved.ID, resolved.ResolutionType)
	if err != nil {
		logrus.WithError(err).WithField("sos_id", resolved.ID).Warn("Failed to notify participants of resolution")
	}

	if err := s.tracker.Clear(ctx, resolved.ID); err != nil {
		logrus.WithError(err).WithField("sos_id", resolved.ID).Warn("Failed to clear location trail")
	}

	s.alerter.AlertCancelled(*resolved)

	logrus.WithFields(logrus.Fields{
		"sos_id":          resolved.ID,
		"resolution_type": resolved.ResolutionType,
		"notified":        notified,
	}).Info("SOS resolved")

	return &models.ResolveResponse{
		SOSID:              resolved.ID,
		Status:             resolved.Status,
		ResolutionType:     resolved.ResolutionType,
		ResolvedAt:         *resolved.ResolvedAt,
		RespondersNotified: notified,
	}, nil
}

func (s *SOSService) Cancel(ctx context.Context, eventID, callerID string) (*models.ResolveResponse, error) {
	return s.Resolve(ctx, eventID, callerID, models.ResolveRequest{
		ResolutionType: models.ResolutionSelfCancelled,
		Notes:          "Cancelled by user",
	})
}

// =================== QUERIES ===================

func (s *SOSService) Status(ctx context.Context, eventID, requesterID string) (*models.SOSStatusResponse, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	view, err := s.policy.View(ctx, event, requesterID)
	if err != nil {
		return nil, err
	}

	actions, err := s.ledger.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	return &models.SOSStatusResponse{
		SOSView:      view,
		HelperCounts: countHelpers(actions),
	}, nil
}

// Detail adds the requester's own actions. The victim and committed
// helpers also see the full action trail, the location trail and medical
// info.
func (s *SOSService) Detail(ctx context.Context, eventID, requesterID string) (*models.SOSDetailResponse, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	view, err := s.policy.View(ctx, event, requesterID)
	if err != nil {
		return nil, err
	}

	actions, err := s.ledger.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	detail := &models.SOSDetailResponse{
		SOSView:      view,
		HelperCounts: countHelpers(actions),
	}

	if requesterID != "" {
		for i := range actions {
			if actions[i].ResponderID != requesterID {
				continue
			}
			detail.MyActions = append(detail.MyActions, actions[i].ActionType)
			if actions[i].ActionType == models.ActionNotified && actions[i].DistanceMeters != nil {
				detail.Responder = &models.ResponderCandidate{
					UserID:         requesterID,
					DistanceMeters: *actions[i].DistanceMeters,
				}
			}
		}
	}

	if view.PreciseLocation {
		detail.Actions = actions
		detail.Medical = event.MedicalInfo
		if event.IsActive() {
			trail, err := s.tracker.History(ctx, event.ID, defaultTrailLimit)
			if err != nil {
				logrus.WithError(err).WithField("sos_id", event.ID).Warn("Failed to load location trail")
			} else {
				detail.Trail = trail
			}
		}
	}

	return detail, nil
}

// ActiveFeed lists active events around a position, coarse fields only.
// The radius defaults to the requester's responder radius.
func (s *SOSService) ActiveFeed(ctx context.Context, requesterID string, query models.ActiveFeedQuery) ([]models.ActiveSOSItem, error) {
	if err := s.validator.Validate(query); err != nil {
		return nil, err
	}

	radius := query.RadiusMeters
	if radius == 0 {
		radius = models.DefaultBroadcastRadiusMeters
		if requesterID != "" {
			profile, err := s.profiles.GetProfile(ctx, requesterID)
			if err != nil && !utils.IsNotFound(err) {
				return nil, err
			}
			if profile != nil && profile.ResponderRadiusMeters > 0 {
				radius = profile.ResponderRadiusMeters
			}
		}
	}

	events, err := s.events.ListActiveNear(ctx, query.Latitude, query.Longitude, radius, defaultActiveFeedLimit)
	if err != nil {
		return nil, err
	}

	items := make([]models.ActiveSOSItem, 0, len(events))
	for i := range events {
		if events[i].IsOwnedBy(requesterID) {
			continue
		}
		distance := utils.CalculateDistance(query.Latitude, query.Longitude, events[i].Latitude, events[i].Longitude)
		items = append(items, models.ActiveSOSItem{
			SOSID:              events[i].ID,
			VictimName:         events[i].VictimName,
			StreetAddress:      events[i].StreetAddress,
			DistanceMeters:     utils.RoundMeters(distance),
			RespondersNotified: events[i].RespondersNotified,
			CreatedAt:          events[i].CreatedAt,
		})
	}

	return items, nil
}

// MyResponses lists events the responder acted on, newest action first.
// Being notified is not an action of the responder.
func (s *SOSService) MyResponses(ctx context.Context, responderID string, limit int) ([]models.MyResponseItem, error) {
	if limit <= 0 || limit > defaultMyResponsesLimit {
		limit = defaultMyResponsesLimit
	}

	actions, err := s.ledger.ListByResponder(ctx, responderID, limit*4)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.ResponderAction)
	var order []string
	for _, action := range actions {
		if action.ActionType == models.ActionNotified {
			continue
		}
		if _, seen := latest[action.SOSEventID]; seen {
			continue
		}
		latest[action.SOSEventID] = action
		order = append(order, action.SOSEventID)
		if len(order) == limit {
			break
		}
	}

	items := make([]models.MyResponseItem, 0, len(order))
	if len(order) == 0 {
		return items, nil
	}

	events, err := s.events.GetEvents(ctx, order)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.SOSEvent, len(events))
	for i := range events {
		byID[events[i].ID] = &events[i]
	}

	for _, id := range order {
		event, ok := byID[id]
		if !ok {
			continue
		}
		action := latest[id]
		items = append(items, models.MyResponseItem{
			SOSID:          event.ID,
			StreetAddress:  event.StreetAddress,
			Status:         event.Status,
			LatestAction:   action.ActionType,
			LatestActionAt: action.CreatedAt,
			CreatedAt:      event.CreatedAt,
		})
	}

	return items, nil
}

// =================== VICTIM LOCATION ===================

func (s *SOSService) UpdateLocation(ctx context.Context, eventID, callerID string, req models.LocationUpdateRequest) (*models.LocationPoint, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.VictimID != "" && !event.IsOwnedBy(callerID) {
		return nil, utils.NewNotOwnerError()
	}
	if !event.IsActive() {
		return nil, utils.NewSOSInactiveError()
	}

	point := models.LocationPoint{
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		Accuracy:   req.Accuracy,
		RecordedAt: s.now(),
	}

	if err := s.events.UpdateEventLocation(ctx, event.ID, point.Latitude, point.Longitude); err != nil {
		return nil, err
	}
	if err := s.tracker.Append(ctx, event.ID, point); err != nil {
		logrus.WithError(err).WithField("sos_id", event.ID).Warn("Failed to append location trail")
	}

	event.Latitude = point.Latitude
	event.Longitude = point.Longitude
	if _, err := s.dispatcher.NotifyLocationUpdate(ctx, event); err != nil {
		logrus.WithError(err).WithField("sos_id", event.ID).Warn("Failed to notify helpers of location update")
	}

	return &point, nil
}

func (s *SOSService) LocationHistory(ctx context.Context, eventID, requesterID string, limit int) ([]models.LocationPoint, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	precise, err := s.policy.CanSeePrecise(ctx, event, requesterID)
	if err != nil {
		return nil, err
	}
	if !precise {
		return nil, utils.NewCommitmentRequiredError()
	}

	return s.tracker.History(ctx, event.ID, limit)
}

// CanSubscribe reports whether requesterID may join the live room of an
// event. Room frames carry exact coordinates, so the room follows the
// same rule as the precise view: the victim or a responder who offered
// help.
func (s *SOSService) CanSubscribe(ctx context.Context, eventID, requesterID string) (bool, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	return s.policy.CanSeePrecise(ctx, event, requesterID)
}

// =================== HELPERS ===================

// actionableEvent applies the checks shared by responder actions in
// order: existence, then activity, then self-help.
func (s *SOSService) actionableEvent(ctx context.Context, eventID, responderID string) (*models.SOSEvent, error) {
	if responderID == "" {
		return nil, utils.NewUnauthorizedError("Authentication required")
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive() {
		return nil, utils.NewSOSInactiveError()
	}
	if event.IsOwnedBy(responderID) {
		return nil, utils.NewSelfHelpError()
	}
	return event, nil
}

func (s *SOSService) responderName(ctx context.Context, responderID string) string {
	profile, err := s.profiles.GetProfile(ctx, responderID)
	if err != nil {
		return ""
	}
	return profile.Name
}

func requirePair(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return utils.NewBadRequestError("latitude and longitude must be provided together")
	}
	return nil
}

func distanceFrom(event *models.SOSEvent, lat, lon *float64) *float64 {
	if lat == nil || lon == nil {
		return nil
	}
	distance := utils.CalculateDistance(*lat, *lon, event.Latitude, event.Longitude)
	return &distance
}

// countHelpers counts distinct responders per action type.
func countHelpers(actions []models.ResponderAction) models.HelperCounts {
	seen := make(map[models.ActionType]map[string]bool)
	for _, action := range actions {
		if seen[action.ActionType] == nil {
			seen[action.ActionType] = make(map[string]bool)
		}
		seen[action.ActionType][action.ResponderID] = true
	}

	return models.HelperCounts{
		Acknowledged: len(seen[models.ActionAcknowledged]),
		Offering:     len(seen[models.ActionOfferedHelp]),
		EnRoute:      len(seen[models.ActionEnRoute]),
		Arrived:      len(seen[models.ActionArrived]),
		Helped:       len(seen[models.ActionHelped]),
		TotalActions: len(actions),
	}
}
