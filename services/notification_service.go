package services

import (
	"context"
	"fmt"
	"saathi/interfaces"
	"saathi/models"
	"saathi/utils"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultPushConcurrency = 16

// BatchResult counts per-recipient outcomes of one fan-out.
type BatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// NotificationDispatcher sends push alerts to responders and victims and
// mirrors each event update onto its live room.
type NotificationDispatcher struct {
	push        interfaces.PushGateway
	ledger      interfaces.ActionLedger
	profiles    interfaces.ProfileStore
	publisher   interfaces.EventPublisher
	concurrency int
}

func NewNotificationDispatcher(
	push interfaces.PushGateway,
	ledger interfaces.ActionLedger,
	profiles interfaces.ProfileStore,
	publisher interfaces.EventPublisher,
	concurrency int,
) *NotificationDispatcher {
	if concurrency <= 0 {
		concurrency = defaultPushConcurrency
	}

	return &NotificationDispatcher{
		push:        push,
		ledger:      ledger,
		profiles:    profiles,
		publisher:   publisher,
		concurrency: concurrency,
	}
}

// NotifyBatch sends one alert per candidate. A missing or rejected push
// address counts as failed; the batch always runs to the end.
func (d *NotificationDispatcher) NotifyBatch(ctx context.Context, candidates []models.ResponderCandidate, eventID, addressLabel string) BatchResult {
	if len(candidates) == 0 {
		return BatchResult{}
	}

	if d.push.Availability() == interfaces.Unavailable {
		logrus.WithField("sos_id", eventID).Warnf("Push gateway %s unavailable, %d responders not alerted", d.push.Name(), len(candidates))
		PushTotal.WithLabelValues("unavailable").Add(float64(len(candidates)))
		return BatchResult{Failed: len(candidates)}
	}

	var (
		sent   atomic.Int64
		failed atomic.Int64
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, d.concurrency)

	for _, candidate := range candidates {
		if candidate.PushToken == "" {
			failed.Add(1)
			PushTotal.WithLabelValues("no_address").Inc()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(candidate models.ResponderCandidate) {
			defer wg.Done()
			defer func() { <-sem }()

			if d.send(ctx, candidate.PushToken, alertMessage(eventID, addressLabel, candidate.DistanceMeters)) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
		}(candidate)
	}
	wg.Wait()

	result := BatchResult{Sent: int(sent.Load()), Failed: int(failed.Load())}
	logrus.WithFields(logrus.Fields{
		"sos_id": eventID,
		"sent":   result.Sent,
		"failed": result.Failed,
	}).Info("SOS batch notifications dispatched")

	return result
}

// NotifyResolution tells every distinct ledger participant with a push
// address that the event is over. It returns the number delivered.
func (d *NotificationDispatcher) NotifyResolution(ctx context.Context, eventID string, resolutionType models.ResolutionType) (int, error) {
	d.publish(eventID, models.UpdateResolved, map[string]interface{}{
		"resolution_type": resolutionType,
	})

	participants, err := d.ledger.Participants(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if len(participants) == 0 || d.push.Availability() == interfaces.Unavailable {
		return 0, nil
	}

	profiles, err := d.profiles.GetProfiles(ctx, participants)
	if err != nil {
		return 0, err
	}

	msg := interfaces.PushMessage{
		Title: "✅ Emergency Resolved",
		Body:  resolutionMessage(resolutionType),
		Data: map[string]string{
			"type":            "sos_update",
			"sos_event_id":    eventID,
			"update_type":     "resolved",
			"resolution_type": string(resolutionType),
			"click_action":    "OPEN_SOS_UPDATE",
		},
	}

	return d.sendToProfiles(ctx, profiles, msg), nil
}

// NotifyVictimHelpOffered reports whether the victim's device accepted
// the message. Anonymous victims cannot be reached.
func (d *NotificationDispatcher) NotifyVictimHelpOffered(ctx context.Context, event *models.SOSEvent, responderName string, distanceMeters float64) bool {
	if responderName == "" {
		responderName = "A community member"
	}

	d.publish(event.ID, models.UpdateHelpOffered, map[string]interface{}{
		"responder_name":  responderName,
		"distance_meters": utils.RoundMeters(distanceMeters),
	})

	return d.notifyVictim(ctx, event, interfaces.PushMessage{
		Title: "🆘 Help is Coming!",
		Body:  fmt.Sprintf("%s is coming to help (%s)", responderName, utils.FormatDistance(distanceMeters)),
		Data: map[string]string{
			"type":           "help_offered",
			"sos_event_id":   event.ID,
			"responder_name": responderName,
			"click_action":   "OPEN_SOS_STATUS",
		},
	})
}

func (d *NotificationDispatcher) NotifyVictimStatusChange(ctx context.Context, event *models.SOSEvent, responderName string, status models.ActionType) bool {
	if responderName == "" {
		responderName = "A helper"
	}

	d.publish(event.ID, models.UpdateResponderState, map[string]interface{}{
		"responder_name": responderName,
		"status":         status,
	})

	title, body := statusChangeText(responderName, status)
	return d.notifyVictim(ctx, event, interfaces.PushMessage{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "sos_update",
			"sos_event_id": event.ID,
			"update_type":  string(status),
			"click_action": "OPEN_SOS_STATUS",
		},
	})
}

// NotifyLocationUpdate alerts responders who offered help that the victim
// moved. It returns the number delivered.
func (d *NotificationDispatcher) NotifyLocationUpdate(ctx context.Context, event *models.SOSEvent) (int, error) {
	d.publish(event.ID, models.UpdateLocation, map[string]interface{}{
		"latitude":  event.Latitude,
		"longitude": event.Longitude,
	})

	if d.push.Availability() == interfaces.Unavailable {
		return 0, nil
	}

	actions, err := d.ledger.ListByEvent(ctx, event.ID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	var helpers []string
	for _, action := range actions {
		if action.ActionType == models.ActionOfferedHelp && !seen[action.ResponderID] {
			seen[action.ResponderID] = true
			helpers = append(helpers, action.ResponderID)
		}
	}
	if len(helpers) == 0 {
		return 0, nil
	}

	profiles, err := d.profiles.GetProfiles(ctx, helpers)
	if err != nil {
		return 0, err
	}

	msg := interfaces.PushMessage{
		Title: "📍 Location Updated",
		Body:  fmt.Sprintf("%s has moved. Open the alert for their latest position.", event.VictimName),
		Data: map[string]string{
			"type":         "sos_update",
			"sos_event_id": event.ID,
			"update_type":  "location_update",
			"click_action": "OPEN_SOS_UPDATE",
		},
	}

	return d.sendToProfiles(ctx, profiles, msg), nil
}

// PublishBroadcastCompleted pushes the final broadcast tally to the room.
func (d *NotificationDispatcher) PublishBroadcastCompleted(eventID string, notified int, result BatchResult) {
	d.publish(eventID, models.UpdateBroadcastDone, map[string]interface{}{
		"responders_notified": notified,
		"sent":                result.Sent,
		"failed":              result.Failed,
	})
}

func (d *NotificationDispatcher) notifyVictim(ctx context.Context, event *models.SOSEvent, msg interfaces.PushMessage) bool {
	if event.VictimID == "" || d.push.Availability() == interfaces.Unavailable {
		return false
	}

	profile, err := d.profiles.GetProfile(ctx, event.VictimID)
	if err != nil {
		if !utils.IsNotFound(err) {
			logrus.WithError(err).WithField("sos_id", event.ID).Warn("Failed to load victim profile")
		}
		return false
	}
	if !profile.HasPushToken() {
		return false
	}

	return d.send(ctx, profile.FCMToken, msg)
}

func (d *NotificationDispatcher) sendToProfiles(ctx context.Context, profiles []models.Profile, msg interfaces.PushMessage) int {
	delivered := 0
	for i := range profiles {
		if !profiles[i].HasPushToken() {
			continue
		}
		if d.send(ctx, profiles[i].FCMToken, msg) {
			delivered++
		}
	}
	return delivered
}

func (d *NotificationDispatcher) send(ctx context.Context, address string, msg interfaces.PushMessage) bool {
	delivered, err := d.push.Send(ctx, address, msg)
	switch {
	case err != nil:
		PushTotal.WithLabelValues("error").Inc()
		logrus.WithError(err).Warn("Push delivery failed")
		return false
	case !delivered:
		PushTotal.WithLabelValues("rejected").Inc()
		return false
	default:
		PushTotal.WithLabelValues("delivered").Inc()
		return true
	}
}

func (d *NotificationDispatcher) publish(eventID, updateType string, data interface{}) {
	if d.publisher == nil {
		return
	}
	d.publisher.PublishToEvent(eventID, models.SOSUpdate{
		Type:      updateType,
		SOSID:     eventID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func alertMessage(eventID, addressLabel string, distanceMeters float64) interfaces.PushMessage {
	return interfaces.PushMessage{
		Title: "🚨 Emergency Nearby!",
		Body:  fmt.Sprintf("Someone needs help at %s (%s)", addressLabel, utils.FormatDistance(distanceMeters)),
		Data: map[string]string{
			"type":            "sos_alert",
			"sos_event_id":    eventID,
			"street_location": addressLabel,
			"distance_meters": strconv.Itoa(utils.RoundMeters(distanceMeters)),
			"click_action":    "OPEN_SOS_ALERT",
		},
	}
}

func resolutionMessage(resolutionType models.ResolutionType) string {
	switch resolutionType {
	case models.ResolutionSelfCancelled:
		return "The person cancelled their emergency alert."
	case models.ResolutionResponderHelped:
		return "Emergency resolved - help arrived. Thank you!"
	case models.ResolutionEmergencyServices:
		return "Emergency services responded. Thank you for being ready!"
	case models.ResolutionFalseAlarm:
		return "This was a false alarm. Thank you for being ready to help!"
	default:
		return "Emergency has been resolved."
	}
}

func statusChangeText(responderName string, status models.ActionType) (string, string) {
	switch status {
	case models.ActionEnRoute:
		return "🏃 Helper On The Way", fmt.Sprintf("%s is on the way to you", responderName)
	case models.ActionArrived:
		return "Helper Arrived", fmt.Sprintf("%s has arrived at your location", responderName)
	case models.ActionHelped:
		return "✅ Help Provided", fmt.Sprintf("%s marked your emergency as helped", responderName)
	case models.ActionCancelled:
		return "Helper Cancelled", fmt.Sprintf("%s can no longer come to help", responderName)
	default:
		return "SOS Update", fmt.Sprintf("%s updated their status", responderName)
	}
}
