package services

import (
	"context"
	"net/http"
	"saathi/models"
	"saathi/utils"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	serviceErr, ok := utils.GetServiceError(err)
	require.True(t, ok, "expected a ServiceError, got %v", err)
	assert.Equal(t, status, serviceErr.StatusCode)
}

func TestTriggerReturnsBeforeBroadcastAndRecordsStats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.service.Trigger(ctx, &models.TriggerSOSRequest{
		VictimID:              "spoofed",
		VictimName:            "Asha",
		Latitude:              centerLat,
		Longitude:             centerLon,
		CommunityBroadcast:    true,
		BroadcastRadiusMeters: 500,
		Contacts: []models.EmergencyContact{
			{Name: "Ravi", Phone: "+919812345678", Email: "ravi@example.com"},
		},
	}, "victim")
	require.NoError(t, err)
	h.engine.Wait()
	h.alerter.Wait()

	assert.NotEmpty(t, resp.SOSID)
	assert.Equal(t, models.SOSStatusActive, resp.Status)
	assert.Equal(t, 1, resp.ContactsAlerted)

	event, err := h.store.GetEvent(ctx, resp.SOSID)
	require.NoError(t, err)
	assert.Equal(t, "victim", event.VictimID)

	profile, err := h.store.GetProfile(ctx, "victim")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.TotalSOSTriggered)

	assert.Equal(t, []string{"+919812345678"}, h.sms.sent)
	require.Len(t, h.email.sent, 1)
	assert.Equal(t, "ravi@example.com", h.email.sent[0].To)
}

func TestTriggerRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Trigger(ctx, &models.TriggerSOSRequest{
		VictimName:            "Asha",
		Latitude:              91,
		Longitude:             centerLon,
		BroadcastRadiusMeters: 500,
	}, "victim")
	requireStatus(t, err, http.StatusBadRequest)

	_, err = h.service.Trigger(ctx, &models.TriggerSOSRequest{
		VictimName:            "Asha",
		Latitude:              centerLat,
		Longitude:             centerLon,
		BroadcastRadiusMeters: 50,
	}, "victim")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestTriggerAcceptsFreeFormVictimPhoneAndShortContactNumbers(t *testing.T) {
	h := newHarness(t)

	for _, phone := range []string{"+91 98765 43210", "098765 43210", "(555) 123-4567"} {
		resp, err := h.service.Trigger(context.Background(), &models.TriggerSOSRequest{
			VictimName:            "Asha",
			VictimPhone:           phone,
			Latitude:              centerLat,
			Longitude:             centerLon,
			BroadcastRadiusMeters: 500,
			Contacts: []models.EmergencyContact{
				{Name: "Police", Phone: "112"},
			},
		}, "")
		require.NoError(t, err, phone)
		assert.Equal(t, 1, resp.ContactsAlerted)
	}
	h.engine.Wait()
	h.alerter.Wait()
}

func TestTriggerAnonymousDisallowed(t *testing.T) {
	h := newHarness(t)
	h.service.allowAnonymous = false

	_, err := h.service.Trigger(context.Background(), &models.TriggerSOSRequest{
		VictimName:            "Asha",
		Latitude:              centerLat,
		Longitude:             centerLon,
		BroadcastRadiusMeters: 500,
	}, "")
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestOfferHelpTwiceReturnsSamePayloadWithoutDoubleCounting(t *testing.T) {
	h := newHarness(t)
	h.addVictim(t, "victim")
	h.addResponder(t, "helper", 100)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	first, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(120))
	require.NoError(t, err)
	second, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(300))
	require.NoError(t, err)

	assert.False(t, first.AlreadyOffered)
	assert.True(t, second.AlreadyOffered)
	assert.Equal(t, first.Latitude, second.Latitude)
	assert.Equal(t, first.Longitude, second.Longitude)
	assert.Equal(t, first.VictimPhone, second.VictimPhone)
	assert.Equal(t, 120, first.DistanceMeters)
	assert.Equal(t, first.DistanceMeters, second.DistanceMeters)

	actions, err := h.store.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	offers := 0
	for _, action := range actions {
		if action.ActionType == models.ActionOfferedHelp {
			offers++
		}
	}
	assert.Equal(t, 1, offers)

	profile, err := h.store.GetProfile(ctx, "helper")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.TotalResponses)

	victimPushes := h.push.sentTo("token-victim")
	require.Len(t, victimPushes, 1)
	assert.Equal(t, "🆘 Help is Coming!", victimPushes[0].Title)
	assert.Equal(t, "Responder helper is coming to help (~120m away)", victimPushes[0].Body)
}

func TestConcurrentOfferHelpCountsOnce(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(50))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	profile, err := h.store.GetProfile(ctx, "helper")
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.TotalResponses)
}

func TestSelfHelpIsRejected(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "victim")

	_, err := h.service.OfferHelp(context.Background(), eventID, "victim", offerFrom(0))
	requireStatus(t, err, http.StatusForbidden)
}

func TestAnonymousEventHasNoOwnerForSelfHelp(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "")

	resp, err := h.service.OfferHelp(context.Background(), eventID, "someone", offerFrom(10))
	require.NoError(t, err)
	assert.Equal(t, eventID, resp.SOSID)
}

func TestAcknowledgeAloneNeverDisclosesPreciseLocation(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "watcher", 100)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	ack, err := h.service.Acknowledge(ctx, eventID, "watcher", models.AcknowledgeRequest{})
	require.NoError(t, err)
	assert.True(t, ack.Recorded)

	again, err := h.service.Acknowledge(ctx, eventID, "watcher", models.AcknowledgeRequest{})
	require.NoError(t, err)
	assert.False(t, again.Recorded)

	status, err := h.service.Status(ctx, eventID, "watcher")
	require.NoError(t, err)
	assert.False(t, status.PreciseLocation)
	assert.Nil(t, status.Latitude)
	assert.Nil(t, status.Longitude)
	assert.Empty(t, status.VictimPhone)
	assert.Equal(t, 1, status.Acknowledged)

	detail, err := h.service.Detail(ctx, eventID, "watcher")
	require.NoError(t, err)
	assert.False(t, detail.PreciseLocation)
	assert.Nil(t, detail.Latitude)
	assert.Empty(t, detail.VictimPhone)
	assert.Empty(t, detail.Actions)
	assert.ElementsMatch(t, []models.ActionType{models.ActionNotified, models.ActionAcknowledged}, detail.MyActions)
	require.NotNil(t, detail.Responder)
	assert.InDelta(t, 100, detail.Responder.DistanceMeters, 0.5)

	_, err = h.service.LocationHistory(ctx, eventID, "watcher", 10)
	requireStatus(t, err, http.StatusForbidden)
}

func TestLiveRoomRequiresCommitment(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "notified", 100)
	h.addResponder(t, "watcher", 150)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	_, err := h.service.Acknowledge(ctx, eventID, "watcher", models.AcknowledgeRequest{})
	require.NoError(t, err)
	_, err = h.service.OfferHelp(ctx, eventID, "helper", offerFrom(200))
	require.NoError(t, err)

	tests := []struct {
		requester string
		allowed   bool
	}{
		{requester: "victim", allowed: true},
		{requester: "helper", allowed: true},
		{requester: "watcher", allowed: false},
		{requester: "notified", allowed: false},
		{requester: "stranger", allowed: false},
		{requester: "", allowed: false},
	}
	for _, tt := range tests {
		allowed, err := h.service.CanSubscribe(ctx, eventID, tt.requester)
		require.NoError(t, err)
		assert.Equal(t, tt.allowed, allowed, tt.requester)
	}

	anonymousID := h.trigger(t, "")
	allowed, err := h.service.CanSubscribe(ctx, anonymousID, "")
	require.NoError(t, err)
	assert.False(t, allowed)
	allowed, err = h.service.CanSubscribe(ctx, anonymousID, "stranger")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCommittedHelperSeesActionTrail(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "watcher", 100)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	_, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(200))
	require.NoError(t, err)

	detail, err := h.service.Detail(ctx, eventID, "helper")
	require.NoError(t, err)
	assert.True(t, detail.PreciseLocation)
	assert.Len(t, detail.Actions, 2)

	watcher, err := h.service.Detail(ctx, eventID, "watcher")
	require.NoError(t, err)
	assert.Empty(t, watcher.Actions)
}

func TestOfferHelpUnlocksPreciseLocation(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	_, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(200))
	require.NoError(t, err)

	status, err := h.service.Status(ctx, eventID, "helper")
	require.NoError(t, err)
	assert.True(t, status.PreciseLocation)
	require.NotNil(t, status.Latitude)
	assert.Equal(t, centerLat, *status.Latitude)
	assert.Equal(t, "+919876543210", status.VictimPhone)
	assert.Equal(t, 1, status.Offering)

	owner, err := h.service.Status(ctx, eventID, "victim")
	require.NoError(t, err)
	assert.True(t, owner.PreciseLocation)

	anonymous, err := h.service.Status(ctx, eventID, "")
	require.NoError(t, err)
	assert.False(t, anonymous.PreciseLocation)
}

func TestResolveOnceThenConflict(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	first, err := h.service.Resolve(ctx, eventID, "victim", models.ResolveRequest{
		ResolutionType: models.ResolutionResponderHelped,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SOSStatusResolved, first.Status)

	_, err = h.service.Resolve(ctx, eventID, "victim", models.ResolveRequest{
		ResolutionType: models.ResolutionFalseAlarm,
	})
	requireStatus(t, err, http.StatusConflict)

	event, err := h.store.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionResponderHelped, event.ResolutionType)
	require.NotNil(t, event.ResolvedAt)
	assert.True(t, first.ResolvedAt.Equal(*event.ResolvedAt))
}

func TestConcurrentResolveHasOneWinner(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.service.Cancel(ctx, eventID, "victim"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestResolveOwnershipRules(t *testing.T) {
	h := newHarness(t)
	owned := h.trigger(t, "victim")
	anonymous := h.trigger(t, "")
	ctx := context.Background()
	req := models.ResolveRequest{ResolutionType: models.ResolutionFalseAlarm}

	_, err := h.service.Resolve(ctx, owned, "stranger", req)
	requireStatus(t, err, http.StatusForbidden)

	_, err = h.service.Resolve(ctx, owned, "", req)
	requireStatus(t, err, http.StatusForbidden)

	_, err = h.service.Resolve(ctx, "missing", "victim", req)
	requireStatus(t, err, http.StatusNotFound)

	_, err = h.service.Resolve(ctx, owned, "victim", models.ResolveRequest{ResolutionType: "timeout"})
	requireStatus(t, err, http.StatusBadRequest)

	resp, err := h.service.Resolve(ctx, anonymous, "", req)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionFalseAlarm, resp.ResolutionType)
}

func TestActionsOnResolvedEventAreRejected(t *testing.T) {
	h := newHarness(t)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	_, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(50))
	require.NoError(t, err)
	_, err = h.service.Cancel(ctx, eventID, "victim")
	require.NoError(t, err)

	_, err = h.service.OfferHelp(ctx, eventID, "late", offerFrom(50))
	requireStatus(t, err, http.StatusConflict)

	_, err = h.service.Acknowledge(ctx, eventID, "late", models.AcknowledgeRequest{})
	requireStatus(t, err, http.StatusConflict)

	_, err = h.service.UpdateStatus(ctx, eventID, "helper", models.UpdateStatusRequest{Status: models.ActionArrived})
	requireStatus(t, err, http.StatusConflict)

	status, err := h.service.Status(ctx, eventID, "helper")
	require.NoError(t, err)
	assert.Equal(t, models.SOSStatusResolved, status.Status)
}

func TestResolutionNotifiesEveryParticipantWithAddress(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "near", 100)
	h.addResponder(t, "other", 300)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	// a participant that never registered a push address
	_, err := h.service.Acknowledge(ctx, eventID, "no-token", models.AcknowledgeRequest{})
	require.NoError(t, err)

	resp, err := h.service.Resolve(ctx, eventID, "victim", models.ResolveRequest{
		ResolutionType: models.ResolutionEmergencyServices,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RespondersNotified)

	resolved := h.push.sentTo("token-near")
	require.Len(t, resolved, 2)
	assert.Equal(t, "✅ Emergency Resolved", resolved[1].Title)
	assert.Equal(t, "Emergency services responded. Thank you for being ready!", resolved[1].Body)
	assert.Contains(t, h.publisher.types(), models.UpdateResolved)
}

func TestOutOfScopeResponderCanStillOfferHelp(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "near", 100)
	h.addResponder(t, "far", 800)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	participants, err := h.store.Participants(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, participants)

	resp, err := h.service.OfferHelp(ctx, eventID, "far", offerFrom(800))
	require.NoError(t, err)
	assert.Equal(t, 800, resp.DistanceMeters)
	assert.Equal(t, centerLat, resp.Latitude)
}

func TestUpdateStatusRequiresCommitment(t *testing.T) {
	h := newHarness(t)
	h.addVictim(t, "victim")
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	_, err := h.service.UpdateStatus(ctx, eventID, "helper", models.UpdateStatusRequest{Status: models.ActionEnRoute})
	requireStatus(t, err, http.StatusForbidden)

	_, err = h.service.OfferHelp(ctx, eventID, "helper", offerFrom(100))
	require.NoError(t, err)

	for _, status := range []models.ActionType{models.ActionEnRoute, models.ActionArrived, models.ActionHelped, models.ActionHelped} {
		resp, err := h.service.UpdateStatus(ctx, eventID, "helper", models.UpdateStatusRequest{Status: status})
		require.NoError(t, err)
		assert.True(t, resp.Recorded)
	}

	_, err = h.service.UpdateStatus(ctx, eventID, "helper", models.UpdateStatusRequest{Status: models.ActionAcknowledged})
	requireStatus(t, err, http.StatusBadRequest)

	lat := centerLat
	_, err = h.service.UpdateStatus(ctx, eventID, "helper", models.UpdateStatusRequest{Status: models.ActionArrived, Latitude: &lat})
	requireStatus(t, err, http.StatusBadRequest)

	profile, err := h.store.GetProfile(ctx, "helper")
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.SuccessfulHelps)

	status, err := h.service.Status(ctx, eventID, "victim")
	require.NoError(t, err)
	assert.Equal(t, 1, status.EnRoute)
	assert.Equal(t, 1, status.Arrived)
	assert.Equal(t, 1, status.Helped)

	victimPushes := h.push.sentTo("token-victim")
	require.NotEmpty(t, victimPushes)
	assert.Equal(t, "Helper Arrived", victimPushes[2].Title)
}

func TestVictimLocationUpdates(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "helper", 100)
	eventID := h.trigger(t, "victim")
	ctx := context.Background()

	_, err := h.service.OfferHelp(ctx, eventID, "helper", offerFrom(100))
	require.NoError(t, err)

	lat, lon := northOf(50)
	_, err = h.service.UpdateLocation(ctx, eventID, "stranger", models.LocationUpdateRequest{Latitude: &lat, Longitude: &lon})
	requireStatus(t, err, http.StatusForbidden)

	point, err := h.service.UpdateLocation(ctx, eventID, "victim", models.LocationUpdateRequest{Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	assert.Equal(t, lat, point.Latitude)

	event, err := h.store.GetEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, lat, event.Latitude)

	history, err := h.service.LocationHistory(ctx, eventID, "helper", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, lat, history[0].Latitude)

	updates := h.push.sentTo("token-helper")
	assert.Equal(t, "📍 Location Updated", updates[len(updates)-1].Title)

	_, err = h.service.Cancel(ctx, eventID, "victim")
	require.NoError(t, err)

	history, err = h.service.LocationHistory(ctx, eventID, "helper", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestActiveFeedAndMyResponses(t *testing.T) {
	h := newHarness(t)
	h.addResponder(t, "helper", 100)
	first := h.trigger(t, "victim-a")
	second := h.trigger(t, "victim-b")
	ctx := context.Background()

	lat, lon := northOf(100)
	feed, err := h.service.ActiveFeed(ctx, "helper", models.ActiveFeedQuery{Latitude: lat, Longitude: lon})
	require.NoError(t, err)
	assert.Len(t, feed, 2)
	for _, item := range feed {
		assert.Equal(t, 100, item.DistanceMeters)
	}

	own, err := h.service.ActiveFeed(ctx, "victim-a", models.ActiveFeedQuery{Latitude: lat, Longitude: lon})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, second, own[0].SOSID)

	_, err = h.service.OfferHelp(ctx, first, "helper", offerFrom(100))
	require.NoError(t, err)
	_, err = h.service.Acknowledge(ctx, second, "helper", models.AcknowledgeRequest{})
	require.NoError(t, err)

	responses, err := h.service.MyResponses(ctx, "helper", 10)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	byID := map[string]models.ActionType{}
	for _, item := range responses {
		byID[item.SOSID] = item.LatestAction
	}
	assert.Equal(t, models.ActionOfferedHelp, byID[first])
	assert.Equal(t, models.ActionAcknowledged, byID[second])
}

func TestUnknownEventIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.OfferHelp(ctx, "missing", "helper", offerFrom(10))
	requireStatus(t, err, http.StatusNotFound)

	_, err = h.service.Status(ctx, "missing", "helper")
	requireStatus(t, err, http.StatusNotFound)
}
