package services

import (
	"context"
	"errors"
	"saathi/interfaces"
	"saathi/models"
	"saathi/repositories"
	"saathi/utils"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	centerLat       = 12.9716
	centerLon       = 77.5946
	metersPerDegree = utils.EarthRadiusM * utils.DegToRad
)

func northOf(meters float64) (float64, float64) {
	return centerLat + meters/metersPerDegree, centerLon
}

func ptr[T any](v T) *T {
	return &v
}

// =================== FAKES ===================

type fakePush struct {
	mu          sync.Mutex
	unavailable bool
	rejected    map[string]bool
	failing     map[string]bool
	sent        []pushCall
}

type pushCall struct {
	Address string
	Message interfaces.PushMessage
}

func newFakePush() *fakePush {
	return &fakePush{
		rejected: make(map[string]bool),
		failing:  make(map[string]bool),
	}
}

func (f *fakePush) Name() string { return "fake-push" }

func (f *fakePush) Availability() interfaces.Availability {
	if f.unavailable {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (f *fakePush) Send(ctx context.Context, address string, msg interfaces.PushMessage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[address] {
		return false, errors.New("gateway timeout")
	}
	if f.rejected[address] {
		return false, nil
	}
	f.sent = append(f.sent, pushCall{Address: address, Message: msg})
	return true, nil
}

func (f *fakePush) calls() []pushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushCall(nil), f.sent...)
}

func (f *fakePush) sentTo(address string) []interfaces.PushMessage {
	var msgs []interfaces.PushMessage
	for _, call := range f.calls() {
		if call.Address == address {
			msgs = append(msgs, call.Message)
		}
	}
	return msgs
}

type fakeGeocoder struct {
	label       string
	err         error
	unavailable bool
	calls       int
}

func (f *fakeGeocoder) Name() string { return "fake-geocoder" }

func (f *fakeGeocoder) Availability() interfaces.Availability {
	if f.unavailable {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	f.calls++
	return f.label, f.err
}

type fakePublisher struct {
	mu      sync.Mutex
	updates []models.SOSUpdate
}

func (f *fakePublisher) PublishToEvent(eventID string, update models.SOSUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, update := range f.updates {
		types = append(types, update.Type)
	}
	return types
}

type fakeSMS struct {
	mu          sync.Mutex
	unavailable bool
	sent        []string
}

func (f *fakeSMS) Name() string { return "fake-sms" }

func (f *fakeSMS) Availability() interfaces.Availability {
	if f.unavailable {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (f *fakeSMS) SendSMS(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

type fakeEmail struct {
	mu          sync.Mutex
	unavailable bool
	sent        []interfaces.EmailMessage
}

func (f *fakeEmail) Name() string { return "fake-email" }

func (f *fakeEmail) Availability() interfaces.Availability {
	if f.unavailable {
		return interfaces.Unavailable
	}
	return interfaces.Available
}

func (f *fakeEmail) SendEmail(ctx context.Context, msg interfaces.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

// =================== HARNESS ===================

type harness struct {
	store      *repositories.MemoryStore
	push       *fakePush
	geocoder   *fakeGeocoder
	publisher  *fakePublisher
	sms        *fakeSMS
	email      *fakeEmail
	tracker    *MemoryLocationTracker
	dispatcher *NotificationDispatcher
	engine     *BroadcastEngine
	alerter    *ContactAlerter
	service    *SOSService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:     repositories.NewMemoryStore(),
		push:      newFakePush(),
		geocoder:  &fakeGeocoder{label: "Indiranagar, 100 Feet Road, Bengaluru"},
		publisher: &fakePublisher{},
		sms:       &fakeSMS{},
		email:     &fakeEmail{},
		tracker:   NewMemoryLocationTracker(time.Hour, 100),
	}

	h.dispatcher = NewNotificationDispatcher(h.push, h.store, h.store, h.publisher, 4)
	h.engine = NewBroadcastEngine(h.store, h.store, h.store, h.dispatcher, h.geocoder, time.Second)
	h.alerter = NewContactAlerter(h.sms, h.email)
	h.service = NewSOSService(
		h.store,
		h.store,
		h.store,
		h.tracker,
		h.engine,
		h.dispatcher,
		NewDisclosurePolicy(h.store),
		h.alerter,
		true,
	)

	t.Cleanup(func() {
		h.engine.Wait()
		h.alerter.Wait()
	})
	return h
}

// addResponder places an opted-in responder the given distance north of
// the center.
func (h *harness) addResponder(t *testing.T, id string, meters float64) {
	t.Helper()

	lat, lon := northOf(meters)
	location := models.NewGeoPoint(lat, lon)
	_, err := h.store.UpdateProfile(context.Background(), id, models.ProfileUpdate{
		Name:               ptr("Responder " + id),
		FCMToken:           ptr("token-" + id),
		IsResponderEnabled: ptr(true),
		Location:           &location,
	})
	require.NoError(t, err)
}

func (h *harness) addVictim(t *testing.T, id string) {
	t.Helper()

	_, err := h.store.UpdateProfile(context.Background(), id, models.ProfileUpdate{
		Name:     ptr("Asha"),
		FCMToken: ptr("token-" + id),
	})
	require.NoError(t, err)
}

// trigger creates an event at the center and waits for its broadcast.
func (h *harness) trigger(t *testing.T, victimID string) string {
	t.Helper()

	resp, err := h.service.Trigger(context.Background(), &models.TriggerSOSRequest{
		VictimName:            "Asha",
		VictimPhone:           "+919876543210",
		Latitude:              centerLat,
		Longitude:             centerLon,
		CommunityBroadcast:    true,
		BroadcastRadiusMeters: 500,
	}, victimID)
	require.NoError(t, err)

	h.engine.Wait()
	return resp.SOSID
}

func offerFrom(meters float64) models.OfferHelpRequest {
	lat, lon := northOf(meters)
	return models.OfferHelpRequest{Latitude: &lat, Longitude: &lon}
}
