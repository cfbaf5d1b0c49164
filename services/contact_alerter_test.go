package services

import (
	"saathi/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactEvent(resolution models.ResolutionType) models.SOSEvent {
	return models.SOSEvent{
		ID:             "sos-1",
		VictimName:     "Asha <Rao>",
		VictimPhone:    "+919876543210",
		Latitude:       centerLat,
		Longitude:      centerLon,
		StreetAddress:  "Indiranagar, Bengaluru",
		CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ResolutionType: resolution,
		MedicalInfo:    &models.MedicalInfo{BloodType: "O+", Allergies: []string{"penicillin"}},
		Contacts: []models.EmergencyContact{
			{Name: "Ravi", Phone: "+919812345678", Email: "ravi@example.com"},
			{Name: "Meera", Phone: "+919812340000"},
			{Name: "Mail only", Email: "mail@example.com"},
		},
	}
}

func TestContactAlerterSendsSMSAndEmail(t *testing.T) {
	sms, email := &fakeSMS{}, &fakeEmail{}
	alerter := NewContactAlerter(sms, email)

	count := alerter.AlertTriggered(contactEvent(""))
	alerter.Wait()

	assert.Equal(t, 3, count)
	assert.ElementsMatch(t, []string{"+919812345678", "+919812340000"}, sms.sent)
	require.Len(t, email.sent, 2)
	assert.Equal(t, "🚨 EMERGENCY ALERT - Asha <Rao> needs help", email.sent[0].Subject)
	assert.Contains(t, email.sent[0].HTML, "Asha &lt;Rao&gt;")
	assert.Contains(t, email.sent[0].HTML, "penicillin")
	assert.Contains(t, email.sent[0].PlainText, MapsLink(centerLat, centerLon))
}

func TestTriggeredEmailEscapesUserText(t *testing.T) {
	event := contactEvent("")
	event.StreetAddress = "<script>alert(1)</script>"
	event.MedicalInfo = nil

	msg, err := triggeredEmail(&event, models.EmergencyContact{Name: "Ravi & co", Email: "ravi@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "ravi@example.com", msg.To)
	assert.Contains(t, msg.HTML, "Dear Ravi &amp; co,")
	assert.Contains(t, msg.HTML, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, `href="`+MapsLink(centerLat, centerLon)+`"`)
	assert.NotContains(t, msg.HTML, "Medical Information")
}

func TestContactAlerterWithoutChannels(t *testing.T) {
	alerter := NewContactAlerter(&fakeSMS{unavailable: true}, &fakeEmail{unavailable: true})

	assert.Zero(t, alerter.AlertTriggered(contactEvent("")))
	alerter.Wait()
}

func TestContactAlerterSMSOnlyReach(t *testing.T) {
	alerter := NewContactAlerter(&fakeSMS{}, nil)
	assert.Equal(t, 2, alerter.Reachable(contactEvent("").Contacts))
}

func TestContactAlerterCancellation(t *testing.T) {
	tests := []struct {
		resolution models.ResolutionType
		wantSMS    int
	}{
		{resolution: models.ResolutionSelfCancelled, wantSMS: 2},
		{resolution: models.ResolutionFalseAlarm, wantSMS: 2},
		{resolution: models.ResolutionResponderHelped, wantSMS: 0},
		{resolution: models.ResolutionEmergencyServices, wantSMS: 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.resolution), func(t *testing.T) {
			sms := &fakeSMS{}
			alerter := NewContactAlerter(sms, &fakeEmail{})

			alerter.AlertCancelled(contactEvent(tt.resolution))
			alerter.Wait()

			assert.Len(t, sms.sent, tt.wantSMS)
		})
	}
}

func TestMapsLink(t *testing.T) {
	assert.Equal(t, "https://maps.google.com/?q=12.971600,77.594600", MapsLink(centerLat, centerLon))
}
