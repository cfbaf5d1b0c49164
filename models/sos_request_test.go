package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNestedTrigger(t *testing.T) {
	raw := []byte(`{
		"user": {"id": "u-1", "name": "Asha", "phone": "+919876543210", "email": "asha@example.com"},
		"location": {"latitude": 12.9716, "longitude": 77.5946, "accuracy": 8.5},
		"contacts": [{"name": "Ravi", "phone": "+919812345678"}],
		"medical_info": {"blood_type": "O+"},
		"trigger_method": "voice",
		"broadcast_radius_meters": 1000
	}`)

	req, err := DecodeTriggerRequest(raw)
	require.NoError(t, err)

	assert.Equal(t, TriggerFormatNested, req.Format)
	assert.Equal(t, "u-1", req.VictimID)
	assert.Equal(t, "Asha", req.VictimName)
	assert.Equal(t, "asha@example.com", req.VictimEmail)
	assert.Equal(t, 12.9716, req.Latitude)
	assert.Equal(t, 77.5946, req.Longitude)
	require.NotNil(t, req.Accuracy)
	assert.Equal(t, 8.5, *req.Accuracy)
	assert.Len(t, req.Contacts, 1)
	assert.Equal(t, "O+", req.MedicalInfo.BloodType)
	assert.Equal(t, "voice", req.TriggerMethod)
	assert.True(t, req.CommunityBroadcast)
	assert.Equal(t, 1000, req.BroadcastRadiusMeters)
}

func TestDecodeFlatTrigger(t *testing.T) {
	raw := []byte(`{
		"user_id": "u-2",
		"user_name": "Meera",
		"user_phone": "+919800000000",
		"latitude": 0,
		"longitude": 0,
		"contacts": [{"name": "Ravi", "phone": "+919812345678"}],
		"community_broadcast": false
	}`)

	req, err := DecodeTriggerRequest(raw)
	require.NoError(t, err)

	assert.Equal(t, TriggerFormatFlat, req.Format)
	assert.Equal(t, "u-2", req.VictimID)
	assert.Equal(t, "Meera", req.VictimName)
	assert.Zero(t, req.Latitude)
	assert.False(t, req.CommunityBroadcast)
	assert.Equal(t, DefaultBroadcastRadiusMeters, req.BroadcastRadiusMeters)
}

func TestDecodeTriggerNormalizesContactPhones(t *testing.T) {
	raw := []byte(`{
		"user_name": "Meera",
		"user_phone": "+91 98000 00000",
		"latitude": 12.97,
		"longitude": 77.59,
		"contacts": [
			{"name": "Ravi", "phone": "+91 98123-45678"},
			{"name": "Police", "phone": "112"}
		]
	}`)

	req, err := DecodeTriggerRequest(raw)
	require.NoError(t, err)

	assert.Equal(t, "+91 98000 00000", req.VictimPhone)
	require.Len(t, req.Contacts, 2)
	assert.Equal(t, "+919812345678", req.Contacts[0].Phone)
	assert.Equal(t, "112", req.Contacts[1].Phone)
}

func TestDecodeTriggerErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "no location shape", raw: `{"user_name": "Asha"}`, want: ErrUnknownTriggerFormat},
		{name: "nested without coordinates", raw: `{"user": {"name": "Asha"}, "location": {"latitude": 1}}`, want: ErrMissingLocation},
		{name: "nested without name", raw: `{"user": {}, "location": {"latitude": 1, "longitude": 2}}`, want: ErrMissingVictimName},
		{name: "flat without longitude", raw: `{"user_name": "Asha", "latitude": 1, "contacts": [{"name": "R", "phone": "+919812345678"}]}`, want: ErrMissingLocation},
		{name: "flat without contacts", raw: `{"user_name": "Asha", "latitude": 1, "longitude": 2}`, want: ErrMissingContacts},
		{name: "flat without name", raw: `{"latitude": 1, "longitude": 2}`, want: ErrMissingVictimName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTriggerRequest([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeTriggerMalformed(t *testing.T) {
	_, err := DecodeTriggerRequest([]byte(`{"latitude": "north"`))
	assert.Error(t, err)

	_, err = DecodeTriggerRequest([]byte(`[]`))
	assert.Error(t, err)
}

func TestEventOwnership(t *testing.T) {
	event := SOSEvent{VictimID: "u-1", Status: SOSStatusActive}
	assert.True(t, event.IsOwnedBy("u-1"))
	assert.False(t, event.IsOwnedBy("u-2"))
	assert.False(t, event.IsOwnedBy(""))

	anonymous := SOSEvent{}
	assert.False(t, anonymous.IsOwnedBy(""))
}

func TestActionTypeRules(t *testing.T) {
	assert.True(t, ActionOfferedHelp.IsIdempotent())
	assert.True(t, ActionAcknowledged.IsIdempotent())
	assert.False(t, ActionArrived.IsIdempotent())
	assert.False(t, ActionNotified.IsIdempotent())

	assert.True(t, ActionHelped.IsResponderStatus())
	assert.False(t, ActionOfferedHelp.IsResponderStatus())
}
