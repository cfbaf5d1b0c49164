package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TriggerFormat records which wire shape a trigger arrived in. It is
// informational only; everything past the decoder works on
// TriggerSOSRequest.
type TriggerFormat string

const (
	TriggerFormatNested TriggerFormat = "nested"
	TriggerFormatFlat   TriggerFormat = "flat"
)

var (
	ErrUnknownTriggerFormat = errors.New("trigger payload must contain either a location object or latitude/longitude fields")
	ErrMissingLocation      = errors.New("location latitude and longitude are required")
	ErrMissingContacts      = errors.New("at least one emergency contact is required")
	ErrMissingVictimName    = errors.New("user name is required")
)

// TriggerSOSRequest is the single canonical trigger the service works
// with, whatever shape the client sent.
type TriggerSOSRequest struct {
	VictimID              string             `validate:"max=128"`
	VictimName            string             `validate:"required,max=100"`
	VictimPhone           string             `validate:"max=32"`
	VictimEmail           string             `validate:"omitempty,email"`
	Latitude              float64            `validate:"gte=-90,lte=90"`
	Longitude             float64            `validate:"gte=-180,lte=180"`
	Accuracy              *float64           `validate:"omitempty,gte=0"`
	Contacts              []EmergencyContact `validate:"max=10,dive"`
	MedicalInfo           *MedicalInfo
	TriggerMethod         string `validate:"omitempty,oneof=voice button gesture smartwatch"`
	CommunityBroadcast    bool
	BroadcastRadiusMeters int `validate:"gte=100,lte=5000"`
	Format                TriggerFormat
}

type triggerUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type triggerLocation struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

type nestedTrigger struct {
	User                  *triggerUser       `json:"user"`
	Location              *triggerLocation   `json:"location"`
	Contacts              []EmergencyContact `json:"contacts"`
	MedicalInfo           *MedicalInfo       `json:"medical_info"`
	TriggerMethod         string             `json:"trigger_method"`
	CommunityBroadcast    *bool              `json:"community_broadcast"`
	BroadcastRadiusMeters *int               `json:"broadcast_radius_meters"`
}

type flatTrigger struct {
	UserID                string             `json:"user_id"`
	UserName              string             `json:"user_name"`
	UserPhone             string             `json:"user_phone"`
	Latitude              *float64           `json:"latitude"`
	Longitude             *float64           `json:"longitude"`
	Accuracy              *float64           `json:"accuracy"`
	Contacts              []EmergencyContact `json:"contacts"`
	MedicalInfo           *MedicalInfo       `json:"medical_info"`
	TriggerMethod         string             `json:"trigger_method"`
	CommunityBroadcast    *bool              `json:"community_broadcast"`
	BroadcastRadiusMeters *int               `json:"broadcast_radius_meters"`
}

// DecodeTriggerRequest accepts both the nested ({user, location, ...})
// and the flat ({user_name, latitude, ...}) trigger payloads.
func DecodeTriggerRequest(raw []byte) (*TriggerSOSRequest, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("malformed trigger payload: %w", err)
	}

	_, hasUser := probe["user"]
	_, hasLocation := probe["location"]
	if hasUser || hasLocation {
		var body nestedTrigger
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("malformed trigger payload: %w", err)
		}
		return body.canonical()
	}

	if _, ok := probe["latitude"]; ok {
		var body flatTrigger
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("malformed trigger payload: %w", err)
		}
		return body.canonical()
	}

	return nil, ErrUnknownTriggerFormat
}

func (t nestedTrigger) canonical() (*TriggerSOSRequest, error) {
	if t.Location == nil || t.Location.Latitude == nil || t.Location.Longitude == nil {
		return nil, ErrMissingLocation
	}
	if t.User == nil || t.User.Name == "" {
		return nil, ErrMissingVictimName
	}

	return &TriggerSOSRequest{
		VictimID:              t.User.ID,
		VictimName:            t.User.Name,
		VictimPhone:           t.User.Phone,
		VictimEmail:           t.User.Email,
		Latitude:              *t.Location.Latitude,
		Longitude:             *t.Location.Longitude,
		Accuracy:              t.Location.Accuracy,
		Contacts:              NormalizeContacts(t.Contacts),
		MedicalInfo:           t.MedicalInfo,
		TriggerMethod:         t.TriggerMethod,
		CommunityBroadcast:    boolOrDefault(t.CommunityBroadcast, true),
		BroadcastRadiusMeters: intOrDefault(t.BroadcastRadiusMeters, DefaultBroadcastRadiusMeters),
		Format:                TriggerFormatNested,
	}, nil
}

func (t flatTrigger) canonical() (*TriggerSOSRequest, error) {
	if t.Latitude == nil || t.Longitude == nil {
		return nil, ErrMissingLocation
	}
	if t.UserName == "" {
		return nil, ErrMissingVictimName
	}
	if len(t.Contacts) == 0 {
		return nil, ErrMissingContacts
	}

	return &TriggerSOSRequest{
		VictimID:              t.UserID,
		VictimName:            t.UserName,
		VictimPhone:           t.UserPhone,
		Latitude:              *t.Latitude,
		Longitude:             *t.Longitude,
		Accuracy:              t.Accuracy,
		Contacts:              NormalizeContacts(t.Contacts),
		MedicalInfo:           t.MedicalInfo,
		TriggerMethod:         t.TriggerMethod,
		CommunityBroadcast:    boolOrDefault(t.CommunityBroadcast, true),
		BroadcastRadiusMeters: intOrDefault(t.BroadcastRadiusMeters, DefaultBroadcastRadiusMeters),
		Format:                TriggerFormatFlat,
	}, nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

type OfferHelpRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Notes     string   `json:"notes" validate:"max=500"`
}

type AcknowledgeRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

type UpdateStatusRequest struct {
	Status    ActionType `json:"status" validate:"required,responder_status"`
	Latitude  *float64   `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64   `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Notes     string     `json:"notes" validate:"max=500"`
}

type ResolveRequest struct {
	ResolutionType ResolutionType `json:"resolution_type" validate:"required,resolution_type"`
	Notes          string         `json:"notes" validate:"max=1000"`
}

type LocationUpdateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy" validate:"omitempty,gte=0"`
}

type ActiveFeedQuery struct {
	Latitude     float64 `form:"lat" validate:"gte=-90,lte=90"`
	Longitude    float64 `form:"lon" validate:"gte=-180,lte=180"`
	RadiusMeters int     `form:"radius" validate:"omitempty,gte=100,lte=5000"`
}
