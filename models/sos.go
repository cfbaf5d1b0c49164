package models

import (
	"strings"
	"time"
)

type SOSStatus string

const (
	SOSStatusActive   SOSStatus = "active"
	SOSStatusResolved SOSStatus = "resolved"
)

type ActionType string

const (
	ActionNotified     ActionType = "notified"
	ActionAcknowledged ActionType = "acknowledged"
	ActionOfferedHelp  ActionType = "offered_help"
	ActionEnRoute      ActionType = "en_route"
	ActionArrived      ActionType = "arrived"
	ActionHelped       ActionType = "helped"
	ActionCancelled    ActionType = "cancelled"
)

// IsIdempotent reports whether at most one row may exist per
// (event, responder) for this action type.
func (a ActionType) IsIdempotent() bool {
	return a == ActionAcknowledged || a == ActionOfferedHelp
}

// IsResponderStatus reports whether a responder may post this type
// through the status-update endpoint.
func (a ActionType) IsResponderStatus() bool {
	switch a {
	case ActionEnRoute, ActionArrived, ActionHelped, ActionCancelled:
		return true
	}
	return false
}

type ResolutionType string

const (
	ResolutionSelfCancelled     ResolutionType = "self_cancelled"
	ResolutionResponderHelped   ResolutionType = "responder_helped"
	ResolutionEmergencyServices ResolutionType = "emergency_services"
	ResolutionFalseAlarm        ResolutionType = "false_alarm"
)

func (r ResolutionType) IsValid() bool {
	switch r {
	case ResolutionSelfCancelled, ResolutionResponderHelped, ResolutionEmergencyServices, ResolutionFalseAlarm:
		return true
	}
	return false
}

const (
	MinBroadcastRadiusMeters     = 100
	MaxBroadcastRadiusMeters     = 5000
	DefaultBroadcastRadiusMeters = 500
)

// SOSEvent is the canonical state of one emergency. Latitude and
// Longitude are exact; StreetAddress is the coarse label shown to
// responders who have not committed to help.
type SOSEvent struct {
	ID                        string             `json:"id" bson:"_id"`
	VictimID                  string             `json:"victim_id,omitempty" bson:"victimId,omitempty"`
	VictimName                string             `json:"victim_name" bson:"victimName"`
	VictimPhone               string             `json:"victim_phone" bson:"victimPhone"`
	Latitude                  float64            `json:"latitude" bson:"latitude"`
	Longitude                 float64            `json:"longitude" bson:"longitude"`
	Location                  GeoPoint           `json:"-" bson:"location"`
	Accuracy                  *float64           `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	StreetAddress             string             `json:"street_address" bson:"streetAddress"`
	Status                    SOSStatus          `json:"status" bson:"status"`
	TriggerMethod             string             `json:"trigger_method,omitempty" bson:"triggerMethod,omitempty"`
	CommunityBroadcastEnabled bool               `json:"community_broadcast_enabled" bson:"communityBroadcastEnabled"`
	BroadcastRadiusMeters     int                `json:"broadcast_radius_meters" bson:"broadcastRadiusMeters"`
	RespondersNotified        int                `json:"responders_notified" bson:"respondersNotified"`
	MedicalInfo               *MedicalInfo       `json:"medical_info,omitempty" bson:"medicalInfo,omitempty"`
	Contacts                  []EmergencyContact `json:"-" bson:"contacts,omitempty"`
	CreatedAt                 time.Time          `json:"created_at" bson:"createdAt"`
	ResolvedAt                *time.Time         `json:"resolved_at,omitempty" bson:"resolvedAt,omitempty"`
	ResolvedBy                string             `json:"resolved_by,omitempty" bson:"resolvedBy,omitempty"`
	ResolutionType            ResolutionType     `json:"resolution_type,omitempty" bson:"resolutionType,omitempty"`
	ResolutionNotes           string             `json:"resolution_notes,omitempty" bson:"resolutionNotes,omitempty"`
}

func (e *SOSEvent) IsActive() bool {
	return e.Status == SOSStatusActive
}

// IsOwnedBy compares by id equality; an empty id never owns anything.
func (e *SOSEvent) IsOwnedBy(userID string) bool {
	return userID != "" && e.VictimID != "" && e.VictimID == userID
}

// ResponderAction is one append-only ledger row.
type ResponderAction struct {
	ID             string     `json:"id" bson:"_id"`
	SOSEventID     string     `json:"sos_event_id" bson:"sosEventId"`
	ResponderID    string     `json:"responder_id" bson:"responderId"`
	ActionType     ActionType `json:"action_type" bson:"actionType"`
	Latitude       *float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	DistanceMeters *float64   `json:"distance_meters,omitempty" bson:"distanceMeters,omitempty"`
	Notes          string     `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"createdAt"`
}

// ResponderCandidate is the read-only projection returned by the
// responder index during a broadcast.
type ResponderCandidate struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name,omitempty"`
	PushToken      string  `json:"-"`
	DistanceMeters float64 `json:"distance_meters"`
}

type EmergencyContact struct {
	Name     string `json:"name" bson:"name" validate:"required,max=100"`
	Phone    string `json:"phone" bson:"phone" validate:"required,phone"`
	Email    string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Priority int    `json:"priority,omitempty" bson:"priority,omitempty"`
}

// NormalizePhone drops the separators people type into phone numbers.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// NormalizeContacts rewrites contact phones in place.
func NormalizeContacts(contacts []EmergencyContact) []EmergencyContact {
	for i := range contacts {
		contacts[i].Phone = NormalizePhone(contacts[i].Phone)
	}
	return contacts
}

type MedicalInfo struct {
	BloodType  string   `json:"blood_type,omitempty" bson:"bloodType,omitempty"`
	Allergies  []string `json:"allergies,omitempty" bson:"allergies,omitempty"`
	Conditions []string `json:"conditions,omitempty" bson:"conditions,omitempty"`
}

// LocationPoint is one entry of the ephemeral victim location trail.
type LocationPoint struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Resolution is the terminal transition applied to an active event.
type Resolution struct {
	Type       ResolutionType
	ResolvedBy string
	Notes      string
	ResolvedAt time.Time
}
