package models

import "time"

type TriggerSOSResponse struct {
	SOSID                     string    `json:"sos_id"`
	Status                    SOSStatus `json:"status"`
	StreetAddress             string    `json:"street_address"`
	CommunityBroadcastEnabled bool      `json:"community_broadcast_enabled"`
	BroadcastRadiusMeters     int       `json:"broadcast_radius_meters"`
	ContactsAlerted           int       `json:"contacts_alerted"`
	CreatedAt                 time.Time `json:"created_at"`
}

// OfferHelpResponse carries the exact location; it is only ever built for
// a responder that holds an offered_help ledger row.
type OfferHelpResponse struct {
	SOSID          string  `json:"sos_id"`
	VictimName     string  `json:"victim_name"`
	VictimPhone    string  `json:"victim_phone"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	StreetAddress  string  `json:"street_address"`
	DistanceMeters int     `json:"distance_meters"`
	AlreadyOffered bool    `json:"already_offered"`
}

type ActionResponse struct {
	SOSID      string     `json:"sos_id"`
	ActionType ActionType `json:"action_type"`
	Recorded   bool       `json:"recorded"`
	RecordedAt time.Time  `json:"recorded_at"`
}

type ResolveResponse struct {
	SOSID              string         `json:"sos_id"`
	Status             SOSStatus      `json:"status"`
	ResolutionType     ResolutionType `json:"resolution_type"`
	ResolvedAt         time.Time      `json:"resolved_at"`
	RespondersNotified int            `json:"responders_notified"`
}

// SOSView is an event filtered through the disclosure policy. Precise
// fields are nil/empty unless PreciseLocation is true.
type SOSView struct {
	ID                    string         `json:"sos_id"`
	VictimName            string         `json:"victim_name"`
	VictimPhone           string         `json:"victim_phone,omitempty"`
	Latitude              *float64       `json:"latitude,omitempty"`
	Longitude             *float64       `json:"longitude,omitempty"`
	StreetAddress         string         `json:"street_address"`
	PreciseLocation       bool           `json:"precise_location"`
	Status                SOSStatus      `json:"status"`
	BroadcastRadiusMeters int            `json:"broadcast_radius_meters"`
	RespondersNotified    int            `json:"responders_notified"`
	CreatedAt             time.Time      `json:"created_at"`
	ResolvedAt            *time.Time     `json:"resolved_at,omitempty"`
	ResolutionType        ResolutionType `json:"resolution_type,omitempty"`
	ResolutionNotes       string         `json:"resolution_notes,omitempty"`
}

// HelperCounts are distinct responders per action type.
type HelperCounts struct {
	Acknowledged int `json:"helpers_acknowledged"`
	Offering     int `json:"helpers_offering"`
	EnRoute      int `json:"helpers_en_route"`
	Arrived      int `json:"helpers_arrived"`
	Helped       int `json:"helpers_helped"`
	TotalActions int `json:"total_actions"`
}

type SOSStatusResponse struct {
	SOSView
	HelperCounts
}

type SOSDetailResponse struct {
	SOSView
	HelperCounts
	MyActions []ActionType        `json:"my_actions,omitempty"`
	Actions   []ResponderAction   `json:"actions,omitempty"`
	Trail     []LocationPoint     `json:"location_trail,omitempty"`
	Medical   *MedicalInfo        `json:"medical_info,omitempty"`
	Responder *ResponderCandidate `json:"responder,omitempty"`
}

type ActiveSOSItem struct {
	SOSID              string    `json:"sos_id"`
	VictimName         string    `json:"victim_name"`
	StreetAddress      string    `json:"street_address"`
	DistanceMeters     int       `json:"distance_meters"`
	RespondersNotified int       `json:"responders_notified"`
	CreatedAt          time.Time `json:"created_at"`
}

type MyResponseItem struct {
	SOSID          string     `json:"sos_id"`
	StreetAddress  string     `json:"street_address"`
	Status         SOSStatus  `json:"status"`
	LatestAction   ActionType `json:"latest_action"`
	LatestActionAt time.Time  `json:"latest_action_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SOSUpdate is pushed to websocket subscribers of an event room.
type SOSUpdate struct {
	Type      string      `json:"type"`
	SOSID     string      `json:"sos_id"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	UpdateHelpOffered    = "help_offered"
	UpdateResponderState = "responder_status"
	UpdateLocation       = "location_update"
	UpdateResolved       = "resolved"
	UpdateBroadcastDone  = "broadcast_completed"
)
