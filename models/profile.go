package models

import "time"

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: []float64{lon, lat},
	}
}

func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

func (p GeoPoint) Lon() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Profile is the responder-facing view of a user. Accounts themselves are
// issued by the identity provider; this service only keeps what it needs
// to reach and rank responders.
type Profile struct {
	ID                    string    `json:"id" bson:"_id"`
	Name                  string    `json:"name" bson:"name"`
	Phone                 string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Email                 string    `json:"email,omitempty" bson:"email,omitempty"`
	FCMToken              string    `json:"-" bson:"fcmToken,omitempty"`
	IsResponderEnabled    bool      `json:"is_responder_enabled" bson:"isResponderEnabled"`
	ResponderRadiusMeters int       `json:"responder_radius_meters" bson:"responderRadiusMeters"`
	CurrentLocation       *GeoPoint `json:"current_location,omitempty" bson:"currentLocation,omitempty"`
	TotalSOSTriggered     int64     `json:"total_sos_triggered" bson:"totalSosTriggered"`
	TotalResponses        int64     `json:"total_responses" bson:"totalResponses"`
	SuccessfulHelps       int64     `json:"successful_helps" bson:"successfulHelps"`
	CreatedAt             time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt             time.Time `json:"updated_at" bson:"updatedAt"`
}

func (p *Profile) HasPushToken() bool {
	return p.FCMToken != ""
}

// ProfileStat names a counter on Profile that is only ever incremented.
type ProfileStat string

const (
	StatTotalSOSTriggered ProfileStat = "totalSosTriggered"
	StatTotalResponses    ProfileStat = "totalResponses"
	StatSuccessfulHelps   ProfileStat = "successfulHelps"
)

type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone *string `json:"phone" validate:"omitempty,phone"`
	Email *string `json:"email" validate:"omitempty,email"`
}

type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type ResponderSettingsRequest struct {
	IsResponderEnabled    *bool `json:"is_responder_enabled" validate:"required"`
	ResponderRadiusMeters *int  `json:"responder_radius_meters" validate:"omitempty,gte=100,lte=5000"`
}

type UpdateFCMTokenRequest struct {
	FCMToken string `json:"fcm_token" validate:"required,max=4096"`
}

// ProfileUpdate carries the fields to set; nil fields are left alone.
type ProfileUpdate struct {
	Name                  *string
	Phone                 *string
	Email                 *string
	FCMToken              *string
	IsResponderEnabled    *bool
	ResponderRadiusMeters *int
	Location              *GeoPoint
}
