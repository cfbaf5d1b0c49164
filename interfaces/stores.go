package interfaces

import (
	"context"
	"saathi/models"
)

// EventStore owns the canonical SOSEvent state. Lookups of unknown ids
// return an error satisfying utils.IsNotFound.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.SOSEvent) error
	GetEvent(ctx context.Context, id string) (*models.SOSEvent, error)
	GetEvents(ctx context.Context, ids []string) ([]models.SOSEvent, error)
	UpdateStreetAddress(ctx context.Context, id, address string) error
	UpdateEventLocation(ctx context.Context, id string, lat, lon float64) error
	IncrementRespondersNotified(ctx context.Context, id string, delta int) error
	// ResolveEvent applies the transition only if the event is still
	// active. A second attempt returns a conflict error and leaves the
	// first resolution untouched.
	ResolveEvent(ctx context.Context, id string, resolution models.Resolution) (*models.SOSEvent, error)
	ListActiveNear(ctx context.Context, lat, lon float64, radiusMeters int, limit int) ([]models.SOSEvent, error)
}

// ActionLedger is the append-only record of responder actions.
type ActionLedger interface {
	// RecordAction inserts the action. For idempotent action types an
	// existing (event, responder, type) row is returned unchanged with
	// created=false; the check and the insert are a single atomic step.
	RecordAction(ctx context.Context, action *models.ResponderAction) (stored *models.ResponderAction, created bool, err error)
	HasResponded(ctx context.Context, eventID, responderID string, actionType models.ActionType) (bool, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.ResponderAction, error)
	ListByResponder(ctx context.Context, responderID string, limit int) ([]models.ResponderAction, error)
	Participants(ctx context.Context, eventID string) ([]string, error)
}

// ResponderIndex answers radius queries over opted-in responders.
// Candidates are strictly closer than radiusMeters, never include
// excludeUserID, and carry their Haversine distance from the center.
type ResponderIndex interface {
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters int, excludeUserID string) ([]models.ResponderCandidate, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	// UpdateProfile creates the profile on first write.
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error)
	IncrementStat(ctx context.Context, id string, stat models.ProfileStat, delta int64) error
}

// LocationTracker keeps the ephemeral location trail of an active event.
type LocationTracker interface {
	Append(ctx context.Context, eventID string, point models.LocationPoint) error
	History(ctx context.Context, eventID string, limit int) ([]models.LocationPoint, error)
	Clear(ctx context.Context, eventID string) error
}

// Store bundles everything a storage driver provides.
type Store interface {
	EventStore
	ActionLedger
	ResponderIndex
	ProfileStore
	Ping(ctx context.Context) error
}
