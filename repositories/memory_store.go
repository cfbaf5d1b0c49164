package repositories

import (
	"context"
	"saathi/models"
	"saathi/utils"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/google/uuid"
)

// MemoryStore is a process-local storage driver used for development and
// tests. All state sits behind one RWMutex; values handed out are copies.
type MemoryStore struct {
	mu sync.RWMutex

	events       map[string]*models.SOSEvent
	actions      map[string]*models.ResponderAction
	eventActions map[string][]string
	profiles     map[string]*models.Profile
	profileCells map[string]s2.CellID

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:       make(map[string]*models.SOSEvent),
		actions:      make(map[string]*models.ResponderAction),
		eventActions: make(map[string][]string),
		profiles:     make(map[string]*models.Profile),
		profileCells: make(map[string]s2.CellID),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (ms *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// =================== EVENTS ===================

func (ms *MemoryStore) CreateEvent(ctx context.Context, event *models.SOSEvent) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = ms.now()
	}
	if event.Status == "" {
		event.Status = models.SOSStatusActive
	}
	event.Location = models.NewGeoPoint(event.Latitude, event.Longitude)

	if _, exists := ms.events[event.ID]; exists {
		return utils.NewConflictError("SOS event already exists")
	}

	stored := *event
	ms.events[event.ID] = &stored
	return nil
}

func (ms *MemoryStore) GetEvent(ctx context.Context, id string) (*models.SOSEvent, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	event, ok := ms.events[id]
	if !ok {
		return nil, utils.NewSOSNotFoundError()
	}
	copied := *event
	return &copied, nil
}

func (ms *MemoryStore) GetEvents(ctx context.Context, ids []string) ([]models.SOSEvent, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	events := make([]models.SOSEvent, 0, len(ids))
	for _, id := range ids {
		if event, ok := ms.events[id]; ok {
			events = append(events, *event)
		}
	}
	return events, nil
}

func (ms *MemoryStore) UpdateStreetAddress(ctx context.Context, id, address string) error {
	return ms.mutateActiveEvent(id, func(event *models.SOSEvent) {
		event.StreetAddress = address
	})
}

func (ms *MemoryStore) UpdateEventLocation(ctx context.Context, id string, lat, lon float64) error {
	return ms.mutateActiveEvent(id, func(event *models.SOSEvent) {
		event.Latitude = lat
		event.Longitude = lon
		event.Location = models.NewGeoPoint(lat, lon)
	})
}

func (ms *MemoryStore) IncrementRespondersNotified(ctx context.Context, id string, delta int) error {
	return ms.mutateEvent(id, func(event *models.SOSEvent) {
		event.RespondersNotified += delta
	})
}

func (ms *MemoryStore) ResolveEvent(ctx context.Context, id string, resolution models.Resolution) (*models.SOSEvent, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	event, ok := ms.events[id]
	if !ok {
		return nil, utils.NewSOSNotFoundError()
	}
	if !event.IsActive() {
		return nil, utils.NewSOSInactiveError()
	}

	resolvedAt := resolution.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = ms.now()
	}
	event.Status = models.SOSStatusResolved
	event.ResolvedAt = &resolvedAt
	event.ResolvedBy = resolution.ResolvedBy
	event.ResolutionType = resolution.Type
	event.ResolutionNotes = resolution.Notes

	copied := *event
	return &copied, nil
}

func (ms *MemoryStore) ListActiveNear(ctx context.Context, lat, lon float64, radiusMeters int, limit int) ([]models.SOSEvent, error) {
	covering := coveringFor(lat, lon, radiusMeters)

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	events := []models.SOSEvent{}
	for _, event := range ms.events {
		if !event.IsActive() {
			continue
		}
		if !covering.ContainsCellID(cellFor(event.Latitude, event.Longitude)) {
			continue
		}
		if utils.CalculateDistance(lat, lon, event.Latitude, event.Longitude) > float64(radiusMeters) {
			continue
		}
		events = append(events, *event)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (ms *MemoryStore) mutateEvent(id string, fn func(*models.SOSEvent)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	event, ok := ms.events[id]
	if !ok {
		return utils.NewSOSNotFoundError()
	}
	fn(event)
	return nil
}

func (ms *MemoryStore) mutateActiveEvent(id string, fn func(*models.SOSEvent)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	event, ok := ms.events[id]
	if !ok {
		return utils.NewSOSNotFoundError()
	}
	if !event.IsActive() {
		return utils.NewSOSInactiveError()
	}
	fn(event)
	return nil
}

// =================== ACTION LEDGER ===================

func (ms *MemoryStore) RecordAction(ctx context.Context, action *models.ResponderAction) (*models.ResponderAction, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	prepareAction(action)

	if existing, ok := ms.actions[action.ID]; ok {
		if action.ActionType.IsIdempotent() {
			copied := *existing
			return &copied, false, nil
		}
		return nil, false, utils.NewConflictError("action already recorded")
	}

	stored := *action
	ms.actions[action.ID] = &stored
	ms.eventActions[action.SOSEventID] = append(ms.eventActions[action.SOSEventID], action.ID)

	copied := stored
	return &copied, true, nil
}

func (ms *MemoryStore) HasResponded(ctx context.Context, eventID, responderID string, actionType models.ActionType) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, id := range ms.eventActions[eventID] {
		action := ms.actions[id]
		if action.ResponderID == responderID && action.ActionType == actionType {
			return true, nil
		}
	}
	return false, nil
}

func (ms *MemoryStore) ListByEvent(ctx context.Context, eventID string) ([]models.ResponderAction, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ids := ms.eventActions[eventID]
	actions := make([]models.ResponderAction, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, *ms.actions[id])
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})
	return actions, nil
}

func (ms *MemoryStore) ListByResponder(ctx context.Context, responderID string, limit int) ([]models.ResponderAction, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	actions := []models.ResponderAction{}
	for _, action := range ms.actions {
		if action.ResponderID == responderID {
			actions = append(actions, *action)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].CreatedAt.After(actions[j].CreatedAt)
	})
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}
	return actions, nil
}

func (ms *MemoryStore) Participants(ctx context.Context, eventID string) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	seen := make(map[string]bool)
	ids := []string{}
	for _, id := range ms.eventActions[eventID] {
		responderID := ms.actions[id].ResponderID
		if responderID == "" || seen[responderID] {
			continue
		}
		seen[responderID] = true
		ids = append(ids, responderID)
	}
	return ids, nil
}

// =================== PROFILES ===================

func (ms *MemoryStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	profile, ok := ms.profiles[id]
	if !ok {
		return nil, utils.NewProfileNotFoundError()
	}
	copied := *profile
	return &copied, nil
}

func (ms *MemoryStore) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	profiles := make([]models.Profile, 0, len(ids))
	for _, id := range ids {
		if profile, ok := ms.profiles[id]; ok {
			profiles = append(profiles, *profile)
		}
	}
	return profiles, nil
}

func (ms *MemoryStore) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	profile := ms.profileLocked(id)
	if update.Name != nil {
		profile.Name = *update.Name
	}
	if update.Phone != nil {
		profile.Phone = *update.Phone
	}
	if update.Email != nil {
		profile.Email = *update.Email
	}
	if update.FCMToken != nil {
		profile.FCMToken = *update.FCMToken
	}
	if update.IsResponderEnabled != nil {
		profile.IsResponderEnabled = *update.IsResponderEnabled
	}
	if update.ResponderRadiusMeters != nil {
		profile.ResponderRadiusMeters = *update.ResponderRadiusMeters
	}
	if update.Location != nil {
		location := models.NewGeoPoint(update.Location.Lat(), update.Location.Lon())
		profile.CurrentLocation = &location
		ms.profileCells[id] = cellFor(location.Lat(), location.Lon())
	}
	profile.UpdatedAt = ms.now()

	copied := *profile
	return &copied, nil
}

func (ms *MemoryStore) IncrementStat(ctx context.Context, id string, stat models.ProfileStat, delta int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	profile := ms.profileLocked(id)
	switch stat {
	case models.StatTotalSOSTriggered:
		profile.TotalSOSTriggered += delta
	case models.StatTotalResponses:
		profile.TotalResponses += delta
	case models.StatSuccessfulHelps:
		profile.SuccessfulHelps += delta
	default:
		return utils.NewBadRequestError("unknown profile stat " + string(stat))
	}
	profile.UpdatedAt = ms.now()
	return nil
}

// FindNearby narrows the scan with an S2 cell covering of the search cap
// before measuring with Haversine.
func (ms *MemoryStore) FindNearby(ctx context.Context, lat, lon float64, radiusMeters int, excludeUserID string) ([]models.ResponderCandidate, error) {
	covering := coveringFor(lat, lon, radiusMeters)

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	candidates := []models.ResponderCandidate{}
	for id, cell := range ms.profileCells {
		if id == excludeUserID || !covering.ContainsCellID(cell) {
			continue
		}
		profile := ms.profiles[id]
		if !profile.IsResponderEnabled || profile.CurrentLocation == nil {
			continue
		}
		distance := utils.CalculateDistance(lat, lon, profile.CurrentLocation.Lat(), profile.CurrentLocation.Lon())
		if distance >= float64(radiusMeters) {
			continue
		}
		candidates = append(candidates, models.ResponderCandidate{
			UserID:         profile.ID,
			Name:           profile.Name,
			PushToken:      profile.FCMToken,
			DistanceMeters: distance,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].DistanceMeters < candidates[j].DistanceMeters
	})
	return candidates, nil
}

func (ms *MemoryStore) profileLocked(id string) *models.Profile {
	profile, ok := ms.profiles[id]
	if !ok {
		now := ms.now()
		profile = &models.Profile{
			ID:                    id,
			ResponderRadiusMeters: models.DefaultBroadcastRadiusMeters,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		ms.profiles[id] = profile
	}
	return profile
}

const (
	coverMinLevel = 6
	coverMaxLevel = 18
	coverMaxCells = 12
)

func cellFor(lat, lon float64) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon))
}

func coveringFor(lat, lon float64, radiusMeters int) s2.CellUnion {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	region := s2.CapFromCenterAngle(center, s1.Angle(utils.MetersToRadians(float64(radiusMeters))))

	coverer := &s2.RegionCoverer{
		MinLevel: coverMinLevel,
		MaxLevel: coverMaxLevel,
		MaxCells: coverMaxCells,
	}
	return coverer.Covering(region)
}
