package repositories

import (
	"context"
	"saathi/models"
	"saathi/utils"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ProfilesCollection = "profiles"

	// upper bound on candidates pulled from $geoNear per broadcast
	maxNearbyCandidates = 500
)

type ProfileRepository struct {
	collection *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{
		collection: db.Collection(ProfilesCollection),
	}
}

func (pr *ProfileRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := pr.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewProfileNotFoundError()
		}
		logrus.Errorf("Failed to get profile %s: %v", id, err)
		return nil, utils.NewDatabaseError("get profile", err)
	}
	return &profile, nil
}

func (pr *ProfileRepository) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return []models.Profile{}, nil
	}

	cursor, err := pr.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		logrus.Errorf("Failed to list profiles: %v", err)
		return nil, utils.NewDatabaseError("list profiles", err)
	}
	defer cursor.Close(ctx)

	profiles := []models.Profile{}
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, utils.NewDatabaseError("decode profiles", err)
	}
	return profiles, nil
}

func (pr *ProfileRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	now := time.Now().UTC()

	set := bson.M{"updatedAt": now}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.FCMToken != nil {
		set["fcmToken"] = *update.FCMToken
	}
	if update.IsResponderEnabled != nil {
		set["isResponderEnabled"] = *update.IsResponderEnabled
	}
	if update.ResponderRadiusMeters != nil {
		set["responderRadiusMeters"] = *update.ResponderRadiusMeters
	}
	if update.Location != nil {
		set["currentLocation"] = *update.Location
	}

	onInsert := bson.M{
		"createdAt":         now,
		"totalSosTriggered": int64(0),
		"totalResponses":    int64(0),
		"successfulHelps":   int64(0),
	}
	for key, value := range profileDefaults() {
		if _, ok := set[key]; !ok {
			onInsert[key] = value
		}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var profile models.Profile
	err := pr.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$setOnInsert": onInsert},
		opts,
	).Decode(&profile)
	if err != nil {
		logrus.Errorf("Failed to update profile %s: %v", id, err)
		return nil, utils.NewDatabaseError("update profile", err)
	}

	return &profile, nil
}

func (pr *ProfileRepository) IncrementStat(ctx context.Context, id string, stat models.ProfileStat, delta int64) error {
	_, err := pr.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{string(stat): delta},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		logrus.Errorf("Failed to increment %s for %s: %v", stat, id, err)
		return utils.NewDatabaseError("increment profile stat", err)
	}
	return nil
}

type nearbyProfile struct {
	models.Profile `bson:",inline"`
	GeoDistance    float64 `bson:"geoDistance"`
}

// FindNearby runs $geoNear over the 2dsphere index on currentLocation and
// then re-measures each hit with Haversine so that the reported distance
// and the radius cut-off use the same formula everywhere.
func (pr *ProfileRepository) FindNearby(ctx context.Context, lat, lon float64, radiusMeters int, excludeUserID string) ([]models.ResponderCandidate, error) {
	query := bson.M{"isResponderEnabled": true}
	if excludeUserID != "" {
		query["_id"] = bson.M{"$ne": excludeUserID}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: models.NewGeoPoint(lat, lon)},
			{Key: "distanceField", Value: "geoDistance"},
			{Key: "maxDistance", Value: float64(radiusMeters)},
			{Key: "spherical", Value: true},
			{Key: "key", Value: "currentLocation"},
			{Key: "query", Value: query},
		}}},
		{{Key: "$limit", Value: maxNearbyCandidates}},
	}

	cursor, err := pr.collection.Aggregate(ctx, pipeline)
	if err != nil {
		logrus.Errorf("Failed to query nearby responders: %v", err)
		return nil, utils.NewDatabaseError("find nearby responders", err)
	}
	defer cursor.Close(ctx)

	var hits []nearbyProfile
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, utils.NewDatabaseError("decode nearby responders", err)
	}

	candidates := make([]models.ResponderCandidate, 0, len(hits))
	for _, hit := range hits {
		if hit.CurrentLocation == nil {
			continue
		}
		distance := utils.CalculateDistance(lat, lon, hit.CurrentLocation.Lat(), hit.CurrentLocation.Lon())
		if distance >= float64(radiusMeters) {
			continue
		}
		candidates = append(candidates, models.ResponderCandidate{
			UserID:         hit.ID,
			Name:           hit.Name,
			PushToken:      hit.FCMToken,
			DistanceMeters: distance,
		})
	}

	return candidates, nil
}

func profileDefaults() bson.M {
	return bson.M{
		"isResponderEnabled":    false,
		"responderRadiusMeters": models.DefaultBroadcastRadiusMeters,
	}
}
