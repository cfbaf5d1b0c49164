package repositories

import (
	"context"
	"saathi/models"
	"saathi/utils"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SOSEventsCollection = "sos_events"

type SOSRepository struct {
	collection *mongo.Collection
}

func NewSOSRepository(db *mongo.Database) *SOSRepository {
	return &SOSRepository{
		collection: db.Collection(SOSEventsCollection),
	}
}

func (sr *SOSRepository) CreateEvent(ctx context.Context, event *models.SOSEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = models.SOSStatusActive
	}
	event.Location = models.NewGeoPoint(event.Latitude, event.Longitude)

	if _, err := sr.collection.InsertOne(ctx, event); err != nil {
		logrus.Errorf("Failed to create SOS event: %v", err)
		return utils.NewDatabaseError("create sos event", err)
	}

	return nil
}

func (sr *SOSRepository) GetEvent(ctx context.Context, id string) (*models.SOSEvent, error) {
	var event models.SOSEvent
	err := sr.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, utils.NewSOSNotFoundError()
		}
		logrus.Errorf("Failed to get SOS event %s: %v", id, err)
		return nil, utils.NewDatabaseError("get sos event", err)
	}

	return &event, nil
}

func (sr *SOSRepository) GetEvents(ctx context.Context, ids []string) ([]models.SOSEvent, error) {
	if len(ids) == 0 {
		return []models.SOSEvent{}, nil
	}

	cursor, err := sr.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		logrus.Errorf("Failed to list SOS events: %v", err)
		return nil, utils.NewDatabaseError("list sos events", err)
	}
	defer cursor.Close(ctx)

	events := []models.SOSEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, utils.NewDatabaseError("decode sos events", err)
	}

	return events, nil
}

func (sr *SOSRepository) UpdateStreetAddress(ctx context.Context, id, address string) error {
	return sr.updateActive(ctx, id, bson.M{"$set": bson.M{"streetAddress": address}})
}

func (sr *SOSRepository) UpdateEventLocation(ctx context.Context, id string, lat, lon float64) error {
	return sr.updateActive(ctx, id, bson.M{"$set": bson.M{
		"latitude":  lat,
		"longitude": lon,
		"location":  models.NewGeoPoint(lat, lon),
	}})
}

func (sr *SOSRepository) IncrementRespondersNotified(ctx context.Context, id string, delta int) error {
	return sr.update(ctx, id, bson.M{"$inc": bson.M{"respondersNotified": delta}})
}

// ResolveEvent filters on status=active so that concurrent resolves race
// on a single document update and only one of them matches.
func (sr *SOSRepository) ResolveEvent(ctx context.Context, id string, resolution models.Resolution) (*models.SOSEvent, error) {
	resolvedAt := resolution.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	filter := bson.M{"_id": id, "status": models.SOSStatusActive}
	update := bson.M{"$set": bson.M{
		"status":          models.SOSStatusResolved,
		"resolvedAt":      resolvedAt,
		"resolvedBy":      resolution.ResolvedBy,
		"resolutionType":  resolution.Type,
		"resolutionNotes": resolution.Notes,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var event models.SOSEvent
	err := sr.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event)
	if err == nil {
		return &event, nil
	}
	if err != mongo.ErrNoDocuments {
		logrus.Errorf("Failed to resolve SOS event %s: %v", id, err)
		return nil, utils.NewDatabaseError("resolve sos event", err)
	}

	// Nothing matched: either the event does not exist or it is already
	// resolved.
	if _, getErr := sr.GetEvent(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, utils.NewSOSInactiveError()
}

func (sr *SOSRepository) ListActiveNear(ctx context.Context, lat, lon float64, radiusMeters int, limit int) ([]models.SOSEvent, error) {
	filter := bson.M{
		"status": models.SOSStatusActive,
		"location": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{
					bson.A{lon, lat},
					utils.MetersToRadians(float64(radiusMeters)),
				},
			},
		},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := sr.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.Errorf("Failed to list active SOS events: %v", err)
		return nil, utils.NewDatabaseError("list active sos events", err)
	}
	defer cursor.Close(ctx)

	events := []models.SOSEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, utils.NewDatabaseError("decode active sos events", err)
	}

	return events, nil
}

// updateActive only touches events that are still active; a resolved
// event gets a conflict error.
func (sr *SOSRepository) updateActive(ctx context.Context, id string, update bson.M) error {
	result, err := sr.collection.UpdateOne(ctx, bson.M{"_id": id, "status": models.SOSStatusActive}, update)
	if err != nil {
		logrus.Errorf("Failed to update SOS event %s: %v", id, err)
		return utils.NewDatabaseError("update sos event", err)
	}
	if result.MatchedCount == 0 {
		if _, err := sr.GetEvent(ctx, id); err != nil {
			return err
		}
		return utils.NewSOSInactiveError()
	}
	return nil
}

func (sr *SOSRepository) update(ctx context.Context, id string, update bson.M) error {
	result, err := sr.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		logrus.Errorf("Failed to update SOS event %s: %v", id, err)
		return utils.NewDatabaseError("update sos event", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewSOSNotFoundError()
	}
	return nil
}
