package repositories

import (
	"context"
	"fmt"
	"saathi/models"
	"saathi/utils"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ResponderActionsCollection = "responder_actions"

type ActionRepository struct {
	collection *mongo.Collection
}

func NewActionRepository(db *mongo.Database) *ActionRepository {
	return &ActionRepository{
		collection: db.Collection(ResponderActionsCollection),
	}
}

// IdempotentActionID is the document id used for action types that may
// only occur once per (event, responder). The _id uniqueness guard turns a
// racing second insert into a duplicate key error.
func IdempotentActionID(eventID, responderID string, actionType models.ActionType) string {
	return fmt.Sprintf("%s:%s:%s", eventID, responderID, actionType)
}

func (ar *ActionRepository) RecordAction(ctx context.Context, action *models.ResponderAction) (*models.ResponderAction, bool, error) {
	prepareAction(action)

	_, err := ar.collection.InsertOne(ctx, action)
	if err == nil {
		return action, true, nil
	}

	if mongo.IsDuplicateKeyError(err) && action.ActionType.IsIdempotent() {
		var existing models.ResponderAction
		if findErr := ar.collection.FindOne(ctx, bson.M{"_id": action.ID}).Decode(&existing); findErr != nil {
			logrus.Errorf("Failed to load existing action %s: %v", action.ID, findErr)
			return nil, false, utils.NewDatabaseError("load existing action", findErr)
		}
		return &existing, false, nil
	}

	logrus.Errorf("Failed to record %s action on %s: %v", action.ActionType, action.SOSEventID, err)
	return nil, false, utils.NewDatabaseError("record action", err)
}

func (ar *ActionRepository) HasResponded(ctx context.Context, eventID, responderID string, actionType models.ActionType) (bool, error) {
	filter := bson.M{
		"sosEventId":  eventID,
		"responderId": responderID,
		"actionType":  actionType,
	}

	count, err := ar.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		logrus.Errorf("Failed to check responder action: %v", err)
		return false, utils.NewDatabaseError("check action", err)
	}

	return count > 0, nil
}

func (ar *ActionRepository) ListByEvent(ctx context.Context, eventID string) ([]models.ResponderAction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return ar.find(ctx, bson.M{"sosEventId": eventID}, opts)
}

func (ar *ActionRepository) ListByResponder(ctx context.Context, responderID string, limit int) ([]models.ResponderAction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	return ar.find(ctx, bson.M{"responderId": responderID}, opts)
}

func (ar *ActionRepository) Participants(ctx context.Context, eventID string) ([]string, error) {
	values, err := ar.collection.Distinct(ctx, "responderId", bson.M{"sosEventId": eventID})
	if err != nil {
		logrus.Errorf("Failed to list participants of %s: %v", eventID, err)
		return nil, utils.NewDatabaseError("list participants", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (ar *ActionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.ResponderAction, error) {
	cursor, err := ar.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.Errorf("Failed to list responder actions: %v", err)
		return nil, utils.NewDatabaseError("list actions", err)
	}
	defer cursor.Close(ctx)

	actions := []models.ResponderAction{}
	if err := cursor.All(ctx, &actions); err != nil {
		return nil, utils.NewDatabaseError("decode actions", err)
	}
	return actions, nil
}

func prepareAction(action *models.ResponderAction) {
	if action.ActionType.IsIdempotent() {
		action.ID = IdempotentActionID(action.SOSEventID, action.ResponderID, action.ActionType)
	} else if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
}
