package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(context.Context, *mongo.Database) error
}

type migrationRecord struct {
	Version     int       `bson:"version"`
	Description string    `bson:"description"`
	AppliedAt   time.Time `bson:"appliedAt"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create sos_events collection with indexes",
		Up:          createSOSEventsCollection,
	},
	{
		Version:     2,
		Description: "Create responder_actions collection with indexes",
		Up:          createResponderActionsCollection,
	},
	{
		Version:     3,
		Description: "Create profiles collection with 2dsphere index",
		Up:          createProfilesCollection,
	},
}

// RunMigrations executes all pending migrations
func RunMigrations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsCol := db.Collection("migrations")
	currentVersion := getCurrentMigrationVersion(ctx, migrationsCol)
	logrus.Infof("Current migration version: %d", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.Infof("Running migration %d: %s", migration.Version, migration.Description)

		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err := migrationsCol.InsertOne(ctx, migrationRecord{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func getCurrentMigrationVersion(ctx context.Context, col *mongo.Collection) int {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var record migrationRecord
	if err := col.FindOne(ctx, bson.D{}, opts).Decode(&record); err != nil {
		return 0
	}
	return record.Version
}

func createSOSEventsCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "victimId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	_, err := db.Collection("sos_events").Indexes().CreateMany(ctx, indexes)
	return err
}

// Idempotent action types rely on the _id guard; these indexes serve the
// ledger reads.
func createResponderActionsCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "sosEventId", Value: 1}, {Key: "createdAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "sosEventId", Value: 1}, {Key: "responderId", Value: 1}, {Key: "actionType", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "responderId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}

	_, err := db.Collection("responder_actions").Indexes().CreateMany(ctx, indexes)
	return err
}

func createProfilesCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "currentLocation", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{{Key: "isResponderEnabled", Value: 1}},
		},
	}

	_, err := db.Collection("profiles").Indexes().CreateMany(ctx, indexes)
	return err
}
