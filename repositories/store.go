package repositories

import (
	"context"
	"saathi/interfaces"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	_ interfaces.Store = (*MongoStore)(nil)
	_ interfaces.Store = (*MemoryStore)(nil)
)

// MongoStore is the durable storage driver.
type MongoStore struct {
	*SOSRepository
	*ActionRepository
	*ProfileRepository

	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		SOSRepository:     NewSOSRepository(db),
		ActionRepository:  NewActionRepository(db),
		ProfileRepository: NewProfileRepository(db),
		db:                db,
	}
}

func (ms *MongoStore) Ping(ctx context.Context) error {
	return ms.db.Client().Ping(ctx, readpref.Primary())
}
