package mongodb

import (
	"context"

	"codes-api/internal/gateway/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CollectionCounter implements repository.DocumentCounter for one collection.
type CollectionCounter struct {
	coll *mongo.Collection
}

// NewCollectionCounter creates a counter for coll.
func NewCollectionCounter(coll *mongo.Collection) *CollectionCounter {
	return &CollectionCounter{coll: coll}
}

// Count returns the exact number of documents in the collection.
func (c *CollectionCounter) Count(ctx context.Context) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, repository.NewStoreError(c.coll.Name(), "count", err)
	}
	return n, nil
}
