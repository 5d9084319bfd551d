package mongodb

import (
	"context"
	"fmt"
	"time"

	"codes-api/internal/gateway/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names backing the User and Code models.
const (
	UsersCollection = "users"
	CodesCollection = "codes"
)

// MongoStore implements repository.Store on a MongoDB database.
type MongoStore struct {
	db    *mongo.Database
	users *CollectionCounter
	codes *CollectionCounter
}

// NewMongoStore creates a store over db. It does not own the client.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:    db,
		users: NewCollectionCounter(db.Collection(UsersCollection)),
		codes: NewCollectionCounter(db.Collection(CodesCollection)),
	}
}

// Name identifies the store in health reports.
func (s *MongoStore) Name() string {
	return "mongodb"
}

// Ping runs the ping command against the store database.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return repository.NewStoreError("", "ping", err)
	}
	return nil
}

// Users returns the counter for the users collection.
func (s *MongoStore) Users() repository.DocumentCounter {
	return s.users
}

// Codes returns the counter for the codes collection.
func (s *MongoStore) Codes() repository.DocumentCounter {
	return s.codes
}

// ConnectOptions configures the client opened by Connect.
type ConnectOptions struct {
	URI         string
	Timeout     time.Duration
	MaxPoolSize uint64
	MinPoolSize uint64
}

// Connect opens a client and verifies the primary answers within Timeout.
// The client is disconnected again if the ping fails.
func Connect(ctx context.Context, opts ConnectOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(opts.Timeout).
		SetAppName("codes-api")
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}
