package di

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"codes-api/internal/gateway"
	"codes-api/internal/gateway/adapter/persistence/mongodb"
	"codes-api/internal/gateway/adapter/persistence/redisstore"
	"codes-api/internal/gateway/config"
	"codes-api/internal/gateway/domain/repository"
	"codes-api/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
)

// Container owns the process-wide resources: the store connection, the
// optional limiter storage and the modules built on top of them.
type Container struct {
	mu sync.RWMutex
	// Configuration
	Config *config.Config
	// Logger
	Logger logger.Logger
	// Database connections
	MongoClient *mongo.Client
	Store       repository.Store
	// Shared rate limit counters, nil when kept in memory
	RateLimitStore *redisstore.RateLimitStore
	// Module instances
	GatewayModule *gateway.GatewayModule
}

// NewContainer creates a container for cfg.
func NewContainer(cfg *config.Config, log logger.Logger) *Container {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Container{
		Config: cfg,
		Logger: log.WithComponent("container"),
	}
}

// InitializeStore connects to MongoDB and selects the configured database.
func (c *Container) InitializeStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := mongodb.Connect(ctx, mongodb.ConnectOptions{
		URI:         c.Config.MongoDBURI,
		Timeout:     c.Config.MongoConnectTimeout,
		MaxPoolSize: c.Config.MongoMaxPoolSize,
		MinPoolSize: c.Config.MongoMinPoolSize,
	})
	if err != nil {
		return err
	}

	c.MongoClient = client
	c.Store = mongodb.NewMongoStore(client.Database(c.Config.DatabaseName))
	return nil
}

// InitializeRateLimitStore connects to Redis when REDIS_URL is set. Without
// it the limiter keeps its counters in process memory.
func (c *Container) InitializeRateLimitStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Config.RedisURL == "" {
		c.Logger.Info("REDIS_URL not set, rate limit counters kept in memory")
		return nil
	}

	client, err := redisstore.NewClientFromURL(c.Config.RedisURL)
	if err != nil {
		return err
	}

	store := redisstore.NewRateLimitStore(client, "")
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	c.RateLimitStore = store
	return nil
}

// InitializeGateway builds the HTTP gateway on top of the store.
func (c *Container) InitializeGateway() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Store == nil {
		return errors.New("store must be initialized before the gateway module")
	}

	var counter repository.RateLimitCounter
	if c.RateLimitStore != nil {
		counter = c.RateLimitStore
	}

	module, err := gateway.NewGatewayModule(c.Config, c.Store, counter, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway module: %w", err)
	}

	c.GatewayModule = module
	return nil
}

// GetGatewayModule returns the gateway module instance
func (c *Container) GetGatewayModule() *gateway.GatewayModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GatewayModule
}

// Close releases resources in reverse order of initialization.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	c.GatewayModule = nil

	if c.RateLimitStore != nil {
		if err := c.RateLimitStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
		c.RateLimitStore = nil
	}

	if c.MongoClient != nil {
		if err := c.MongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect MongoDB: %w", err))
		}
		c.MongoClient = nil
		c.Store = nil
	}

	return errors.Join(errs...)
}
