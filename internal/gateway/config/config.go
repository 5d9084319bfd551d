package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	// EnvProduction is the NODE_ENV value that selects production policies.
	EnvProduction = "production"

	defaultDatabaseName = "test"
)

// Config holds all configuration for the gateway.
type Config struct {
	Environment string `env:"NODE_ENV" envDefault:"development"`

	// Server
	Host            string        `env:"SERVER_HOST" envDefault:""`
	Port            string        `env:"PORT" envDefault:"3000"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	ProxyHeader     string        `env:"PROXY_HEADER" envDefault:""`

	// MongoDB
	MongoDBURI          string        `env:"MONGODB_URI,required"`
	DatabaseName        string        `env:"MONGODB_DATABASE" envDefault:""`
	MongoConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"30s"`
	MongoMaxPoolSize    uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MongoMinPoolSize    uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"0"`

	// Redis (optional, shared rate limit counters)
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// CORS
	ProductionOrigin  string `env:"CORS_PRODUCTION_ORIGIN" envDefault:"https://seu-dominio.com"`
	DevelopmentOrigin string `env:"CORS_DEVELOPMENT_ORIGIN" envDefault:"http://localhost:8080"`

	// Rate limiting
	APIPrefix       string        `env:"API_PREFIX" envDefault:"/api"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	// Body parsing
	JSONBodyLimit  int `env:"BODY_LIMIT_BYTES" envDefault:"10485760"`
	FormBodyLimit  int `env:"FORM_BODY_LIMIT_BYTES" envDefault:"102400"`
	FormParamLimit int `env:"FORM_PARAMETER_LIMIT" envDefault:"1000"`
	FormNestDepth  int `env:"FORM_NEST_DEPTH" envDefault:"5"`
	FormArrayLimit int `env:"FORM_ARRAY_LIMIT" envDefault:"20"`
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load configuration from environment: " + err.Error() +
			". Please ensure all required environment variables are set.")
	}

	if cfg.DatabaseName == "" {
		cfg.DatabaseName = DatabaseNameFromURI(cfg.MongoDBURI)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that struct tags cannot express.
func (c *Config) Validate() error {
	if c.MongoDBURI == "" {
		return errors.New("mongodb_uri is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port must be numeric, got %q", c.Port)
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/', got %q", c.APIPrefix)
	}
	if c.RateLimitMax <= 0 {
		return errors.New("rate_limit_max must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("rate_limit_window must be positive")
	}
	if c.JSONBodyLimit <= 0 || c.FormBodyLimit <= 0 {
		return errors.New("body limits must be positive")
	}
	if c.MongoMinPoolSize > c.MongoMaxPoolSize && c.MongoMaxPoolSize > 0 {
		return errors.New("mongodb_min_pool_size must not exceed mongodb_max_pool_size")
	}
	if c.FormParamLimit <= 0 || c.FormNestDepth <= 0 || c.FormArrayLimit < 0 {
		return errors.New("form parser limits must be positive")
	}
	for _, origin := range []string{c.ProductionOrigin, c.DevelopmentOrigin} {
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}
	return nil
}

// IsProduction reports whether NODE_ENV selects production policies.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// AllowedOrigin returns the single CORS origin for the current environment.
func (c *Config) AllowedOrigin() string {
	if c.IsProduction() {
		return c.ProductionOrigin
	}
	return c.DevelopmentOrigin
}

// ListenAddr is the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// TransportBodyLimit is the largest body the server will read at all.
func (c *Config) TransportBodyLimit() int {
	if c.FormBodyLimit > c.JSONBodyLimit {
		return c.FormBodyLimit
	}
	return c.JSONBodyLimit
}

// DatabaseNameFromURI returns the database named in a MongoDB connection string,
// or "test" when the URI names none.
func DatabaseNameFromURI(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return defaultDatabaseName
	}
	return cs.Database
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
		return fmt.Errorf("invalid CORS origin %q: expected scheme://host[:port]", origin)
	}
	return nil
}
