package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "sitemap-backend/domain/config"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress  string        `yaml:"server_address"`
	Environment    string        `yaml:"environment"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Storage backends
	NodeStore    string        `yaml:"node_store"`    // memory, sqlite or dynamodb
	SessionStore string        `yaml:"session_store"` // memory or redis
	SaveGuard    string        `yaml:"save_guard"`    // local, redis or dynamodb
	SQLitePath   string        `yaml:"sqlite_path"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisDB      int           `yaml:"redis_db"`
	SessionTTL   time.Duration `yaml:"session_ttl"`

	// AWS configuration
	AWSRegion     string        `yaml:"aws_region"`
	DynamoDBTable string        `yaml:"dynamodb_table"`
	EventBusName  string        `yaml:"event_bus_name"`
	SaveLeaseTTL  time.Duration `yaml:"save_lease_ttl"`

	// Lambda configuration
	IsLambda           bool   `yaml:"-"`
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret       string        `yaml:"-"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`

	// Circuit breaker around the node store
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`

	// Layout policy
	Layout LayoutConfig `yaml:"layout"`

	// Feature flags
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	EnableCORS    bool   `yaml:"enable_cors"`
	// AllowedOrigins is a comma separated list in the environment
	AllowedOrigins []string `yaml:"allowed_origins"`
	EnableAuth    bool   `yaml:"enable_auth"`

	// ConfigFile is the YAML overlay this configuration was read from
	ConfigFile string `yaml:"-"`
}

// LayoutConfig is the editor geometry and dirty-tracking policy
type LayoutConfig struct {
	NodeWidth      float64 `yaml:"node_width"`
	NodeHeight     float64 `yaml:"node_height"`
	RankSpacing    float64 `yaml:"rank_spacing"`
	NodeSpacing    float64 `yaml:"node_spacing"`
	Direction      string  `yaml:"direction"`
	DirtyTolerance float64 `yaml:"dirty_tolerance"`
	OriginIsUnset  bool    `yaml:"origin_is_unset"`
}

func defaults() *Config {
	d := domainconfig.DefaultDomainConfig()
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		RequestTimeout:     30 * time.Second,
		NodeStore:          "memory",
		SessionStore:       "memory",
		SaveGuard:          "local",
		SQLitePath:         "sitemap.db",
		RedisAddr:          "localhost:6379",
		SessionTTL:         d.SessionTTL,
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "sitemap-editor",
		EventBusName:       "",
		SaveLeaseTTL:       2 * time.Minute,
		LogLevel:           "info",
		JWTIssuer:          "sitemap-backend",
		RateLimit:          600,
		RateLimitWindow:    time.Minute,
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
		Layout: LayoutConfig{
			NodeWidth:      d.NodeWidth,
			NodeHeight:     d.NodeHeight,
			RankSpacing:    d.RankSpacing,
			NodeSpacing:    d.NodeSpacing,
			Direction:      d.LayoutDirection,
			DirtyTolerance: d.DirtyTolerance,
			OriginIsUnset:  d.OriginIsUnset,
		},
		EnableCORS: true,
	}
}

// LoadConfig loads configuration from defaults, the optional YAML file named
// by CONFIG_FILE and finally environment variables, later sources winning.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// mergeFile overlays the YAML file at path onto c
func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Reload re-reads the overlay file on top of a copy of c. Environment
// variables keep precedence.
func (c *Config) Reload() (*Config, error) {
	next := *c
	if c.ConfigFile == "" {
		return &next, nil
	}
	if err := next.mergeFile(c.ConfigFile); err != nil {
		return nil, err
	}
	next.applyEnv()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)

	c.NodeStore = strings.ToLower(getEnv("NODE_STORE", c.NodeStore))
	c.SessionStore = strings.ToLower(getEnv("SESSION_STORE", c.SessionStore))
	c.SaveGuard = strings.ToLower(getEnv("SAVE_GUARD", c.SaveGuard))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)
	c.SaveLeaseTTL = getEnvDuration("SAVE_LEASE_TTL", c.SaveLeaseTTL)

	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", "")
	c.IsLambda = getEnvBool("IS_LAMBDA", c.LambdaFunctionName != "")

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.RateLimit = getEnvInt("RATE_LIMIT", c.RateLimit)
	c.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", c.RateLimitWindow)

	c.BreakerMaxFailures = uint32(getEnvInt("BREAKER_MAX_FAILURES", int(c.BreakerMaxFailures)))
	c.BreakerTimeout = getEnvDuration("BREAKER_TIMEOUT", c.BreakerTimeout)

	c.Layout.NodeWidth = getEnvFloat("LAYOUT_NODE_WIDTH", c.Layout.NodeWidth)
	c.Layout.NodeHeight = getEnvFloat("LAYOUT_NODE_HEIGHT", c.Layout.NodeHeight)
	c.Layout.RankSpacing = getEnvFloat("LAYOUT_RANK_SEP", c.Layout.RankSpacing)
	c.Layout.NodeSpacing = getEnvFloat("LAYOUT_NODE_SEP", c.Layout.NodeSpacing)
	c.Layout.Direction = strings.ToUpper(getEnv("LAYOUT_DIRECTION", c.Layout.Direction))
	c.Layout.DirtyTolerance = getEnvFloat("DIRTY_TOLERANCE", c.Layout.DirtyTolerance)
	c.Layout.OriginIsUnset = getEnvBool("ORIGIN_IS_UNSET", c.Layout.OriginIsUnset)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}
	c.EnableAuth = getEnvBool("ENABLE_AUTH", c.EnableAuth || c.JWTSecret != "")
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.NodeStore {
	case "memory", "sqlite", "dynamodb":
	default:
		return fmt.Errorf("NODE_STORE must be memory, sqlite or dynamodb, got %q", c.NodeStore)
	}
	switch c.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.SessionStore)
	}
	switch c.SaveGuard {
	case "local", "redis", "dynamodb":
	default:
		return fmt.Errorf("SAVE_GUARD must be local, redis or dynamodb, got %q", c.SaveGuard)
	}
	if (c.NodeStore == "dynamodb" || c.SaveGuard == "dynamodb") && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.EnableAuth && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth is enabled")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.NodeStore == "memory" {
			return fmt.Errorf("the memory node store cannot be used in production")
		}
	}

	return c.Domain().Validate()
}

// Domain derives the editor policy for the configured environment
func (c *Config) Domain() *domainconfig.DomainConfig {
	d := domainconfig.LoadDomainConfig(c.Environment)
	d.NodeWidth = c.Layout.NodeWidth
	d.NodeHeight = c.Layout.NodeHeight
	d.RankSpacing = c.Layout.RankSpacing
	d.NodeSpacing = c.Layout.NodeSpacing
	d.LayoutDirection = c.Layout.Direction
	d.DirtyTolerance = c.Layout.DirtyTolerance
	d.OriginIsUnset = c.Layout.OriginIsUnset
	d.SessionTTL = c.SessionTTL
	return d
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
