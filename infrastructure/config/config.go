package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers understood by the persistence layer
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// WebSocketConfig holds WebSocket transport tuning
type WebSocketConfig struct {
	// SendBufferSize is the per-session outbound queue length
	SendBufferSize int `yaml:"sendBufferSize"`
	// MaxMessageSize is the largest inbound frame accepted, in bytes
	MaxMessageSize int64 `yaml:"maxMessageSize"`
	// PongWait is how long a silent peer is kept before it is dropped
	PongWait time.Duration `yaml:"pongWait"`
	// WriteWait bounds a single frame write
	WriteWait time.Duration `yaml:"writeWait"`
	// MaxConnections caps concurrently registered sessions, 0 = unlimited
	MaxConnections int `yaml:"maxConnections"`
	// EventQueueSize is the dispatcher's inbound queue length
	EventQueueSize int `yaml:"eventQueueSize"`
}

// BreakerConfig tunes the circuit breaker around the patient store
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"maxRequests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failureThreshold"`
	MinRequests      uint32        `yaml:"minRequests"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress  string   `yaml:"serverAddress"`
	Environment    string   `yaml:"environment"`
	AllowedOrigins []string `yaml:"allowedOrigins"`

	// Persistence
	StoreDriver   string `yaml:"storeDriver"`
	SQLitePath    string `yaml:"sqlitePath"`
	AWSRegion     string `yaml:"awsRegion"`
	DynamoDBTable string `yaml:"dynamoDBTable"`
	EventBusName  string `yaml:"eventBusName"`

	// Logging
	LogLevel string `yaml:"logLevel"`

	// Authentication
	AuthEnabled bool   `yaml:"authEnabled"`
	JWTSecret   string `yaml:"-"`
	JWTIssuer   string `yaml:"jwtIssuer"`

	// Observability
	EnableMetrics   bool   `yaml:"enableMetrics"`
	TracingEndpoint string `yaml:"tracingEndpoint"`

	WebSocket WebSocketConfig `yaml:"websocket"`
	Breaker   BreakerConfig   `yaml:"breaker"`

	// ConfigFile is the YAML file the values were layered on, if any
	ConfigFile string `yaml:"-"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		ServerAddress:  ":5000",
		Environment:    "development",
		AllowedOrigins: []string{"*"},
		StoreDriver:    StoreSQLite,
		SQLitePath:     "rhealth.db",
		AWSRegion:      "us-west-2",
		DynamoDBTable:  "rhealth-patients",
		LogLevel:       "info",
		JWTIssuer:      "rhealth-backend",
		EnableMetrics:  false,
		WebSocket: WebSocketConfig{
			SendBufferSize: 256,
			MaxMessageSize: 512 * 1024,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
			MaxConnections: 10000,
			EventQueueSize: 1024,
		},
		Breaker: BreakerConfig{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(os.Getenv("CONFIG_FILE"))
}

// LoadConfigFrom is LoadConfig with an explicit YAML file. An empty path
// skips the file layer.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SERVER_ADDRESS") == "" {
		c.ServerAddress = ":" + port
	}
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.AuthEnabled = getEnvBool("ENABLE_AUTH", c.AuthEnabled)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.TracingEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.TracingEndpoint)

	c.WebSocket.SendBufferSize = getEnvInt("WS_SEND_BUFFER", c.WebSocket.SendBufferSize)
	c.WebSocket.MaxConnections = getEnvInt("WS_MAX_CONNECTIONS", c.WebSocket.MaxConnections)
	c.WebSocket.EventQueueSize = getEnvInt("WS_EVENT_QUEUE", c.WebSocket.EventQueueSize)
	c.WebSocket.PongWait = getEnvDuration("WS_PONG_WAIT", c.WebSocket.PongWait)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreDynamoDB:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.StoreDriver == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
	}
	if c.StoreDriver == StoreDynamoDB && c.DynamoDBTable == "" {
		return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
	}
	if c.AuthEnabled && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth is enabled")
	}
	if c.IsProduction() && !c.AuthEnabled {
		return fmt.Errorf("ENABLE_AUTH must be true in production")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket sendBufferSize must be positive")
	}
	if c.WebSocket.EventQueueSize <= 0 {
		return fmt.Errorf("websocket eventQueueSize must be positive")
	}
	if c.WebSocket.PongWait <= 0 {
		return fmt.Errorf("websocket pongWait must be positive")
	}

	return nil
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

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
