package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backend types
const (
	StorageTypeMemory   = "memory"
	StorageTypeMongo    = "mongo"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// Article slot types
const (
	ArticleTypeMemory = "memory"
	ArticleTypeRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Article ArticleConfig `mapstructure:"article"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// StorageConfig contains log store configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // memory, mongo, sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	Database         string        `mapstructure:"database"`
	Collection       string        `mapstructure:"collection"`
	MaxEntries       int           `mapstructure:"max_entries"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	ConnectRetries   int           `mapstructure:"connect_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

// ArticleConfig contains latest-article slot configuration
type ArticleConfig struct {
	Type          string `mapstructure:"type"` // memory, redis
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Key           string `mapstructure:"key"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file, discard
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./internal/config")
	}

	// Set environment variable prefix
	v.SetEnvPrefix("WORKFLOW_RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.Storage.Type = strings.ToLower(strings.TrimSpace(config.Storage.Type))
	config.Article.Type = strings.ToLower(strings.TrimSpace(config.Article.Type))

	storageTypeSet := v.InConfig("storage.type") || os.Getenv("WORKFLOW_RELAY_STORAGE_TYPE") != ""
	applyEnvOverrides(&config, storageTypeSet)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnvOverrides applies the well-known deployment variables
func applyEnvOverrides(config *Config, storageTypeSet bool) {
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		config.Storage.ConnectionString = uri
		if !storageTypeSet {
			config.Storage.Type = StorageTypeMongo
		}
	}
	if db := os.Getenv("MONGODB_DB"); db != "" {
		config.Storage.Database = db
	}
	sqlBackend := config.Storage.Type == StorageTypeSQLite || config.Storage.Type == StorageTypePostgres
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" && sqlBackend {
		config.Storage.ConnectionString = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Article.RedisAddr = addr
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "workflow-relay")
	v.SetDefault("app.environment", "development")

	// Server defaults
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)

	// Storage defaults
	v.SetDefault("storage.type", StorageTypeMemory)
	v.SetDefault("storage.connection_string", "")
	v.SetDefault("storage.database", "workflow_relay")
	v.SetDefault("storage.collection", "logs")
	v.SetDefault("storage.max_entries", 1000)
	v.SetDefault("storage.max_connections", 10)
	v.SetDefault("storage.max_idle_time", "15m")
	v.SetDefault("storage.connect_timeout", "5s")
	v.SetDefault("storage.connect_retries", 2)
	v.SetDefault("storage.retry_delay", "1s")

	// Article defaults
	v.SetDefault("article.type", ArticleTypeMemory)
	v.SetDefault("article.redis_addr", "localhost:6379")
	v.SetDefault("article.redis_password", "")
	v.SetDefault("article.redis_db", 0)
	v.SetDefault("article.key", "workflow-relay:latest-article")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageTypeMemory, StorageTypeMongo, StorageTypeSQLite, StorageTypePostgres:
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	switch c.Article.Type {
	case ArticleTypeMemory, ArticleTypeRedis:
	default:
		return fmt.Errorf("unsupported article type %q", c.Article.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Storage.MaxEntries < 0 {
		return fmt.Errorf("storage max_entries must not be negative")
	}
	if c.Storage.ConnectRetries < 0 {
		return fmt.Errorf("storage connect_retries must not be negative")
	}
	return nil
}

// IsDurable reports whether the configured log store is a durable backend
func (s StorageConfig) IsDurable() bool {
	return s.Type != StorageTypeMemory
}

// HasUsableConnection reports whether the connection string is present and
// not a template placeholder.
func (s StorageConfig) HasUsableConnection() bool {
	conn := strings.TrimSpace(s.ConnectionString)
	if conn == "" {
		return false
	}
	lower := strings.ToLower(conn)
	for _, marker := range []string{"<", "your_", "changeme"} {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}
