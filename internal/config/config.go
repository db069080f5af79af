// Package config provides unified configuration for the graphbench service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ActivityBackend selects where activities are recorded.
type ActivityBackend string

const (
	ActivityBackendMongo  ActivityBackend = "mongo"
	ActivityBackendMemory ActivityBackend = "memory"
)

// Config holds the unified configuration for graphbench.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// SQLite configuration
	SQLite SQLiteConfig `json:"sqlite" yaml:"sqlite"`

	// Neo4j configuration
	Neo4j Neo4jConfig `json:"neo4j" yaml:"neo4j"`

	// Activity log configuration
	Activity ActivityConfig `json:"activity" yaml:"activity"`

	// Report archive configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout. Experiments are synchronous,
	// so this bounds the longest experiment a client can wait for.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

// SQLiteConfig holds the relational engine configuration.
type SQLiteConfig struct {
	// Path is the database file; defaults to <data_dir>/mun_social.db
	Path string `json:"path" yaml:"path"`
}

// Neo4jConfig holds the graph engine configuration.
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// ActivityConfig holds the activity log configuration.
type ActivityConfig struct {
	// Backend is mongo or memory
	Backend ActivityBackend `json:"backend" yaml:"backend"`

	// URI is the MongoDB connection string
	URI string `json:"uri" yaml:"uri"`

	// Database is the MongoDB database name
	Database string `json:"database" yaml:"database"`

	// Collection is the MongoDB collection holding activity documents
	Collection string `json:"collection" yaml:"collection"`
}

// StorageConfig holds report archive storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/graphbench",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		Log: LogConfig{
			Level:       "info",
			Development: true,
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Activity: ActivityConfig{
			Backend:    ActivityBackendMongo,
			URI:        "mongodb://localhost:27017",
			Database:   "graphbench",
			Collection: "activities",
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/graphbench"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(c.DataDir, "mun_social.db")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "reports")
	}
	if c.Neo4j.Database == "" {
		c.Neo4j.Database = "neo4j"
	}
	if c.Activity.Collection == "" {
		c.Activity.Collection = "activities"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}

	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required")
	}

	switch c.Activity.Backend {
	case ActivityBackendMongo:
		if c.Activity.URI == "" {
			return fmt.Errorf("activity.uri is required when activity backend is mongo")
		}
		if c.Activity.Database == "" {
			return fmt.Errorf("activity.database is required when activity backend is mongo")
		}
	case ActivityBackendMemory:
	default:
		return fmt.Errorf("invalid activity backend: %s (must be mongo or memory)", c.Activity.Backend)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Service variables use the GRAPHBENCH_ prefix. Engine connection
// variables (NEO4J_*, MONGO_DB_CONNECTION) are unprefixed.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GRAPHBENCH_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GRAPHBENCH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("GRAPHBENCH_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("GRAPHBENCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GRAPHBENCH_LOG_DEVELOPMENT"); v != "" {
		cfg.Log.Development = v == "true" || v == "1"
	}

	// SQLite configuration
	if v := os.Getenv("GRAPHBENCH_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}

	// Neo4j configuration
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		cfg.Neo4j.Username = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("NEO4J_DATABASE"); v != "" {
		cfg.Neo4j.Database = v
	}

	// Activity log configuration
	if v := os.Getenv("GRAPHBENCH_ACTIVITY_BACKEND"); v != "" {
		cfg.Activity.Backend = ActivityBackend(v)
	}
	if v := os.Getenv("MONGO_DB_CONNECTION"); v != "" {
		cfg.Activity.URI = v
	}
	if v := os.Getenv("GRAPHBENCH_MONGO_DATABASE"); v != "" {
		cfg.Activity.Database = v
	}

	// Storage configuration
	if v := os.Getenv("GRAPHBENCH_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("GRAPHBENCH_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("GRAPHBENCH_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("GRAPHBENCH_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("GRAPHBENCH_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.SQLite.Path),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
