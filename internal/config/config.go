// =============================================================================
// Billing Inquiry - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults
//   2. Main config file (config.yaml)
//   3. .env file in the working directory, if present
//   4. Process environment (BILLING_* variables)
//
// ENVIRONMENT OVERRIDES:
//   BILLING_SERVER_HOST, BILLING_SERVER_PORT, BILLING_ADMIN_TOKEN,
//   BILLING_STORAGE_DRIVER, BILLING_SQLITE_PATH, BILLING_MONGO_URI,
//   BILLING_MONGO_DATABASE, BILLING_LOG_LEVEL, BILLING_LOG_FORMAT
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given. Unlike an
// explicit path, it may be absent.
const DefaultConfigPath = "config.yaml"

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Host is the interface to listen on. Default: "0.0.0.0"
	Host string `yaml:"host"`

	// Port is the TCP port. Default: 8080
	Port int `yaml:"port"`

	// AdminToken guards the admin endpoints (X-Admin-Token header). When
	// empty the admin endpoints are disabled.
	AdminToken string `yaml:"admin_token"`

	// MaxUploadMB caps the size of an uploaded spreadsheet. Default: 10
	MaxUploadMB int `yaml:"max_upload_mb"`

	// ReadTimeout bounds reading a request. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MaxUploadBytes returns the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	// Driver is "sqlite", "mongo" or "memory". Default: "sqlite"
	Driver string `yaml:"driver"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	Mongo  MongoConfig  `yaml:"mongo"`

	// BatchSize is the number of records written per insert batch.
	// Default: 100
	BatchSize int `yaml:"batch_size"`

	// LoadTimeout bounds loading the dataset at startup. Default: 15s
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// SQLiteConfig configures the embedded database.
type SQLiteConfig struct {
	// Path is the database file. Default: "./data/billing.db"
	Path string `yaml:"path"`
}

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// IngestionConfig configures spreadsheet uploads.
type IngestionConfig struct {
	// CurrencySymbols are stripped from amount text. Default: ["₱"]
	CurrencySymbols []string `yaml:"currency_symbols"`

	// ThousandsSeparators are stripped from amount text. Default: [","]
	ThousandsSeparators []string `yaml:"thousands_separators"`

	// AllowedExtensions lists accepted upload types.
	// Default: [".xlsx", ".xls", ".csv"]
	AllowedExtensions []string `yaml:"allowed_extensions"`

	// CSVDelimiter is the field separator for .csv uploads. Default: ","
	CSVDelimiter string `yaml:"csv_delimiter"`

	// ArchiveDir receives a copy of every imported file when archiving is
	// requested. Default: "./archive"
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveUploads keeps a copy of every file accepted by the HTTP upload
	// endpoint in ArchiveDir.
	ArchiveUploads bool `yaml:"archive_uploads"`

	// ArchiveRetentionDays removes archived uploads older than this.
	// 0 keeps everything.
	ArchiveRetentionDays int `yaml:"archive_retention_days"`

	// StrictValidation rejects uploads with validation warnings.
	StrictValidation bool `yaml:"strict_validation"`
}

// SearchConfig configures suggestions.
type SearchConfig struct {
	// SuggestLimit is the maximum number of suggestions. Default: 5
	SuggestLimit int `yaml:"suggest_limit"`

	// SuggestMinChars is the shortest query that produces suggestions.
	// Default: 2
	SuggestMinChars int `yaml:"suggest_min_chars"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error". Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "console". Default: "json"
	Format string `yaml:"format"`
}

// AppConfig holds presentation settings.
type AppConfig struct {
	// Name is shown by the stats endpoint. Default: "Buenavista Water District"
	Name string `yaml:"name"`

	// DemoFallback serves sample records when the store is empty or
	// unreachable at startup. Default: true
	DemoFallback *bool `yaml:"demo_fallback"`
}

// UseDemoFallback reports whether demo records may be served.
func (a AppConfig) UseDemoFallback() bool {
	return a.DemoFallback == nil || *a.DemoFallback
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load builds the configuration from all sources.
//
// PARAMETERS:
//   - configPath: The main config file. DefaultConfigPath may be missing;
//     any other path must exist.
//
// RETURNS:
//   - The loaded and validated configuration.
//   - An error if a file cannot be read or the result is invalid.
func Load(configPath string) (*MainConfig, error) {
	LoadEnv(".env")

	if configPath == "" {
		configPath = DefaultConfigPath
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) && configPath == DefaultConfigPath {
		return finish(&MainConfig{})
	}

	return LoadMainConfig(configPath)
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the config.yaml file.
//
// RETURNS:
//   - A pointer to the loaded MainConfig.
//   - An error if the file cannot be read or parsed.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(&config)
}

// LoadEnv loads variables from a .env file into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadEnv(path string) {
	_ = godotenv.Load(path)
}

func finish(config *MainConfig) (*MainConfig, error) {
	applyEnvOverrides(config)
	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides replaces file values with BILLING_* variables.
func applyEnvOverrides(config *MainConfig) {
	config.Server.Host = GetEnvOrDefaultAsString("BILLING_SERVER_HOST", config.Server.Host)
	config.Server.Port = GetEnvOrDefaultAsInt("BILLING_SERVER_PORT", config.Server.Port)
	config.Server.AdminToken = GetEnvOrDefaultAsString("BILLING_ADMIN_TOKEN", config.Server.AdminToken)

	config.Storage.Driver = GetEnvOrDefaultAsString("BILLING_STORAGE_DRIVER", config.Storage.Driver)
	config.Storage.SQLite.Path = GetEnvOrDefaultAsString("BILLING_SQLITE_PATH", config.Storage.SQLite.Path)
	config.Storage.Mongo.URI = GetEnvOrDefaultAsString("BILLING_MONGO_URI", config.Storage.Mongo.URI)
	config.Storage.Mongo.Database = GetEnvOrDefaultAsString("BILLING_MONGO_DATABASE", config.Storage.Mongo.Database)

	config.Logging.Level = GetEnvOrDefaultAsString("BILLING_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = GetEnvOrDefaultAsString("BILLING_LOG_FORMAT", config.Logging.Format)
}

// applyMainConfigDefaults sets default values for any missing configuration.
func applyMainConfigDefaults(config *MainConfig) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.MaxUploadMB == 0 {
		config.Server.MaxUploadMB = 10
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = DriverSQLite
	}
	config.Storage.Driver = strings.ToLower(config.Storage.Driver)
	if config.Storage.SQLite.Path == "" {
		config.Storage.SQLite.Path = "./data/billing.db"
	}
	if config.Storage.Mongo.Database == "" {
		config.Storage.Mongo.Database = "billing"
	}
	if config.Storage.Mongo.Collection == "" {
		config.Storage.Mongo.Collection = "water_bills"
	}
	if config.Storage.Mongo.Timeout == 0 {
		config.Storage.Mongo.Timeout = 10 * time.Second
	}
	if config.Storage.BatchSize == 0 {
		config.Storage.BatchSize = 100
	}
	if config.Storage.LoadTimeout == 0 {
		config.Storage.LoadTimeout = 15 * time.Second
	}

	if len(config.Ingestion.CurrencySymbols) == 0 {
		config.Ingestion.CurrencySymbols = []string{"₱"}
	}
	if len(config.Ingestion.ThousandsSeparators) == 0 {
		config.Ingestion.ThousandsSeparators = []string{","}
	}
	if len(config.Ingestion.AllowedExtensions) == 0 {
		config.Ingestion.AllowedExtensions = []string{".xlsx", ".xls", ".csv"}
	}
	for i, ext := range config.Ingestion.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		config.Ingestion.AllowedExtensions[i] = ext
	}
	if config.Ingestion.CSVDelimiter == "" {
		config.Ingestion.CSVDelimiter = ","
	}
	if config.Ingestion.ArchiveDir == "" {
		config.Ingestion.ArchiveDir = "./archive"
	}

	if config.Search.SuggestLimit == 0 {
		config.Search.SuggestLimit = 5
	}
	if config.Search.SuggestMinChars == 0 {
		config.Search.SuggestMinChars = 2
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}

	if config.App.Name == "" {
		config.App.Name = "Buenavista Water District"
	}
}

// validateMainConfig checks the configuration for invalid values.
func validateMainConfig(config *MainConfig) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", config.Server.Port)
	}
	if config.Server.MaxUploadMB < 0 {
		return fmt.Errorf("server.max_upload_mb must not be negative")
	}

	switch config.Storage.Driver {
	case DriverSQLite:
		dir := filepath.Dir(config.Storage.SQLite.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	case DriverMongo:
		if config.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %s", config.Storage.Driver)
	}

	if config.Storage.BatchSize < 1 {
		return fmt.Errorf("storage.batch_size must be positive")
	}
	if config.Search.SuggestLimit < 0 || config.Search.SuggestMinChars < 0 {
		return fmt.Errorf("search limits must not be negative")
	}

	switch strings.ToLower(config.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", config.Logging.Level)
	}

	return nil
}

// =============================================================================
// ENVIRONMENT HELPERS
// =============================================================================

// GetEnvOrDefaultAsString returns the value of the given env variable or the
// default value if unset or empty.
func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if val != "" {
			return val
		}
	}
	return defaultVal
}

// GetEnvOrDefaultAsInt returns the integer value of the given env variable or
// the default value if unset or not a number.
func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return int(value)
}
