package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Typesense  TypesenseConfig  `yaml:"typesense"`
	Redis      RedisConfig      `yaml:"redis"`
	Database   DatabaseConfig   `yaml:"database"`
	Archive    ArchiveConfig    `yaml:"archive"`
	OTEL       OTELConfig       `yaml:"otel"`
	Log        LogConfig        `yaml:"log"`
}

// AnalyticsConfig holds the remote GraphQL analytics API settings
type AnalyticsConfig struct {
	Endpoint             string        `yaml:"endpoint" validate:"required,url"`
	APIToken             string        `yaml:"api_token" validate:"required"`
	AccountTag           string        `yaml:"account_tag"`
	ZoneTag              string        `yaml:"zone_tag" validate:"required"`
	IncludePremiumFields bool          `yaml:"include_premium_fields"`
	RowLimit             int           `yaml:"row_limit" validate:"min=1,max=10000"`
	Timeout              time.Duration `yaml:"timeout" validate:"min=1s"`
}

// ExtractionConfig holds the window loop settings
type ExtractionConfig struct {
	BatchName      string        `yaml:"batch_name" validate:"required"`
	DateStart      string        `yaml:"date_start" validate:"required"`
	DateEnd        string        `yaml:"date_end" validate:"required"`
	WindowWidth    time.Duration `yaml:"window_width" validate:"min=1m"`
	MinDelay       time.Duration `yaml:"min_delay" validate:"min=0"`
	MaxDelay       time.Duration `yaml:"max_delay" validate:"gtefield=MinDelay"`
	IndexPrefix    string        `yaml:"index_prefix" validate:"required"`
	DocumentIDMode string        `yaml:"document_id_mode" validate:"oneof=server stable"`
	Resume         bool          `yaml:"resume"`
}

// EnrichmentConfig holds the lookup database settings
type EnrichmentConfig struct {
	GeoIPCityPath        string `yaml:"geoip_city_path" validate:"required"`
	GeoIPASNPath         string `yaml:"geoip_asn_path" validate:"required"`
	UserAgentRegexesPath string `yaml:"user_agent_regexes_path"`
	GeoCacheEnabled      bool   `yaml:"geo_cache_enabled"`
	GeoCacheTTLSeconds   int    `yaml:"geo_cache_ttl_seconds" validate:"min=0"`
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string `yaml:"url" validate:"required,url"`
	APIKey string `yaml:"api_key" validate:"required"`
}

// RedisConfig holds Redis configuration. Redis backs the geo cache and the
// window checkpoint; it is only dialled when Enabled.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" validate:"min=0,max=65535"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
}

// DatabaseConfig holds database configuration for the window run log
type DatabaseConfig struct {
	RunLogEnabled bool   `yaml:"run_log_enabled"`
	Host          string `yaml:"host" validate:"required_if=RunLogEnabled true"`
	Port          int    `yaml:"port" validate:"min=0,max=65535"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Database      string `yaml:"database" validate:"required_if=RunLogEnabled true"`
	SSLMode       string `yaml:"ssl_mode"`
}

// ArchiveConfig holds the raw page archive settings
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint" validate:"required_if=Enabled true"`
	AccessKey string `yaml:"access_key" validate:"required_if=Enabled true"`
	SecretKey string `yaml:"secret_key" validate:"required_if=Enabled true"`
	Bucket    string `yaml:"bucket" validate:"required_if=Enabled true"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Endpoint       string `yaml:"endpoint"`
	Enabled        bool   `yaml:"enabled"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Environment string `yaml:"environment"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups  int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays  int    `yaml:"max_age_days" validate:"min=0"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() *Config {
	return &Config{
		Analytics: AnalyticsConfig{
			Endpoint: "https://api.cloudflare.com/client/v4/graphql",
			RowLimit: 10000,
			Timeout:  60 * time.Second,
		},
		Extraction: ExtractionConfig{
			BatchName:      "LOG250731",
			DateStart:      "2025-10-01",
			DateEnd:        "2025-10-31",
			WindowWidth:    6 * time.Hour,
			MinDelay:       7 * time.Second,
			MaxDelay:       12 * time.Second,
			IndexPrefix:    "cloudflare-requests-",
			DocumentIDMode: "server",
		},
		Enrichment: EnrichmentConfig{
			GeoIPCityPath:      "db/GeoLite2-City.mmdb",
			GeoIPASNPath:       "db/GeoLite2-ASN.mmdb",
			GeoCacheTTLSeconds: 86400,
		},
		Typesense: TypesenseConfig{
			URL:    "http://localhost:8108",
			APIKey: "xyz",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "traffic",
			SSLMode:  "disable",
		},
		Archive: ArchiveConfig{
			Bucket: "traffic-pages",
			Prefix: "raw",
		},
		OTEL: OTELConfig{
			ServiceName:    "traffic-puller",
			ServiceVersion: "1.0.0",
			Endpoint:       "localhost:4317",
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "development",
			MaxSizeMB:   100,
			MaxBackups:  3,
			MaxAgeDays:  28,
		},
	}
}

// Load loads configuration from environment variables over the defaults
func Load() (*Config, error) {
	cfg := Defaults()
	applyEnv(cfg)
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults, then applies environment
// overrides. An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	a := &cfg.Analytics
	a.Endpoint = getEnv("CLOUDFLARE_GRAPHQL_ENDPOINT", a.Endpoint)
	a.APIToken = getEnv("CLOUDFLARE_API_KEY", a.APIToken)
	a.AccountTag = getEnv("CLOUDFLARE_ACCOUNT", a.AccountTag)
	a.ZoneTag = getEnv("CLOUDFLARE_ZONE", a.ZoneTag)
	a.IncludePremiumFields = getEnvAsBool("INCLUDE_PREMIUM_FIELDS", a.IncludePremiumFields)
	a.RowLimit = getEnvAsInt("ANALYTICS_ROW_LIMIT", a.RowLimit)
	a.Timeout = getEnvAsDuration("ANALYTICS_TIMEOUT", a.Timeout)

	e := &cfg.Extraction
	// LOG_BACTH_NAME is the historical spelling still set by existing deployments.
	e.BatchName = getEnv("LOG_BATCH_NAME", getEnv("LOG_BACTH_NAME", e.BatchName))
	e.DateStart = getEnv("LOG_DATE_START", e.DateStart)
	e.DateEnd = getEnv("LOG_DATE_END", e.DateEnd)
	e.WindowWidth = getEnvAsDuration("EXTRACTION_WINDOW", e.WindowWidth)
	e.MinDelay = getEnvAsDuration("EXTRACTION_MIN_DELAY", e.MinDelay)
	e.MaxDelay = getEnvAsDuration("EXTRACTION_MAX_DELAY", e.MaxDelay)
	e.IndexPrefix = getEnv("INDEX_PREFIX", e.IndexPrefix)
	e.DocumentIDMode = strings.ToLower(getEnv("DOCUMENT_ID_MODE", e.DocumentIDMode))
	e.Resume = getEnvAsBool("EXTRACTION_RESUME", e.Resume)

	en := &cfg.Enrichment
	en.GeoIPCityPath = getEnv("GEOIP_CITY_DB", en.GeoIPCityPath)
	en.GeoIPASNPath = getEnv("GEOIP_ASN_DB", en.GeoIPASNPath)
	en.UserAgentRegexesPath = getEnv("UA_REGEXES_PATH", en.UserAgentRegexesPath)
	en.GeoCacheEnabled = getEnvAsBool("GEOIP_CACHE_ENABLED", en.GeoCacheEnabled)
	en.GeoCacheTTLSeconds = getEnvAsInt("GEOIP_CACHE_TTL", en.GeoCacheTTLSeconds)

	cfg.Typesense.URL = getEnv("TYPESENSE_URL", cfg.Typesense.URL)
	cfg.Typesense.APIKey = getEnv("TYPESENSE_API_KEY", cfg.Typesense.APIKey)

	r := &cfg.Redis
	r.Enabled = getEnvAsBool("REDIS_ENABLED", r.Enabled)
	r.Host = getEnv("REDIS_HOST", r.Host)
	r.Port = getEnvAsInt("REDIS_PORT", r.Port)
	r.Password = getEnv("REDIS_PASSWORD", r.Password)
	r.DB = getEnvAsInt("REDIS_DB", r.DB)

	d := &cfg.Database
	d.RunLogEnabled = getEnvAsBool("RUN_LOG_ENABLED", d.RunLogEnabled)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnvAsInt("DB_PORT", d.Port)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASSWORD", d.Password)
	d.Database = getEnv("DB_NAME", d.Database)
	d.SSLMode = getEnv("DB_SSL_MODE", d.SSLMode)

	ar := &cfg.Archive
	ar.Enabled = getEnvAsBool("ARCHIVE_ENABLED", ar.Enabled)
	ar.Endpoint = getEnv("ARCHIVE_ENDPOINT", ar.Endpoint)
	ar.AccessKey = getEnv("ARCHIVE_ACCESS_KEY", ar.AccessKey)
	ar.SecretKey = getEnv("ARCHIVE_SECRET_KEY", ar.SecretKey)
	ar.Bucket = getEnv("ARCHIVE_BUCKET", ar.Bucket)
	ar.UseSSL = getEnvAsBool("ARCHIVE_USE_SSL", ar.UseSSL)
	ar.Prefix = getEnv("ARCHIVE_PREFIX", ar.Prefix)

	o := &cfg.OTEL
	o.ServiceName = getEnv("OTEL_SERVICE_NAME", o.ServiceName)
	o.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", o.ServiceVersion)
	o.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", o.Endpoint)
	o.Enabled = getEnvAsBool("OTEL_ENABLED", o.Enabled)

	l := &cfg.Log
	l.Level = strings.ToLower(getEnv("LOG_LEVEL", l.Level))
	l.Environment = getEnv("ENV", l.Environment)
	l.File = getEnv("LOG_FILE", l.File)
	l.MaxSizeMB = getEnvAsInt("LOG_FILE_MAX_SIZE_MB", l.MaxSizeMB)
	l.MaxBackups = getEnvAsInt("LOG_FILE_MAX_BACKUPS", l.MaxBackups)
	l.MaxAgeDays = getEnvAsInt("LOG_FILE_MAX_AGE_DAYS", l.MaxAgeDays)
}

// RangeStart parses DateStart. A bare date means midnight UTC.
func (c *ExtractionConfig) RangeStart() (time.Time, error) {
	return parseBound(c.DateStart, 0)
}

// RangeEnd parses DateEnd. A bare date means 23:59 UTC of that day.
func (c *ExtractionConfig) RangeEnd() (time.Time, error) {
	return parseBound(c.DateEnd, 23*time.Hour+59*time.Minute)
}

func parseBound(value string, dayOffset time.Duration) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", value)
	}
	return t.Add(dayOffset), nil
}

// DatabaseDSN returns the database connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("6h") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
