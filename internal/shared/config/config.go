package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Encryption  EncryptionConfig
	Plaid       PlaidConfig
	Aggregation AggregationConfig
	Redis       RedisConfig
	Scheduler   SchedulerConfig
	Telemetry   TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// ListenerEnabled starts the credential_linked LISTEN loop.
	ListenerEnabled bool
	// ListenerRepairDelay is how long a new credential is left to its own
	// link request before a repair job checks it. It must outlast the
	// provider timeout.
	ListenerRepairDelay time.Duration
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	Key string
}

type PlaidConfig struct {
	ClientID string
	Secret   string
	Env      string
	BaseURL  string
	Timeout  time.Duration
}

type AggregationConfig struct {
	WindowDays  int
	PageSize    int
	MaxPages    int
	Concurrency int
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	EventStream  string
	LinkGuardTTL time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

var plaidEnvironments = map[string]struct{}{
	"sandbox":     {},
	"development": {},
	"production":  {},
}

func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	plaidTimeout, err := time.ParseDuration(getEnv("PLAID_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAID_TIMEOUT: %w", err)
	}

	repairDelay, err := time.ParseDuration(getEnv("DB_LISTENER_REPAIR_DELAY", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_LISTENER_REPAIR_DELAY: %w", err)
	}
	if repairDelay <= plaidTimeout {
		return nil, fmt.Errorf("DB_LISTENER_REPAIR_DELAY (%s) must exceed PLAID_TIMEOUT (%s)", repairDelay, plaidTimeout)
	}

	windowDays, err := getIntEnv("AGGREGATION_WINDOW_DAYS", 30)
	if err != nil {
		return nil, err
	}
	pageSize, err := getIntEnv("AGGREGATION_PAGE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	maxPages, err := getIntEnv("AGGREGATION_MAX_PAGES", 50)
	if err != nil {
		return nil, err
	}
	concurrency, err := getIntEnv("AGGREGATION_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	linkGuardTTL, err := time.ParseDuration(getEnv("REDIS_LINK_GUARD_TTL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_LINK_GUARD_TTL: %w", err)
	}

	// Parse scheduler configuration
	schedulerEnabled := getBoolEnv("SCHEDULER_ENABLED", true)
	schedulerTimes := strings.Split(getEnv("SCHEDULER_TIMES", "05:00,14:00,20:00"), ",")
	schedulerWorkers, err := getIntEnv("SCHEDULER_WORKERS", 5)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	// Parse allowed hosts (comma-separated list)
	var allowedHosts []string
	for _, host := range strings.Split(getEnv("ALLOWED_HOSTS", ""), ",") {
		host = strings.TrimSpace(host)
		if host != "" {
			allowedHosts = append(allowedHosts, host)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: allowedHosts,
		},
		Database: DatabaseConfig{
			Host:                getEnv("DB_HOST", "localhost"),
			Port:                dbPort,
			User:                getEnv("DB_USER", "finlink"),
			Password:            getEnv("DB_PASSWORD", ""),
			DBName:              getEnv("DB_NAME", "finlink"),
			SSLMode:             getEnv("DB_SSLMODE", "disable"),
			ListenerEnabled:     getBoolEnv("DB_LISTENER_ENABLED", true),
			ListenerRepairDelay: repairDelay,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Plaid: PlaidConfig{
			ClientID: getEnv("PLAID_CLIENT_ID", ""),
			Secret:   getEnv("PLAID_SECRET", ""),
			Env:      strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
			BaseURL:  getEnv("PLAID_BASE_URL", ""),
			Timeout:  plaidTimeout,
		},
		Aggregation: AggregationConfig{
			WindowDays:  windowDays,
			PageSize:    pageSize,
			MaxPages:    maxPages,
			Concurrency: concurrency,
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			EventStream:  getEnv("REDIS_EVENT_STREAM", "finlink:events"),
			LinkGuardTTL: linkGuardTTL,
		},
		Scheduler: SchedulerConfig{
			Enabled:       schedulerEnabled,
			ScheduleTimes: schedulerTimes,
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finlink-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Plaid.ClientID == "" || cfg.Plaid.Secret == "" {
		return nil, fmt.Errorf("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}
	if _, ok := plaidEnvironments[cfg.Plaid.Env]; !ok {
		return nil, fmt.Errorf("invalid PLAID_ENV %q (expected sandbox, development or production)", cfg.Plaid.Env)
	}
	if cfg.Aggregation.PageSize < 1 || cfg.Aggregation.PageSize > 500 {
		return nil, fmt.Errorf("AGGREGATION_PAGE_SIZE must be between 1 and 500")
	}
	if cfg.Aggregation.MaxPages < 1 {
		return nil, fmt.Errorf("AGGREGATION_MAX_PAGES must be at least 1")
	}
	if cfg.Aggregation.Concurrency < 1 {
		return nil, fmt.Errorf("AGGREGATION_CONCURRENCY must be at least 1")
	}
	if cfg.Aggregation.WindowDays < 1 {
		return nil, fmt.Errorf("AGGREGATION_WINDOW_DAYS must be at least 1")
	}

	return cfg, nil
}

// PlaidBaseURL returns the provider host for the configured environment
// unless PLAID_BASE_URL overrides it.
func (c *PlaidConfig) PlaidBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.plaid.com", c.Env)
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
