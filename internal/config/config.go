package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Tabular store connection.
	StoreURL     string
	StoreAPIKey  string
	StoreTimeout time.Duration
	PageSize     int

	PollInterval   time.Duration
	SourcesFile    string
	SourceLocation *time.Location
	InputLocation  *time.Location

	// Session gating.
	UsersDB    string
	SessionTTL time.Duration

	// Optional Kafka snapshot sink.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	storeTimeout, err := parsePositiveDuration("STORE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "10s")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parsePositiveDuration("SESSION_TTL", "24h")
	if err != nil {
		return nil, err
	}

	pageSize, err := parsePageSize()
	if err != nil {
		return nil, err
	}

	sourceLoc, err := time.LoadLocation(sharedcfg.EnvOrDefault("SOURCE_TIMEZONE", "UTC"))
	if err != nil {
		return nil, errors.New("invalid SOURCE_TIMEZONE")
	}
	inputLoc, err := time.LoadLocation(sharedcfg.EnvOrDefault("INPUT_TIMEZONE", "UTC"))
	if err != nil {
		return nil, errors.New("invalid INPUT_TIMEZONE")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StoreURL:     sharedcfg.EnvOrDefault("STORE_URL", "http://localhost:3000"),
		StoreAPIKey:  os.Getenv("STORE_API_KEY"),
		StoreTimeout: storeTimeout,
		PageSize:     pageSize,

		PollInterval:   pollInterval,
		SourcesFile:    os.Getenv("SOURCES_FILE"),
		SourceLocation: sourceLoc,
		InputLocation:  inputLoc,

		UsersDB:    sharedcfg.EnvOrDefault("USERS_DB", "users.db"),
		SessionTTL: sessionTTL,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "sensor-snapshots"),
	}

	if cfg.StoreURL == "" {
		return nil, errors.New("STORE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePageSize() (int, error) {
	s := sharedcfg.EnvOrDefault("PAGE_SIZE", "1000")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 10000 {
		return 0, errors.New("PAGE_SIZE must be between 1 and 10000")
	}
	return n, nil
}
