package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendMemory   = "memory"

	// ConfigPathEnv points to an optional YAML file. Environment variables
	// override values read from it.
	ConfigPathEnv = "TOKENTRANSFER_CONFIG"

	defaultDerivationKey = "746f6b656e7472616e736665722d6465762d6b6579"
)

type DBConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	SSLMode        string `yaml:"sslmode"`
	MigrationsPath string `yaml:"migrations_path"`
	ConnectRetries int    `yaml:"connect_retries"`
}

type KafkaConfig struct {
	Enabled                   bool   `yaml:"enabled"`
	BrokerURL                 string `yaml:"broker_url"`
	TransferInstructionsTopic string `yaml:"transfer_instructions_topic"`
	TransferEventsTopic       string `yaml:"transfer_events_topic"`
	ConsumerGroup             string `yaml:"consumer_group"`
	EnsureTopics              bool   `yaml:"ensure_topics"`
}

type OutboxConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	BatchSize       int           `yaml:"batch_size"`
	MaxAttempts     int           `yaml:"max_attempts"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type RentConfig struct {
	LamportsPerByteYear uint64 `yaml:"lamports_per_byte_year"`
	ExemptionYears      uint64 `yaml:"exemption_years"`
}

type Config struct {
	DB     DBConfig     `yaml:"db"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Outbox OutboxConfig `yaml:"outbox"`
	Rent   RentConfig   `yaml:"rent"`

	LedgerBackend string `yaml:"ledger_backend"`
	HTTPPort      int    `yaml:"http_port"`
	// DerivationKey is the hex encoded key of the holding address hash.
	DerivationKey   string        `yaml:"derivation_key"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() *Config {
	return &Config{
		DB: DBConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "user",
			Password:       "password",
			Name:           "tokentransfer_db",
			SSLMode:        "disable",
			MigrationsPath: "file://migrations",
			ConnectRetries: 10,
		},
		Kafka: KafkaConfig{
			Enabled:                   true,
			BrokerURL:                 "localhost:9092",
			TransferInstructionsTopic: "transfer_instructions",
			TransferEventsTopic:       "transfer_events",
			ConsumerGroup:             "tokentransfer-group",
			EnsureTopics:              true,
		},
		Outbox: OutboxConfig{
			PollInterval:    time.Second,
			PollTimeout:     5 * time.Second,
			BatchSize:       50,
			MaxAttempts:     10,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
		},
		Rent: RentConfig{
			LamportsPerByteYear: 3480,
			ExemptionYears:      2,
		},
		LedgerBackend:   LedgerBackendPostgres,
		HTTPPort:        8082,
		DerivationKey:   defaultDerivationKey,
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,
	}
}

// LoadConfig reads the YAML file named by TOKENTRANSFER_CONFIG, if any, then
// applies environment overrides and validates the result.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(os.Getenv(ConfigPathEnv))
}

func LoadConfigFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DB.Host = getEnvOrDefault("TOKENTRANSFER_DB_HOST", c.DB.Host)
	c.DB.Port = getEnvAsInt("TOKENTRANSFER_DB_PORT", c.DB.Port)
	c.DB.User = getEnvOrDefault("TOKENTRANSFER_DB_USER", c.DB.User)
	c.DB.Password = getEnvOrDefault("TOKENTRANSFER_DB_PASSWORD", c.DB.Password)
	c.DB.Name = getEnvOrDefault("TOKENTRANSFER_DB_NAME", c.DB.Name)
	c.DB.SSLMode = getEnvOrDefault("TOKENTRANSFER_DB_SSLMODE", c.DB.SSLMode)
	c.DB.MigrationsPath = getEnvOrDefault("TOKENTRANSFER_MIGRATIONS_PATH", c.DB.MigrationsPath)
	c.DB.ConnectRetries = getEnvAsInt("TOKENTRANSFER_DB_CONNECT_RETRIES", c.DB.ConnectRetries)

	c.Kafka.Enabled = getEnvAsBool("KAFKA_ENABLED", c.Kafka.Enabled)
	c.Kafka.BrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", c.Kafka.BrokerURL)
	c.Kafka.TransferInstructionsTopic = getEnvOrDefault("KAFKA_TRANSFER_INSTRUCTIONS_TOPIC", c.Kafka.TransferInstructionsTopic)
	c.Kafka.TransferEventsTopic = getEnvOrDefault("KAFKA_TRANSFER_EVENTS_TOPIC", c.Kafka.TransferEventsTopic)
	c.Kafka.ConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)
	c.Kafka.EnsureTopics = getEnvAsBool("KAFKA_ENSURE_TOPICS", c.Kafka.EnsureTopics)

	c.Outbox.PollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", c.Outbox.PollInterval)
	c.Outbox.PollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", c.Outbox.PollTimeout)
	c.Outbox.BatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", c.Outbox.BatchSize)
	c.Outbox.MaxAttempts = getEnvAsInt("OUTBOX_MAX_ATTEMPTS", c.Outbox.MaxAttempts)
	c.Outbox.BreakerFailures = getEnvAsInt("OUTBOX_BREAKER_FAILURES", c.Outbox.BreakerFailures)
	c.Outbox.BreakerCooldown = getEnvAsDuration("OUTBOX_BREAKER_COOLDOWN", c.Outbox.BreakerCooldown)

	c.Rent.LamportsPerByteYear = getEnvAsUint64("RENT_LAMPORTS_PER_BYTE_YEAR", c.Rent.LamportsPerByteYear)
	c.Rent.ExemptionYears = getEnvAsUint64("RENT_EXEMPTION_YEARS", c.Rent.ExemptionYears)

	c.LedgerBackend = getEnvOrDefault("LEDGER_BACKEND", c.LedgerBackend)
	c.HTTPPort = getEnvAsInt("HTTP_PORT", c.HTTPPort)
	c.DerivationKey = getEnvOrDefault("TOKENTRANSFER_DERIVATION_KEY", c.DerivationKey)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.LedgerBackend {
	case LedgerBackendPostgres:
		if c.DB.Host == "" || c.DB.Name == "" {
			errs = append(errs, errors.New("db host and name are required for the postgres backend"))
		}
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("db port %d out of range", c.DB.Port))
		}
	case LedgerBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.LedgerBackend))
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http port %d out of range", c.HTTPPort))
	}
	if key, err := c.DerivationKeyBytes(); err != nil {
		errs = append(errs, err)
	} else if len(key) < 16 || len(key) > 64 {
		errs = append(errs, fmt.Errorf("derivation key must be 16 to 64 bytes, got %d", len(key)))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	if c.Kafka.Enabled {
		if len(c.GetKafkaBrokers()) == 0 {
			errs = append(errs, errors.New("kafka broker url is required when kafka is enabled"))
		}
		if c.Kafka.TransferInstructionsTopic == "" || c.Kafka.TransferEventsTopic == "" {
			errs = append(errs, errors.New("kafka topics are required when kafka is enabled"))
		}
		if c.Kafka.ConsumerGroup == "" {
			errs = append(errs, errors.New("kafka consumer group is required when kafka is enabled"))
		}
	}
	if c.Outbox.PollInterval <= 0 || c.Outbox.PollTimeout <= 0 {
		errs = append(errs, errors.New("outbox poll interval and timeout must be positive"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("outbox batch size %d must be positive", c.Outbox.BatchSize))
	}
	if c.Outbox.MaxAttempts < 0 || c.Outbox.BreakerFailures < 0 {
		errs = append(errs, errors.New("outbox attempt limits cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) DerivationKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(c.DerivationKey))
	if err != nil {
		return nil, fmt.Errorf("derivation key is not hex: %w", err)
	}
	return key, nil
}

func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.BrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnvOrDefault(key, strconv.FormatUint(defaultValue, 10))
	if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnvOrDefault(key, strconv.FormatBool(defaultValue))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
