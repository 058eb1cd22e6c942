package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the parking-facility binary reads from the
// environment.
type Config struct {
	Mode      string
	Facility  FacilityConfig
	Server    ServerConfig
	Logger    LoggerConfig
	Telemetry TelemetryConfig
	Payment   PaymentConfig
}

type FacilityConfig struct {
	Name         string
	Address      string
	Capacity     int
	MaxCapacity  int
	TicketPrefix string
}

type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level       string
	Development bool
}

type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	OTLPEndpoint   string
	ExportInterval time.Duration
}

type PaymentConfig struct {
	Decline bool
}

// Load reads a .env file when present and then the process environment.
// It does not validate: callers apply flag overrides first and then call
// Validate.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Mode: getEnv("PARKING_MODE", "cli"),
		Facility: FacilityConfig{
			Name:         getEnv("FACILITY_NAME", "Main Facility"),
			Address:      getEnv("FACILITY_ADDRESS", "Unknown address"),
			Capacity:     getIntEnv("FACILITY_CAPACITY", 20),
			MaxCapacity:  getIntEnv("FACILITY_MAX_CAPACITY", 10000),
			TicketPrefix: getEnv("TICKET_PREFIX", "TKT"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("ENVIRONMENT", "development") == "development",
		},
		Telemetry: TelemetryConfig{
			Enabled:        getBoolEnv("OTEL_ENABLED", true),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "parking-facility-service"),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			ExportInterval: getDurationEnv("OTEL_EXPORT_INTERVAL", 5*time.Second),
		},
		Payment: PaymentConfig{
			Decline: getBoolEnv("PAYMENT_DECLINE", false),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "cli", "server", "both":
	default:
		return fmt.Errorf("invalid mode %q: must be cli, server, or both", c.Mode)
	}
	if c.Facility.MaxCapacity <= 0 {
		return fmt.Errorf("facility max capacity must be positive, got %d", c.Facility.MaxCapacity)
	}
	if c.Facility.Capacity < 0 || c.Facility.Capacity > c.Facility.MaxCapacity {
		return fmt.Errorf("facility capacity must be in [0, %d], got %d", c.Facility.MaxCapacity, c.Facility.Capacity)
	}
	if strings.TrimSpace(c.Facility.TicketPrefix) == "" {
		return fmt.Errorf("ticket prefix cannot be empty")
	}
	return nil
}

func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
