package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config lists the tunable parameters for the tracker processes.
type Config struct {
	HTTPPort      int
	DatabasePath  string
	BrokerAddress string
	JWTSecret     string
	LogLevel      string

	// StrictHikerID enforces the pendaki_<digits> identifier pattern on
	// inbound topics instead of accepting any non-empty segment.
	StrictHikerID bool

	// EnableMDNS advertises the dashboard on the local network.
	EnableMDNS bool

	// AdminUser/AdminPassword seed the first rescuer account when the
	// accounts table is empty.
	AdminUser     string
	AdminPassword string
}

const (
	defaultHTTPPort      = 8080
	defaultDatabasePath  = "data/summit_safeguard.db"
	defaultBrokerAddress = "tcp://localhost:1883"
	defaultLogLevel      = "info"
)

// Load derives configuration values from environment variables, falling back
// to defaults. A .env file in the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:      defaultHTTPPort,
		DatabasePath:  defaultDatabasePath,
		BrokerAddress: defaultBrokerAddress,
		LogLevel:      defaultLogLevel,
	}

	if v := os.Getenv("TRACKER_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRACKER_HTTP_PORT: %w", err)
		}
		cfg.HTTPPort = port
	}

	if v := os.Getenv("TRACKER_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if v := os.Getenv("TRACKER_MQTT_BROKER"); v != "" {
		cfg.BrokerAddress = v
	}

	if v := os.Getenv("TRACKER_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}

	if v := os.Getenv("TRACKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("TRACKER_STRICT_HIKER_ID"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRACKER_STRICT_HIKER_ID: %w", err)
		}
		cfg.StrictHikerID = strict
	}

	if v := os.Getenv("TRACKER_MDNS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TRACKER_MDNS: %w", err)
		}
		cfg.EnableMDNS = enabled
	}

	cfg.AdminUser = os.Getenv("TRACKER_ADMIN_USER")
	cfg.AdminPassword = os.Getenv("TRACKER_ADMIN_PASSWORD")

	return cfg, nil
}
