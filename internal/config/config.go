package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the binaries read from the environment.
type Config struct {
	ServerHost string
	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// RedisAddr enables the cross-instance bridge when non-empty.
	RedisAddr string

	// ArchiveEnabled toggles the hub's room-snapshot archive (and with it
	// the database requirement).
	ArchiveEnabled bool

	JaegerEndpoint string

	// Peer-side settings.
	HubURL         string
	StorePath      string
	SandboxURL     string
	ThrottleWindow time.Duration
	ShapeQuiet     time.Duration
}

// Load reads configuration from the environment, with .env support.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ServerHost: getEnv("SERVER_HOST", "localhost"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "pairpad"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		ArchiveEnabled: getEnvBool("ARCHIVE_ENABLED", false),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),

		HubURL:         getEnv("HUB_URL", "ws://localhost:8080"),
		StorePath:      getEnv("STORE_PATH", defaultStorePath()),
		SandboxURL:     getEnv("SANDBOX_URL", ""),
		ThrottleWindow: getEnvMillis("THROTTLE_WINDOW_MS", 75),
		ShapeQuiet:     getEnvMillis("SHAPE_QUIET_MS", 100),
	}

	return cfg, nil
}

// DatabaseURL renders the postgres DSN for the archive database.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// ListenAddr renders the hub's listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pairpad-sessions.db"
	}
	return home + "/.pairpad/sessions.db"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return time.Duration(defaultValue) * time.Millisecond
}
