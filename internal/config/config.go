package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Dispatch  DispatchConfig
	Cancel    CancelPolicyConfig
	MatchData MatchDataConfig
	Map       MapConfig
	LogLevel  string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DispatchConfig holds ETA estimation and refresh tuning.
type DispatchConfig struct {
	// AvgSpeedKmh is the assumed buggy cruising speed on resort paths.
	AvgSpeedKmh float64
	// BufferMinutes is added to every estimate for boarding time.
	BufferMinutes int
	// MinETAMinutes / MaxETAMinutes clamp the estimate.
	MinETAMinutes int
	MaxETAMinutes int
	// RefreshInterval is how often live ETAs are recomputed for
	// ASSIGNED/ARRIVING rides.
	RefreshInterval time.Duration
}

// CancelPolicyConfig holds the elapsed-time rules gating cancellation.
type CancelPolicyConfig struct {
	// AssignedGrace is how long after assignment a ride stays
	// uncancellable, protecting drivers already en route.
	AssignedGrace time.Duration
	// SearchWarnAfter escalates the waiting warning for SEARCHING rides.
	SearchWarnAfter time.Duration
	// AssignedUrgentAfter escalates to an urgent warning for
	// ASSIGNED/ARRIVING rides.
	AssignedUrgentAfter time.Duration
}

// MapConfig is the bounding box of the resort map image, used to
// project driver positions onto the guest-facing map.
type MapConfig struct {
	North float64
	South float64
	East  float64
	West  float64
}

// MatchDataConfig points at the externally configurable smart-match
// data (synonyms, category keywords, room mappings). Empty path means
// built-in defaults.
type MatchDataConfig struct {
	Path string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "buggy_dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "buggy-dispatch-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Dispatch: DispatchConfig{
			AvgSpeedKmh:     getFloatEnv("DISPATCH_AVG_SPEED_KMH", 12.0),
			BufferMinutes:   getIntEnv("DISPATCH_ETA_BUFFER_MIN", 2),
			MinETAMinutes:   getIntEnv("DISPATCH_ETA_MIN", 3),
			MaxETAMinutes:   getIntEnv("DISPATCH_ETA_MAX", 20),
			RefreshInterval: getDurationEnv("DISPATCH_ETA_REFRESH_INTERVAL", 30*time.Second),
		},
		Cancel: CancelPolicyConfig{
			AssignedGrace:       getDurationEnv("CANCEL_ASSIGNED_GRACE", 5*time.Minute),
			SearchWarnAfter:     getDurationEnv("CANCEL_SEARCH_WARN_AFTER", 10*time.Minute),
			AssignedUrgentAfter: getDurationEnv("CANCEL_ASSIGNED_URGENT_AFTER", 15*time.Minute),
		},
		Map: MapConfig{
			North: getFloatEnv("MAP_BOUND_NORTH", 10.33),
			South: getFloatEnv("MAP_BOUND_SOUTH", 10.27),
			East:  getFloatEnv("MAP_BOUND_EAST", 103.90),
			West:  getFloatEnv("MAP_BOUND_WEST", 103.82),
		},
		MatchData: MatchDataConfig{
			Path: getEnv("MATCH_DATA_PATH", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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
