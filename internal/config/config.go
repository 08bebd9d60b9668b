package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration, read from the environment.
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	// Recalculation window padding around newly imported data, in days.
	LookbackDays  int
	LookaheadDays int

	// How often the geocoding sweep retries unresolved places.
	GeocodeSweepInterval time.Duration
}

// Load reads the configuration, falling back to development defaults.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/timeline.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	return &Config{
		Port:                 port,
		DBPath:               dbPath,
		JWTSecret:            jwtSecret,
		LookbackDays:         envInt("RECALC_LOOKBACK_DAYS", 1),
		LookaheadDays:        envInt("RECALC_LOOKAHEAD_DAYS", 1),
		GeocodeSweepInterval: envDuration("GEOCODE_SWEEP_INTERVAL", 10*time.Minute),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
