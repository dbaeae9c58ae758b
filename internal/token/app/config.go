package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	MasterSecret []byte // Required: >= 32 bytes, all key material derives from it

	Issuer    string // Issuer claim stamped on tokens (default: tokenvault)
	Algorithm string // Signing algorithm (HS256, RS256, EdDSA) (default: EdDSA)
	RSABits   int    // RSA key size for RS256 (default: 2048)

	StoreDriver  string // Store driver (memory, sqlite) (default: sqlite)
	DatabaseFile string // SQLite database file (default: ./tokenvault.db)

	KeyGracePeriod      time.Duration // Verification grace for retired generations (default: RefreshTTL)
	AccessTTL           time.Duration // Default token TTL (default: 15m)
	RefreshTTL          time.Duration // Longest TTL issued, bounds retention windows (default: 720h)
	MaxCustomClaimBytes int           // Encoded custom+sensitive claim size limit (default: 4096)

	IPSalt []byte // Keys the fingerprint's client IP hash (default: random per process)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		MasterSecret: []byte(os.Getenv("TOKENVAULT_MASTER_SECRET")),

		Issuer:    getEnvOrDefault("TOKENVAULT_ISSUER", "tokenvault"),
		Algorithm: getEnvOrDefault("TOKENVAULT_ALGORITHM", "EdDSA"),

		StoreDriver:  getEnvOrDefault("TOKENVAULT_STORE", "sqlite"),
		DatabaseFile: getEnvOrDefault("TOKENVAULT_DATABASE_FILE", "tokenvault.db"),

		AccessTTL:           getEnvDurationOrDefault("TOKENVAULT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:          getEnvDurationOrDefault("TOKENVAULT_REFRESH_TTL", 30*24*time.Hour),
		MaxCustomClaimBytes: getEnvIntOrDefault("TOKENVAULT_MAX_CUSTOM_CLAIM_BYTES", 4096),

		IPSalt: []byte(os.Getenv("TOKENVAULT_IP_SALT")),

		Env:                  getEnvOrDefault("TOKENVAULT_ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("TOKENVAULT_HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// The grace window must cover the longest TTL issued, so it defaults to
	// the refresh TTL.
	cfg.KeyGracePeriod = getEnvDurationOrDefault("TOKENVAULT_KEY_GRACE_PERIOD", cfg.RefreshTTL)

	// Parse RSA bits (only relevant for RS256)
	if rsaBitsStr := os.Getenv("TOKENVAULT_RSA_BITS"); rsaBitsStr != "" {
		if bits, err := strconv.Atoi(rsaBitsStr); err == nil {
			cfg.RSABits = bits
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
