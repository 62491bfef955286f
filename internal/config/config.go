package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Host string
	Env  string

	// BaseURL is the externally visible URL of this instance, used when
	// constructing share-link download URLs.
	BaseURL string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBPath     string

	// Storage configuration
	StorageBackend string // "disk", "memory", "s3"
	StoragePath    string // For disk backend
	S3Endpoint     string // Custom endpoint for S3-compatible services
	S3Region       string
	S3Bucket       string // S3 bucket name (required for s3 backend)
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool // Path-style addressing (required for MinIO/rustfs)

	DefaultUserQuota int64
	MaxUploadSize    int64

	SessionSecret   string
	SessionDuration string
	BcryptCost      int
	CSRFEnabled     bool

	EnableRegistration bool

	// OTP login configuration
	OTPTTL         time.Duration // Challenge lifetime
	OTPDebugEcho   bool          // Echo the code in the request_otp response (demo/test only)
	BearerTokenTTL time.Duration // Lifetime of tokens issued on OTP verification

	// Share link configuration
	ShareDefaultTTLMin int // Default expiry in minutes when the caller gives none

	// Trash configuration
	TrashRetentionDays    int // Days a trashed document survives before the sweep purges it
	TrashSweepIntervalMin int // Minutes between purge sweep runs
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		Host:                  getEnv("HOST", "0.0.0.0"),
		Env:                   getEnv("ENV", "development"),
		BaseURL:               getEnv("BASE_URL", "http://localhost:8080"),
		DBType:                getEnv("DB_TYPE", "sqlite"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBName:                getEnv("DB_NAME", "docvault"),
		DBUser:                getEnv("DB_USER", "docvault"),
		DBPassword:            getEnv("DB_PASSWORD", ""),
		DBPath:                getEnv("DB_PATH", "./data/docvault.db"),
		StorageBackend:        getEnv("STORAGE_BACKEND", "disk"),
		StoragePath:           getEnv("STORAGE_PATH", "./data/files"),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Region:              getEnv("S3_REGION", "us-east-1"),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3AccessKey:           getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:           getEnv("S3_SECRET_KEY", ""),
		S3UsePathStyle:        getEnvBool("S3_USE_PATH_STYLE", false),
		DefaultUserQuota:      getEnvSize("DEFAULT_USER_QUOTA", "10G"),
		MaxUploadSize:         getEnvSize("MAX_UPLOAD_SIZE", "500M"),
		SessionSecret:         getEnv("SESSION_SECRET", "change_me_in_production"),
		SessionDuration:       getEnv("SESSION_DURATION", "168h"),
		BcryptCost:            getEnvInt("BCRYPT_COST", 10),
		CSRFEnabled:           getEnvBool("CSRF_ENABLED", true),
		EnableRegistration:    getEnvBool("ENABLE_REGISTRATION", true),
		OTPTTL:                getEnvDuration("OTP_TTL", "5m"),
		OTPDebugEcho:          getEnvBool("OTP_DEBUG_RESPONSE", false),
		BearerTokenTTL:        getEnvDuration("BEARER_TOKEN_TTL", "720h"),
		ShareDefaultTTLMin:    getEnvInt("SHARE_DEFAULT_TTL_MIN", 60),
		TrashRetentionDays:    getEnvInt("TRASH_RETENTION_DAYS", 30),
		TrashSweepIntervalMin: getEnvInt("TRASH_SWEEP_INTERVAL_MIN", 60),
	}

	if cfg.TrashRetentionDays < 0 {
		cfg.TrashRetentionDays = 0
	}
	if cfg.TrashSweepIntervalMin < 1 {
		cfg.TrashSweepIntervalMin = 1 // Minimum 1 minute
	}
	if cfg.ShareDefaultTTLMin < 1 {
		cfg.ShareDefaultTTLMin = 60
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// parseSize converts human-readable sizes (e.g., "10G", "500M", "1K") to bytes.
// Supports B, K/KB, M/MB, G/GB, T/TB (case-insensitive).
func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))

	// A bare number is taken as bytes
	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return val, nil
	}

	var multiplier int64 = 1
	var numStr string

	if strings.HasSuffix(sizeStr, "TB") || strings.HasSuffix(sizeStr, "T") {
		multiplier = 1024 * 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "TB"), "T")
	} else if strings.HasSuffix(sizeStr, "GB") || strings.HasSuffix(sizeStr, "G") {
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "GB"), "G")
	} else if strings.HasSuffix(sizeStr, "MB") || strings.HasSuffix(sizeStr, "M") {
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "MB"), "M")
	} else if strings.HasSuffix(sizeStr, "KB") || strings.HasSuffix(sizeStr, "K") {
		multiplier = 1024
		numStr = strings.TrimSuffix(strings.TrimSuffix(sizeStr, "KB"), "K")
	} else if strings.HasSuffix(sizeStr, "B") {
		multiplier = 1
		numStr = strings.TrimSuffix(sizeStr, "B")
	} else {
		return 0, fmt.Errorf("invalid size format: %s (use B, K/KB, M/MB, G/GB, T/TB)", sizeStr)
	}

	// Numeric part supports decimals like "1.5G"
	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %s", sizeStr)
	}

	return int64(val * float64(multiplier)), nil
}

// getEnvSize parses size strings like "10G", "500M" or raw bytes
func getEnvSize(key string, defaultValue string) int64 {
	value := getEnv(key, defaultValue)
	size, err := parseSize(value)
	if err != nil {
		if defaultSize, defaultErr := parseSize(defaultValue); defaultErr == nil {
			return defaultSize
		}
		return 0
	}
	return size
}

// getEnvDuration parses duration strings like "24h", "30m"
func getEnvDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		if defaultDuration, defaultErr := time.ParseDuration(defaultValue); defaultErr == nil {
			return defaultDuration
		}
		return 24 * time.Hour
	}
	return duration
}
