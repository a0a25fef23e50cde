package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL        string
	Port               string
	GoEnv              string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	CORSAllowedOrigins []string
	LogLevel           string

	// PaymentStatusPolicy is "trust" (caller-asserted status is stored as-is)
	// or "strict" (asserted status must match amount_paid vs total_amount).
	PaymentStatusPolicy string

	// RealtimeBranchScoped lets realtime clients subscribe to one branch only.
	RealtimeBranchScoped bool

	TransactionCacheTTL    time.Duration
	ChangeFeedPollInterval time.Duration
	ChangeFeedRetention    time.Duration
	StoreHealthInterval    time.Duration
	// ChangeFeedCommitGrace bounds how long a write may take to commit after
	// its change record was inserted. The feed re-scans that window.
	ChangeFeedCommitGrace time.Duration
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		Port:                   getEnv("PORT", "8080"),
		GoEnv:                  getEnv("GO_ENV", "development"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		JWTIssuer:              getEnv("JWT_ISSUER", "solecare-api"),
		JWTAudience:            getEnv("JWT_AUDIENCE", "solecare-terminals"),
		AWSRegion:              getEnv("AWS_REGION", "ap-southeast-1"),
		AWSS3Bucket:            getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:         getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisPassword:          getEnv("REDIS_PASSWORD", ""),
		RedisDB:                getEnvInt("REDIS_DB", 0),
		TwilioAccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:       getEnv("TWILIO_PHONE_NUMBER", ""),
		CORSAllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		PaymentStatusPolicy:    getEnv("PAYMENT_STATUS_POLICY", "trust"),
		RealtimeBranchScoped:   getEnvBool("REALTIME_BRANCH_SCOPED", false),
		TransactionCacheTTL:    getEnvDuration("TRANSACTION_CACHE_TTL", 5*time.Minute),
		ChangeFeedPollInterval: getEnvDuration("CHANGE_FEED_POLL_INTERVAL", 500*time.Millisecond),
		ChangeFeedRetention:    getEnvDuration("CHANGE_FEED_RETENTION", 7*24*time.Hour),
		StoreHealthInterval:    getEnvDuration("STORE_HEALTH_INTERVAL", 5*time.Second),
		ChangeFeedCommitGrace:  getEnvDuration("CHANGE_FEED_COMMIT_GRACE", 10*time.Second),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.PaymentStatusPolicy {
	case "trust", "strict":
	default:
		return fmt.Errorf("PAYMENT_STATUS_POLICY must be one of trust, strict (got %q)", c.PaymentStatusPolicy)
	}
	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(cfg *Config) {
	appConfig = cfg
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// AuthEnabled reports whether JWT validation should guard the API
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// S3Enabled reports whether image uploads go to S3 instead of local disk
func (c *Config) S3Enabled() bool {
	return c.AWSS3Bucket != ""
}

// TwilioEnabled reports whether push notifications can be delivered
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
