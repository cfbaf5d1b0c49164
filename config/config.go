package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	Environment string
	Port        string
	StoreDriver string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// Firebase Config
	FirebaseCredentials string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// SendGrid Config
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Geocoding
	NominatimURL       string
	NominatimUserAgent string
	GeocodeTimeout     time.Duration
	GeocodeCacheTTL    time.Duration

	// App Settings
	PushConcurrency       int
	TriggerRateLimit      int
	TriggerRateWindow     time.Duration
	LocationHistoryTTL    time.Duration
	LocationHistoryMax    int
	AllowAnonymousTrigger bool
	AllowedOrigins        []string
	SeedDemoData          bool
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverMongo),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/saathi"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),

		// Firebase
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		// Twilio
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		// SendGrid
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "alerts@saathi.app"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Saathi SOS"),

		// Geocoding
		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: getEnv("NOMINATIM_USER_AGENT", "saathi-sos/1.0"),
		GeocodeTimeout:     getEnvAsDuration("GEOCODE_TIMEOUT", 3*time.Second),
		GeocodeCacheTTL:    getEnvAsDuration("GEOCODE_CACHE_TTL", 24*time.Hour),

		// App Settings
		PushConcurrency:       getEnvAsInt("PUSH_CONCURRENCY", 16),
		TriggerRateLimit:      getEnvAsInt("TRIGGER_RATE_LIMIT", 3),
		TriggerRateWindow:     getEnvAsDuration("TRIGGER_RATE_WINDOW", time.Minute),
		LocationHistoryTTL:    getEnvAsDuration("LOCATION_HISTORY_TTL", 6*time.Hour),
		LocationHistoryMax:    getEnvAsInt("LOCATION_HISTORY_MAX", 500),
		AllowAnonymousTrigger: getEnvAsBool("ALLOW_ANONYMOUS_TRIGGER", true),
		AllowedOrigins:        getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		SeedDemoData:          getEnvAsBool("SEED_DEMO_DATA", false),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr: "localhost:6379",
			DB:   0,
		}
	}

	return redis.NewClient(opt)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
