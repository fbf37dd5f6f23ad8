package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	Payrail  ProviderConfig
	Mobicash ProviderConfig

	NotifySMTPHost string
	NotifySMTPPort int
	NotifySMTPUser string
	NotifySMTPPass string
	NotifyFrom     string
}

// ProviderConfig is the injected per-provider gateway configuration. Adapters
// receive it at construction; nothing reads provider credentials ambiently.
type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	MerchantID    string
	FeeBps        int64
	WebhookSecret string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "kolopay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kolopay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Payrail: ProviderConfig{
			BaseURL:       getenv("PAYRAIL_BASE_URL", "https://api.payrail.africa/v1"),
			APIKey:        strings.TrimSpace(getenv("PAYRAIL_API_KEY", "")),
			APISecret:     strings.TrimSpace(getenv("PAYRAIL_API_SECRET", "")),
			FeeBps:        getenvInt64("PAYRAIL_FEE_BPS", 180),
			WebhookSecret: strings.TrimSpace(getenv("PAYRAIL_WEBHOOK_SECRET", "")),
		},
		Mobicash: ProviderConfig{
			BaseURL:       getenv("MOBICASH_BASE_URL", "https://openapi.mobicash.sn"),
			APIKey:        strings.TrimSpace(getenv("MOBICASH_API_KEY", "")),
			MerchantID:    strings.TrimSpace(getenv("MOBICASH_MERCHANT_ID", "")),
			FeeBps:        getenvInt64("MOBICASH_FEE_BPS", 100),
			WebhookSecret: strings.TrimSpace(getenv("MOBICASH_WEBHOOK_SECRET", "")),
		},

		NotifySMTPHost: getenv("SMTP_HOST", ""),
		NotifySMTPPort: getenvInt("SMTP_PORT", 587),
		NotifySMTPUser: getenv("SMTP_USER", ""),
		NotifySMTPPass: getenv("SMTP_PASSWORD", ""),
		NotifyFrom:     getenv("SMTP_FROM", "no-reply@kolopay.africa"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
