package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Port                  string
	AllowedOrigins        []string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogLevel              string
	LogFormat             string
	Locale                string
	TimeZone              string
	SummaryTTLSeconds     int
	LowStockThreshold     int
	EventsChannel         string
	MetricsNamespace      string
}

// Load reads configuration from the environment and an optional .env file.
// Secrets are never defaulted.
func Load() (Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Config{
		Port:                  valueOrDefault(k.String("PORT"), "8080"),
		AllowedOrigins:        splitAndTrim(valueOrDefault(k.String("ALLOWED_ORIGIN"), "http://127.0.0.1:3000")),
		DatabaseURL:           strings.TrimSpace(k.String("DATABASE_URL")),
		RedisAddr:             strings.TrimSpace(k.String("REDIS_ADDR")),
		RedisPassword:         k.String("REDIS_PASSWORD"),
		RedisDB:               intOrDefault(k.String("REDIS_DB"), 0, 0),
		AuthSecret:            strings.TrimSpace(k.String("AUTH_SECRET")),
		AccessTokenTTLMinutes: intOrDefault(k.String("ACCESS_TOKEN_TTL_MINUTES"), 480, 1),
		LogLevel:              valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:             valueOrDefault(k.String("LOG_FORMAT"), "json"),
		Locale:                valueOrDefault(k.String("LOCALE"), "id"),
		TimeZone:              valueOrDefault(k.String("TZ_LOCATION"), "Asia/Jakarta"),
		SummaryTTLSeconds:     intOrDefault(k.String("SUMMARY_TTL_SECONDS"), 30, 1),
		LowStockThreshold:     intOrDefault(k.String("LOW_STOCK_THRESHOLD"), 5, 1),
		EventsChannel:         valueOrDefault(k.String("EVENTS_CHANNEL"), "kasir:events"),
		MetricsNamespace:      valueOrDefault(k.String("METRICS_NAMESPACE"), "kasir"),
	}
	return cfg, nil
}

func (c Config) Address() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	return fmt.Sprintf(":%s", port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) SummaryTTL() time.Duration {
	return time.Duration(c.SummaryTTLSeconds) * time.Second
}

// Location resolves TimeZone, falling back to UTC when the zone database
// does not know it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func intOrDefault(value string, fallback int, min int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < min {
		return fallback
	}
	return n
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
