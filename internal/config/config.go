package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StoreModeFile     = "file"
	StoreModePostgres = "postgres"
	StoreModeDynamo   = "dynamo"
)

type Config struct {
	Port               string
	AdminSecret        string
	StoreMode          string
	DataDir            string
	DatabaseURL        string
	DynamoMode         string
	DynamoEndpoint     string
	DynamoRegion       string
	DynamoTable        string
	GeneralHistorySize int
	MenHistorySize     int
	WomenHistorySize   int
	StatsLocation      *time.Location
	AllowedOrigins     []string
	LogLevel           string
	LogFormat          string
	RateLimitPerMinute int
	RateLimitBurst     int
	StaticDir          string
	ServiceName        string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AdminSecret:    os.Getenv("ADMIN_SECRET"),
		StoreMode:      strings.ToLower(getEnv("STORE_MODE", StoreModeFile)),
		DataDir:        getEnv("DATA_DIR", "data"),
		DatabaseURL:    os.Getenv("DB_DSN"),
		DynamoMode:     strings.ToLower(getEnv("DYNAMO_MODE", "local")),
		DynamoEndpoint: getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		DynamoRegion:   getEnv("DYNAMO_REGION", "eu-central-1"),
		DynamoTable:    getEnv("DYNAMO_TABLE", "callboard-documents"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "console")),
		StaticDir:      os.Getenv("STATIC_DIR"),
		ServiceName:    getEnv("SERVICE_NAME", "callboard-service"),
	}

	var err error
	if cfg.GeneralHistorySize, err = readInt("GENERAL_HISTORY_SIZE", 15); err != nil {
		return nil, err
	}
	if cfg.MenHistorySize, err = readInt("MEN_HISTORY_SIZE", 15); err != nil {
		return nil, err
	}
	if cfg.WomenHistorySize, err = readInt("WOMEN_HISTORY_SIZE", 15); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = readInt("RATE_LIMIT_PER_MIN", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = readInt("RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}

	for key, size := range map[string]int{
		"GENERAL_HISTORY_SIZE": cfg.GeneralHistorySize,
		"MEN_HISTORY_SIZE":     cfg.MenHistorySize,
		"WOMEN_HISTORY_SIZE":   cfg.WomenHistorySize,
	} {
		if size <= 0 {
			return nil, fmt.Errorf("invalid %s: must be greater than 0", key)
		}
	}

	tz := getEnv("STATS_TIMEZONE", "UTC")
	cfg.StatsLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE: %w", err)
	}

	switch cfg.StoreMode {
	case StoreModeFile, StoreModePostgres, StoreModeDynamo:
	default:
		return nil, fmt.Errorf("invalid STORE_MODE %q: want file, postgres or dynamo", cfg.StoreMode)
	}
	if cfg.StoreMode == StoreModePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DB_DSN is required when STORE_MODE=postgres")
	}
	if cfg.DynamoMode != "local" && cfg.DynamoMode != "aws" {
		return nil, fmt.Errorf("invalid DYNAMO_MODE %q: want local or aws", cfg.DynamoMode)
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func readInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
