package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis (run lock)
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka (report events)
	KafkaBrokers     []string
	KafkaReportTopic string

	// Migration defaults
	TenantID     int64
	BatchSize    int
	RunLockTTL   time.Duration
	ReportDir    string
	MinBirthDate time.Time
	MaxBirthDate time.Time
}

func Load() *Config {
	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "gorgen"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "gorgen"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaReportTopic: getEnv("KAFKA_REPORT_TOPIC", "migration-reports"),

		TenantID:     int64(getIntEnv("MIGRATION_TENANT_ID", 1)),
		BatchSize:    getIntEnv("MIGRATION_BATCH_SIZE", 500),
		RunLockTTL:   getDuration("MIGRATION_RUN_LOCK_TTL", 2*time.Hour),
		ReportDir:    getEnv("MIGRATION_REPORT_DIR", "."),
		MinBirthDate: getDate("MIGRATION_MIN_BIRTH_DATE", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)),
		MaxBirthDate: getDate("MIGRATION_MAX_BIRTH_DATE", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)),
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDate(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.Parse("2006-01-02", value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
