package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=accessbus port=5432 sslmode=disable TimeZone=Europe/London"

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const (
	TIME_PARSE_FORMAT        = "2006-01-02 15:04:05 -07:00"
	DEFAULT_PORT             = "9090"
	DEFAULT_STOPS_LIMIT      = 5
	AVERAGE_BUS_SPEED_KMH    = 21.0
	MIN_PASSWORD_LENGTH      = 16
	MAX_UPLOAD_SIZE          = 10 << 20
	DEFAULT_ACCESS_TOKEN_TTL = time.Hour
	DEFAULT_REFRESH_TTL      = 30 * 24 * time.Hour
	DEFAULT_RESERVATION_TTL  = 4 * time.Hour
	DEFAULT_SWEEP_INTERVAL   = 5 * time.Minute
)

func ApiEnv() string {
	env := os.Getenv("API_ENV")
	if env == "" {
		return "local"
	}
	return env
}

func Port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return DEFAULT_PORT
}

func AccessTokenTTL() time.Duration {
	return durationFromEnv("ACCESS_TOKEN_TTL", DEFAULT_ACCESS_TOKEN_TTL)
}

func RefreshTokenTTL() time.Duration {
	return durationFromEnv("REFRESH_TOKEN_TTL", DEFAULT_REFRESH_TTL)
}

func ReservationTTL() time.Duration {
	return durationFromEnv("RESERVATION_TTL", DEFAULT_RESERVATION_TTL)
}

func SweepInterval() time.Duration {
	return durationFromEnv("SWEEP_INTERVAL", DEFAULT_SWEEP_INTERVAL)
}

func MaintenanceMode() bool {
	v, err := strconv.ParseBool(os.Getenv("MAINTENANCE_MODE"))
	return err == nil && v
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
