package config

import (
	"os"
	"strconv"
	"time"
)

// TrackerConfig holds the tunables of the polling and notification loops.
type TrackerConfig struct {
	PollDelay              time.Duration // pause between successful polls
	PollBackoff            time.Duration // pause after a transport failure
	PollTimeoutSeconds     int           // Telegram long-poll timeout
	DefaultIntervalMinutes int           // reminder cadence for sessions started via chat
}

func LoadTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		PollDelay:              getEnvAsDuration("POLL_DELAY", 1500*time.Millisecond),
		PollBackoff:            getEnvAsDuration("POLL_BACKOFF", 5*time.Second),
		PollTimeoutSeconds:     getEnvAsInt("POLL_TIMEOUT_SECONDS", 20),
		DefaultIntervalMinutes: getEnvAsInt("DEFAULT_INTERVAL_MINUTES", 5),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
