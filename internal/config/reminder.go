package config

import (
	"os"
	"time"
)

type ReminderConfig struct {
	Window       time.Duration
	ScanInterval time.Duration
	LockTTL      time.Duration
}

func LoadReminderConfig() *ReminderConfig {
	return &ReminderConfig{
		Window:       getEnvAsDuration("REMINDER_WINDOW", 24*time.Hour),
		ScanInterval: getEnvAsDuration("REMINDER_SCAN_INTERVAL", 1*time.Hour),
		LockTTL:      getEnvAsDuration("REMINDER_LOCK_TTL", 5*time.Minute),
	}
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
