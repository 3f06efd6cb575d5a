package config

import (
	"os"
	"strconv"
)

const (
	appNameVar   = "APP_NAME"
	logLevelVar  = "LOG_LEVEL"
	storePathVar = "SESSION_STORE"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Auth Session")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetStorePath() string {
	return GetEnv(storePathVar, "./data/session.db")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt64 returns defaultValue when the variable is unset or not an integer
func GetEnvInt64(envVar string, defaultValue int64) int64 {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}
