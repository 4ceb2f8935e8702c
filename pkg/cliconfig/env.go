package cliconfig

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names
const (
	EnvURL             = "GLRUNNER_URL"
	EnvTokenDir        = "GLRUNNER_TOKEN_DIR"
	EnvTimeout         = "GLRUNNER_TIMEOUT"
	EnvLogLevel        = "GLRUNNER_LOG_LEVEL"
	EnvLogFormat       = "GLRUNNER_LOG_FORMAT"
	EnvMetricsTextfile = "GLRUNNER_METRICS_TEXTFILE"
	EnvJSON            = "GLRUNNER_JSON"
	// EnvRegistrationToken is read by register commands when no flag is given.
	EnvRegistrationToken = "GLRUNNER_REGISTRATION_TOKEN"
)

// LoadEnvConfig loads configuration from environment variables.
// It only sets values that are present in the environment.
func LoadEnvConfig(cfg *CLIConfig) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	if v := os.Getenv(EnvURL); v != "" {
		cfg.URL = v
		cfg.Sources["url"] = SourceEnv
	}

	if v := os.Getenv(EnvTokenDir); v != "" {
		cfg.TokenDir = v
		cfg.Sources["tokenDir"] = SourceEnv
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			cfg.Timeout = timeout
			cfg.Sources["timeout"] = SourceEnv
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
		cfg.Sources["logLevel"] = SourceEnv
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
		cfg.Sources["logFormat"] = SourceEnv
	}

	if v := os.Getenv(EnvMetricsTextfile); v != "" {
		cfg.MetricsTextfile = v
		cfg.Sources["metricsTextfile"] = SourceEnv
	}

	if v := os.Getenv(EnvJSON); v != "" {
		cfg.JSON = parseBool(v)
		cfg.Sources["json"] = SourceEnv
	}
}

// GetRegistrationTokenFromEnv returns the registration token from the
// environment, or an empty string.
func GetRegistrationTokenFromEnv() string {
	return os.Getenv(EnvRegistrationToken)
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}
