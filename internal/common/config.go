package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all client configuration
type Config struct {
	API    APIConfig
	Poll   PollConfig
	Issues IssuesConfig
}

// APIConfig holds backend connection configuration
type APIConfig struct {
	BaseURL       string
	HealthTimeout time.Duration
}

// PollConfig holds job polling configuration
type PollConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
	SubmitDelay  time.Duration
}

// IssuesConfig holds issue pagination configuration
type IssuesConfig struct {
	PageSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       getEnv("BIMAUDIT_API_URL", "http://localhost:8000"),
			HealthTimeout: getEnvAsDuration("BIMAUDIT_HEALTH_TIMEOUT", 3*time.Second),
		},
		Poll: PollConfig{
			Interval:     getEnvAsDuration("BIMAUDIT_POLL_INTERVAL", 1*time.Second),
			InitialDelay: getEnvAsDuration("BIMAUDIT_POLL_INITIAL_DELAY", 500*time.Millisecond),
			SubmitDelay:  getEnvAsDuration("BIMAUDIT_POLL_SUBMIT_DELAY", 1500*time.Millisecond),
		},
		Issues: IssuesConfig{
			PageSize: getEnvAsInt("BIMAUDIT_ISSUES_PAGE_SIZE", 50),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "BIMAUDIT_API_URL is required", ErrInvalidInput)
	}
	// The server caps page_size at 200.
	if c.Issues.PageSize < 1 || c.Issues.PageSize > 200 {
		return NewAppError("CONFIG_ERROR", "BIMAUDIT_ISSUES_PAGE_SIZE must be between 1 and 200", ErrInvalidInput)
	}
	if c.Poll.Interval <= 0 {
		return NewAppError("CONFIG_ERROR", "BIMAUDIT_POLL_INTERVAL must be positive", ErrInvalidInput)
	}
	return nil
}
