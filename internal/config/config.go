package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	LoaderPython = "python"
	LoaderStatic = "static"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port     int
	Env      string
	LogLevel string

	// Database, optional. Run history is disabled without it.
	DatabaseURL string

	// GitHub, for fetching submissions from private repositories
	GitHubToken string

	// Grading
	Grading GradingConfig
}

// GradingConfig holds grading engine configuration
type GradingConfig struct {
	// Python interpreter used by the python loader
	Python string

	// Loader: python (executes the solution) or static (syntax tree only)
	Loader string

	// Upper bound for importing one solution
	LoadTimeout time.Duration

	// Bound every check by its case timeout
	EnforceTimeouts bool

	// Where --report writes report files
	ReportDir string

	// Scratch space for uploaded code and cloned repositories
	WorkDir string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		GitHubToken: getEnv("GITHUB_TOKEN", ""),

		Grading: GradingConfig{
			Python:          getEnv("QGRADE_PYTHON", "python3"),
			Loader:          getEnv("QGRADE_LOADER", LoaderPython),
			LoadTimeout:     getEnvDuration("QGRADE_LOAD_TIMEOUT", 30*time.Second),
			EnforceTimeouts: getEnvBool("QGRADE_ENFORCE_TIMEOUTS", false),
			ReportDir:       getEnv("QGRADE_REPORT_DIR", "."),
			WorkDir:         getEnv("QGRADE_WORK_DIR", filepath.Join(os.TempDir(), "qgrade")),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}

	switch c.Grading.Loader {
	case LoaderPython:
		if c.Grading.Python == "" {
			return fmt.Errorf("QGRADE_PYTHON required when using the python loader")
		}
	case LoaderStatic:
	default:
		return fmt.Errorf("unknown loader %q, want %s or %s", c.Grading.Loader, LoaderPython, LoaderStatic)
	}

	if c.Grading.LoadTimeout <= 0 {
		return fmt.Errorf("QGRADE_LOAD_TIMEOUT must be positive")
	}

	return nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts a Go duration ("45s") or whole seconds ("45")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := parseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func parseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}
