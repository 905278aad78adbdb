package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envVars = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "GITHUB_TOKEN",
	"QGRADE_PYTHON", "QGRADE_LOADER", "QGRADE_LOAD_TIMEOUT",
	"QGRADE_ENFORCE_TIMEOUTS", "QGRADE_REPORT_DIR", "QGRADE_WORK_DIR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %s, want development", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %s, want empty", cfg.DatabaseURL)
	}
	if cfg.GitHubToken != "" {
		t.Errorf("GitHubToken = %s, want empty", cfg.GitHubToken)
	}
}

func TestLoad_GradingDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	g := cfg.Grading
	if g.Python != "python3" {
		t.Errorf("Grading.Python = %s, want python3", g.Python)
	}
	if g.Loader != LoaderPython {
		t.Errorf("Grading.Loader = %s, want python", g.Loader)
	}
	if g.LoadTimeout != 30*time.Second {
		t.Errorf("Grading.LoadTimeout = %v, want 30s", g.LoadTimeout)
	}
	if g.EnforceTimeouts {
		t.Error("Grading.EnforceTimeouts should default to false")
	}
	if g.ReportDir != "." {
		t.Errorf("Grading.ReportDir = %s, want .", g.ReportDir)
	}
	if g.WorkDir != filepath.Join(os.TempDir(), "qgrade") {
		t.Errorf("Grading.WorkDir = %s, want temp dir", g.WorkDir)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/grades")
	t.Setenv("GITHUB_TOKEN", "ghp_test_token")
	t.Setenv("QGRADE_PYTHON", "/usr/bin/python3.12")
	t.Setenv("QGRADE_LOADER", "static")
	t.Setenv("QGRADE_LOAD_TIMEOUT", "45")
	t.Setenv("QGRADE_ENFORCE_TIMEOUTS", "true")
	t.Setenv("QGRADE_REPORT_DIR", "/var/reports")
	t.Setenv("QGRADE_WORK_DIR", "/var/qgrade")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "postgres://user:pass@db:5432/grades" {
		t.Errorf("DatabaseURL = %s", cfg.DatabaseURL)
	}
	if cfg.GitHubToken != "ghp_test_token" {
		t.Errorf("GitHubToken = %s", cfg.GitHubToken)
	}
	if cfg.Grading.Python != "/usr/bin/python3.12" {
		t.Errorf("Grading.Python = %s", cfg.Grading.Python)
	}
	if cfg.Grading.Loader != LoaderStatic {
		t.Errorf("Grading.Loader = %s, want static", cfg.Grading.Loader)
	}
	if cfg.Grading.LoadTimeout != 45*time.Second {
		t.Errorf("Grading.LoadTimeout = %v, want 45s", cfg.Grading.LoadTimeout)
	}
	if !cfg.Grading.EnforceTimeouts {
		t.Error("Grading.EnforceTimeouts = false, want true")
	}
	if cfg.Grading.ReportDir != "/var/reports" {
		t.Errorf("Grading.ReportDir = %s", cfg.Grading.ReportDir)
	}
	if cfg.Grading.WorkDir != "/var/qgrade" {
		t.Errorf("Grading.WorkDir = %s", cfg.Grading.WorkDir)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("QGRADE_LOAD_TIMEOUT", "soon")
	t.Setenv("QGRADE_ENFORCE_TIMEOUTS", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Port)
	}
	if cfg.Grading.LoadTimeout != 30*time.Second {
		t.Errorf("Grading.LoadTimeout = %v, want default 30s", cfg.Grading.LoadTimeout)
	}
	if cfg.Grading.EnforceTimeouts {
		t.Error("Grading.EnforceTimeouts should fall back to false")
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"10", 10 * time.Second},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"garbage", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("QGRADE_TEST_DURATION", tt.value)
			if got := getEnvDuration("QGRADE_TEST_DURATION", 5*time.Second); got != tt.want {
				t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080,
			Grading: GradingConfig{
				Python:      "python3",
				Loader:      LoaderPython,
				LoadTimeout: time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid python", func(c *Config) {}, false},
		{"valid static without interpreter", func(c *Config) {
			c.Grading.Loader = LoaderStatic
			c.Grading.Python = ""
		}, false},
		{"python loader without interpreter", func(c *Config) { c.Grading.Python = "" }, true},
		{"unknown loader", func(c *Config) { c.Grading.Loader = "docker" }, true},
		{"zero timeout", func(c *Config) { c.Grading.LoadTimeout = 0 }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
