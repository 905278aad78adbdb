package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig represents a .qgrade.yaml file next to a solution
type ProjectConfig struct {
	Version string `yaml:"version"`

	// Default suite key; empty runs every suite
	Suite string `yaml:"suite,omitempty"`

	// Loader settings
	Loader          string `yaml:"loader,omitempty"`
	Python          string `yaml:"python,omitempty"`
	LoadTimeout     string `yaml:"load_timeout,omitempty"`
	EnforceTimeouts *bool  `yaml:"enforce_timeouts,omitempty"`

	// Report settings
	Report ReportConfig `yaml:"report,omitempty"`
}

// ReportConfig holds report output preferences
type ReportConfig struct {
	// Write the full report file on every run
	Save bool `yaml:"save,omitempty"`

	// Directory for report files
	Dir string `yaml:"dir,omitempty"`

	// Console format: text, table, json, yaml
	Format string `yaml:"format,omitempty"`
}

// DefaultProjectConfig returns sensible defaults
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Version: "1.0",
		Report: ReportConfig{
			Format: "text",
		},
	}
}

// LoadProjectConfig loads a .qgrade.yaml from the given directory
func LoadProjectConfig(dir string) (*ProjectConfig, error) {
	configPath := filepath.Join(dir, ".qgrade.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = filepath.Join(dir, ".qgrade.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(configPath), err)
	}

	return cfg, nil
}

// SaveProjectConfig saves the config to .qgrade.yaml
func SaveProjectConfig(dir string, cfg *ProjectConfig) error {
	configPath := filepath.Join(dir, ".qgrade.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *ProjectConfig) Merge(other *ProjectConfig) {
	if other == nil {
		return
	}

	if other.Suite != "" {
		c.Suite = other.Suite
	}

	if other.Loader != "" {
		c.Loader = other.Loader
	}

	if other.Python != "" {
		c.Python = other.Python
	}

	if other.LoadTimeout != "" {
		c.LoadTimeout = other.LoadTimeout
	}

	if other.EnforceTimeouts != nil {
		v := *other.EnforceTimeouts
		c.EnforceTimeouts = &v
	}

	if other.Report.Save {
		c.Report.Save = true
	}

	if other.Report.Dir != "" {
		c.Report.Dir = other.Report.Dir
	}

	if other.Report.Format != "" {
		c.Report.Format = other.Report.Format
	}
}

// Apply overrides environment configuration with the project file
func (c *ProjectConfig) Apply(cfg *Config) error {
	if c.Loader != "" {
		cfg.Grading.Loader = c.Loader
	}

	if c.Python != "" {
		cfg.Grading.Python = c.Python
	}

	if c.LoadTimeout != "" {
		d, err := parseDuration(c.LoadTimeout)
		if err != nil {
			return fmt.Errorf("invalid load_timeout %q: %w", c.LoadTimeout, err)
		}
		cfg.Grading.LoadTimeout = d
	}

	if c.EnforceTimeouts != nil {
		cfg.Grading.EnforceTimeouts = *c.EnforceTimeouts
	}

	if c.Report.Dir != "" {
		cfg.Grading.ReportDir = c.Report.Dir
	}

	return nil
}
