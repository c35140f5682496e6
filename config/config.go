// Package config captures every knob shared across the transmute CLI, TUI,
// and server entry points.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a lightweight struct so it is trivial to reuse in tests or
// headless workflows.
type Config struct {
	Workspace      string        `yaml:"workspace"`
	PatternDBPath  string        `yaml:"pattern_db_path"`
	SessionDir     string        `yaml:"session_dir"`
	TelemetryPath  string        `yaml:"telemetry_path"`
	ConfigPath     string        `yaml:"-"`
	SourceLanguage string        `yaml:"source_language"`
	TargetLanguage string        `yaml:"target_language"`
	ServerAddr     string        `yaml:"server_addr"`
	MaxSuggestions int           `yaml:"max_suggestions"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default infers sensible defaults based on the current working directory.
// Errors from os.Getwd are ignored so callers can override manually.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Workspace:      cwd,
		PatternDBPath:  filepath.Join(cwd, ".transmute", "patterns.db"),
		SessionDir:     filepath.Join(cwd, ".transmute", "sessions"),
		TelemetryPath:  filepath.Join(cwd, ".transmute", "telemetry.jsonl"),
		ConfigPath:     filepath.Join(cwd, ".transmute", "config.yaml"),
		SourceLanguage: "asp",
		TargetLanguage: "go",
		ServerAddr:     ":8080",
		MaxSuggestions: 5,
		RequestTimeout: 30 * time.Second,
	}
}

// Normalize ensures every filesystem path is absolute and fills missing
// defaults so startup never has to re-check the same invariants.
func (c *Config) Normalize() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace path required")
	}
	absWorkspace, err := filepath.Abs(c.Workspace)
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}
	c.Workspace = absWorkspace
	if c.PatternDBPath == "" {
		c.PatternDBPath = filepath.Join(c.Workspace, ".transmute", "patterns.db")
	}
	if !filepath.IsAbs(c.PatternDBPath) {
		c.PatternDBPath = filepath.Join(c.Workspace, c.PatternDBPath)
	}
	if c.SessionDir == "" {
		c.SessionDir = filepath.Join(c.Workspace, ".transmute", "sessions")
	}
	if !filepath.IsAbs(c.SessionDir) {
		c.SessionDir = filepath.Join(c.Workspace, c.SessionDir)
	}
	if c.TelemetryPath == "" {
		c.TelemetryPath = filepath.Join(c.Workspace, ".transmute", "telemetry.jsonl")
	}
	if !filepath.IsAbs(c.TelemetryPath) {
		c.TelemetryPath = filepath.Join(c.Workspace, c.TelemetryPath)
	}
	if c.ConfigPath == "" {
		c.ConfigPath = filepath.Join(c.Workspace, ".transmute", "config.yaml")
	}
	if !filepath.IsAbs(c.ConfigPath) {
		c.ConfigPath = filepath.Join(c.Workspace, c.ConfigPath)
	}
	if c.SourceLanguage == "" {
		c.SourceLanguage = "asp"
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = "go"
	}
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = 5
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return nil
}

// Load reads a workspace configuration from disk and overlays it on the
// defaults. A missing file is not an error; the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = cfg.ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ConfigPath = path
	return cfg, nil
}

// Save persists the configuration for future runs.
func Save(path string, cfg Config) error {
	if path == "" {
		return fmt.Errorf("config path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
