package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"gamewarden/internal/domain"
	"gamewarden/internal/rcon"
	"gamewarden/internal/runner"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigName   = "config.json"
	defaultDatabaseFile = "gamewarden.db"
	defaultLogFile      = "gamewarden.log"
	defaultPort         = 23008
	defaultEventHistory = 100
	defaultHistoryKeep  = 200
)

type Config struct {
	Port         int    `json:"port" yaml:"port"`
	DatabasePath string `json:"database_path" yaml:"database_path"`
	Dev          bool   `json:"dev" yaml:"dev"`

	// HistoryKeep caps stored operations per server; EventHistory is how
	// many events a late websocket subscriber gets replayed.
	HistoryKeep  int `json:"history_keep" yaml:"history_keep"`
	EventHistory int `json:"event_history" yaml:"event_history"`

	Log      LogConfig              `json:"log" yaml:"log"`
	Cloud    CloudConfig            `json:"cloud" yaml:"cloud"`
	RCON     RCONConfig             `json:"rcon" yaml:"rcon"`
	Shutdown ShutdownConfig         `json:"shutdown" yaml:"shutdown"`
	Servers  []domain.ServerProfile `json:"servers" yaml:"servers"`

	path string
}

type LogConfig struct {
	File       string `json:"file" yaml:"file"`
	Level      string `json:"level" yaml:"level"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

type CloudConfig struct {
	Cluster string `json:"cluster" yaml:"cluster"`
	Service string `json:"service" yaml:"service"`
}

type RCONConfig struct {
	Password       string `json:"password" yaml:"password"`
	Port           int    `json:"port" yaml:"port"`
	ConnectTimeout string `json:"connect_timeout" yaml:"connect_timeout"`
	CommandTimeout string `json:"command_timeout" yaml:"command_timeout"`
}

type ShutdownConfig struct {
	SaveSettle       string `json:"save_settle" yaml:"save_settle"`
	ShutdownSettle   string `json:"shutdown_settle" yaml:"shutdown_settle"`
	GracePeriod      string `json:"grace_period" yaml:"grace_period"`
	Message          string `json:"message" yaml:"message"`
	OperationTimeout string `json:"operation_timeout" yaml:"operation_timeout"`
	CleanupTimeout   string `json:"cleanup_timeout" yaml:"cleanup_timeout"`
}

// LoadConfig reads config.json from configDir, writing a default one first if
// none exists. GAMEWARDEN_CONFIG may point at another file; a .yaml or .yml
// extension switches the codec.
func LoadConfig(configDir string) (*Config, error) {
	configPath := os.Getenv("GAMEWARDEN_CONFIG")
	if configPath == "" {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, err
		}
		configPath = filepath.Join(configDir, defaultConfigName)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := writeDefaultConfig(configPath, configDir); err != nil {
				return nil, err
			}
		}
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(configDir, defaultDatabaseFile)
	}
	return cfg, nil
}

// LoadFile reads one config file, applies environment overrides and
// validates the result.
func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) Path() string { return c.path }

func (c *Config) applyEnv() error {
	if v := os.Getenv("RCON_PASSWORD"); v != "" {
		c.RCON.Password = v
	}
	if v := os.Getenv("CLUSTER_NAME"); v != "" {
		c.Cloud.Cluster = v
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		c.Cloud.Service = v
	}
	if v := os.Getenv("SERVERS_CONFIG"); v != "" {
		var servers []domain.ServerProfile
		if err := json.Unmarshal([]byte(v), &servers); err != nil {
			return fmt.Errorf("SERVERS_CONFIG: %w", err)
		}
		c.Servers = servers
	}
	if v := os.Getenv("GAMEWARDEN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GAMEWARDEN_PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("GAMEWARDEN_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GAMEWARDEN_DEV: %w", err)
		}
		c.Dev = dev
	}
	return nil
}

func (c *Config) applyDefaults(dir string) {
	d := runner.DefaultSettings()

	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.EventHistory == 0 {
		c.EventHistory = defaultEventHistory
	}
	if c.HistoryKeep == 0 {
		c.HistoryKeep = defaultHistoryKeep
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(dir, defaultLogFile)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.RCON.Port == 0 {
		c.RCON.Port = rcon.DefaultPort
	}
	setDuration(&c.RCON.ConnectTimeout, d.ConnectTimeout)
	setDuration(&c.RCON.CommandTimeout, d.CommandTimeout)
	setDuration(&c.Shutdown.SaveSettle, d.SaveSettle)
	setDuration(&c.Shutdown.ShutdownSettle, d.ShutdownSettle)
	setDuration(&c.Shutdown.GracePeriod, d.ShutdownGrace)
	setDuration(&c.Shutdown.CleanupTimeout, d.CleanupTimeout)
	if c.Shutdown.Message == "" {
		c.Shutdown.Message = d.ShutdownMessage
	}
}

func setDuration(field *string, d time.Duration) {
	if strings.TrimSpace(*field) == "" {
		*field = d.String()
	}
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RCON.Port <= 0 || c.RCON.Port > 65535 {
		errs = append(errs, fmt.Errorf("rcon.port %d out of range", c.RCON.Port))
	}

	durations := map[string]string{
		"rcon.connect_timeout":       c.RCON.ConnectTimeout,
		"rcon.command_timeout":       c.RCON.CommandTimeout,
		"shutdown.save_settle":       c.Shutdown.SaveSettle,
		"shutdown.shutdown_settle":   c.Shutdown.ShutdownSettle,
		"shutdown.grace_period":      c.Shutdown.GracePeriod,
		"shutdown.operation_timeout": c.Shutdown.OperationTimeout,
		"shutdown.cleanup_timeout":   c.Shutdown.CleanupTimeout,
	}
	for key, raw := range durations {
		if _, err := parseDuration(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		switch {
		case strings.TrimSpace(s.Name) == "":
			errs = append(errs, fmt.Errorf("servers[%d]: name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("servers[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.Account.Region == "" {
			errs = append(errs, fmt.Errorf("servers[%d]: awsAccount.region is required", i))
		}
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go duration strings and, like the game's own
// settings, bare numbers of seconds. Empty means zero.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// Settings converts the validated config into supervisor settings.
func (c *Config) Settings() runner.Settings {
	dur := func(raw string) time.Duration {
		d, _ := parseDuration(raw)
		return d
	}
	return runner.Settings{
		Password:         c.RCON.Password,
		ControlPort:      c.RCON.Port,
		ConnectTimeout:   dur(c.RCON.ConnectTimeout),
		CommandTimeout:   dur(c.RCON.CommandTimeout),
		SaveSettle:       dur(c.Shutdown.SaveSettle),
		ShutdownSettle:   dur(c.Shutdown.ShutdownSettle),
		ShutdownGrace:    dur(c.Shutdown.GracePeriod),
		ShutdownMessage:  c.Shutdown.Message,
		OperationTimeout: dur(c.Shutdown.OperationTimeout),
		CleanupTimeout:   dur(c.Shutdown.CleanupTimeout),
	}
}

func writeDefaultConfig(configPath, configDir string) error {
	cfg := Config{
		Port:         defaultPort,
		DatabasePath: filepath.Join(configDir, defaultDatabaseFile),
		Servers:      []domain.ServerProfile{},
	}
	cfg.applyDefaults(configDir)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0600)
}
