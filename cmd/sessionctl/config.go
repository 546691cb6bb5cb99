package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/bluescreen10/sessionstore"
)

type Config struct {
	URI             string        `yaml:"uri"`
	Database        string        `yaml:"database"`
	Collection      string        `yaml:"collection"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	LogLevel        string        `yaml:"log_level"` // debug, info, warn, error
	LogFile         string        `yaml:"log_file"`
	Addr            string        `yaml:"addr"`
}

func defaultConfig() *Config {
	return &Config{
		URI:             "mongodb://localhost:27017",
		Collection:      sessionstore.DefaultCollectionName,
		TTL:             sessionstore.DefaultTTL,
		CleanupInterval: sessionstore.DefaultCleanupInterval,
		LogLevel:        "info",
		Addr:            ":8080",
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a yaml config file",
		},
		&cli.StringFlag{
			Name:  "uri",
			Usage: "MongoDB connection string",
		},
		&cli.StringFlag{
			Name:  "database",
			Usage: "Database name, defaults to the one in the connection string",
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Collection sessions are stored in",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
		},
	}
}

// loadConfig reads the yaml file at path on top of the defaults. An empty
// path returns the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// resolveConfig loads the file named by --config and applies every flag
// set on the command line over it.
func resolveConfig(cmd *cli.Command) (*Config, error) {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	for name, dst := range map[string]*string{
		"uri":        &cfg.URI,
		"database":   &cfg.Database,
		"collection": &cfg.Collection,
		"log-level":  &cfg.LogLevel,
		"addr":       &cfg.Addr,
	} {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	if cmd.IsSet("ttl") {
		cfg.TTL = cmd.Duration("ttl")
	}
	if cmd.IsSet("cleanup-interval") {
		cfg.CleanupInterval = cmd.Duration("cleanup-interval")
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return fmt.Errorf("uri is required")
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("collection is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", c.TTL)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %s", c.CleanupInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// initLogger configures the standard logrus logger. Entries go to stderr
// and, when log_file is set, to a rotated file.
func initLogger(cfg *Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if dir := filepath.Dir(cfg.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log dir failed: %w", err)
			}
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	logrus.SetOutput(out)
	return nil
}
