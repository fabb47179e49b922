package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/sampler/internal/logger"
)

// Config represents the sampler configuration file (~/.config/sampler/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ModelsDir string `yaml:"models_dir"`
	ModelName string `yaml:"model_name"`
	Backend   string `yaml:"backend"`

	// Sampling defaults
	Temperature *float64 `yaml:"temperature"`
	TopK        *int64   `yaml:"top_k"`
	TopP        *float64 `yaml:"top_p"`
	Length      *int64   `yaml:"length"`
	NSamples    *int64   `yaml:"nsamples"`
	BatchSize   *int64   `yaml:"batch_size"`
	Seed        *int64   `yaml:"seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

var (
	fileConfig     Config
	seedFromConfig bool
)

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sampler", "config.yaml")
}

// loadConfig reads a config file. A missing file yields a zero Config unless
// the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies config file values into the flag variables whose flags
// were not set on the command line.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.ModelName != "" && !c.IsSet("model_name") {
		modelName = cfg.ModelName
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		backend = cfg.Backend
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		temperature = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top_k") {
		topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top_p") {
		topP = *cfg.TopP
	}
	if cfg.Length != nil && !c.IsSet("length") {
		length = *cfg.Length
	}
	if cfg.NSamples != nil && !c.IsSet("nsamples") {
		nsamples = *cfg.NSamples
	}
	if cfg.BatchSize != nil && !c.IsSet("batch_size") {
		batchSize = *cfg.BatchSize
	}
	seedFromConfig = false
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
		seedFromConfig = true
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// prepare loads the config file, applies it and installs the logger in ctx.
// Every action calls it first so that flags given after the command name are
// already parsed.
func prepare(ctx context.Context, c *cli.Command) (context.Context, error) {
	path, explicit := configFile, configFile != ""
	if !explicit {
		path = configPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}
	fileConfig = cfg
	applyConfig(c, cfg)

	level := logLevel
	if debug {
		level = "debug"
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}
	log, err := logger.New(logger.Options{
		Format: logger.Format(logFormat),
		Level:  lvl,
		Output: stderr(c),
	})
	if err != nil {
		return ctx, cli.Exit(err.Error(), 1)
	}
	if path != "" && (explicit || cfg != (Config{})) {
		log.Debug("loaded config", "path", path)
	}
	return logger.WithContext(ctx, log), nil
}
