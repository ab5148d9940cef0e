// Package config loads the testado settings from defaults, an optional
// config file, TESTADO_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wudi/pdfredact/filters"
)

const EnvPrefix = "TESTADO"

// Config is the effective configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// Workers bounds the documents processed at once in batch mode.
	Workers int `mapstructure:"workers"`
	// MaxDecompressedSize caps each decoded stream, in bytes.
	MaxDecompressedSize int64 `mapstructure:"max_decompressed_size"`
}

func Default() Config {
	return Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Workers:             runtime.NumCPU(),
		MaxDecompressedSize: filters.DefaultLimits.MaxDecompressedSize,
	}
}

// Limits returns the stream decoding limits for c.
func (c Config) Limits() filters.Limits {
	l := filters.DefaultLimits
	l.MaxDecompressedSize = c.MaxDecompressedSize
	return l
}

type LoadOptions struct {
	// ConfigPath names a YAML or TOML file; it must exist when set.
	ConfigPath string
	// Flags are bound by key; only flags the user changed override.
	Flags *pflag.FlagSet
}

// Load returns the effective configuration.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("max_decompressed_size", def.MaxDecompressedSize)

	if opts.ConfigPath != "" {
		info, err := os.Stat(opts.ConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("stat config %s: %w", opts.ConfigPath, err)
		}
		if info.IsDir() {
			return Config{}, fmt.Errorf("config path %s is a directory", opts.ConfigPath)
		}
		v.SetConfigFile(opts.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.ConfigPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for _, key := range []string{"log_level", "log_format", "workers", "max_decompressed_size"} {
			if f := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validFormats = map[string]bool{"text": true, "json": true, "logfmt": true}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate rejects settings the CLI cannot run with.
func Validate(c Config) error {
	var errs []error
	if !validLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel))
	}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format %q: want text, json or logfmt", c.LogFormat))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.MaxDecompressedSize <= 0 {
		errs = append(errs, fmt.Errorf("max_decompressed_size must be positive, got %d", c.MaxDecompressedSize))
	}
	return errors.Join(errs...)
}
