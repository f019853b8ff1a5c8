// Package config loads the fflagdump YAML configuration.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fflagdump/internal/cache"
	"fflagdump/internal/dump"
	"fflagdump/internal/errcode"
)

// Environment variables consulted by Load.
const (
	EnvConfig = "FLAGDUMP_CONFIG" // config file path
	EnvCache  = "FLAGDUMP_CACHE"  // overrides cache_path
)

// Config is the on-disk configuration. Every field is optional.
type Config struct {
	CachePath string   `yaml:"cache_path"`
	LogLevel  string   `yaml:"log_level"`
	LogFormat string   `yaml:"log_format"`
	Patterns  Patterns `yaml:"patterns"`
	Sections  Sections `yaml:"sections"`
}

// Patterns overrides the decoder signatures. Empty keeps the built-in one.
type Patterns struct {
	FlagDef    string `yaml:"flag_def"`
	StringInit string `yaml:"string_init"`
}

// Sections overrides the section names the decoder reads.
type Sections struct {
	Code   string `yaml:"code"`
	ROData string `yaml:"rodata"`
	Data   string `yaml:"data"`
}

// Default returns the built-in configuration.
func Default() Config {
	s := dump.DefaultSections()
	return Config{
		CachePath: cache.DefaultPath,
		LogLevel:  "info",
		LogFormat: "text",
		Sections:  Sections{Code: s.Code, ROData: s.ROData, Data: s.Data},
	}
}

// Load reads path over the defaults. An empty path falls back to
// $FLAGDUMP_CONFIG; a missing file yields the defaults. $FLAGDUMP_CACHE
// overrides the cache path either way.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, errcode.Wrap(err, errcode.IO, "read config").WithContext("path", path)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, errcode.Wrap(err, errcode.Config, "parse config").WithContext("path", path)
			}
		}
	}
	if v := os.Getenv(EnvCache); v != "" {
		cfg.CachePath = v
	}
	cfg.fill()
	return cfg, cfg.Validate()
}

// fill restores defaults for keys a file set to empty.
func (c *Config) fill() {
	def := Default()
	if c.CachePath == "" {
		c.CachePath = def.CachePath
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.Sections.Code == "" {
		c.Sections.Code = def.Sections.Code
	}
	if c.Sections.ROData == "" {
		c.Sections.ROData = def.Sections.ROData
	}
	if c.Sections.Data == "" {
		c.Sections.Data = def.Sections.Data
	}
}

// Validate checks log settings and pattern overrides.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errcode.New(errcode.Config, "unknown log format").WithContext("log_format", c.LogFormat)
	}
	if _, err := dump.ParsePatterns(c.Patterns.FlagDef, c.Patterns.StringInit); err != nil {
		return errcode.Wrap(err, errcode.Config, "invalid pattern override")
	}
	return nil
}

// Decoder builds a flag decoder from the pattern and section settings.
func (c Config) Decoder(logger *slog.Logger) (*dump.Decoder, error) {
	pats, err := dump.ParsePatterns(c.Patterns.FlagDef, c.Patterns.StringInit)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.Config, "invalid pattern override")
	}
	return &dump.Decoder{
		Patterns: pats,
		Sections: dump.SectionNames{Code: c.Sections.Code, ROData: c.Sections.ROData, Data: c.Sections.Data},
		Logger:   logger,
	}, nil
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errcode.New(errcode.Config, "unknown log level").WithContext("log_level", s)
	}
}
