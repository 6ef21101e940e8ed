package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/rawready/internal/canon"
	"github.com/KaramelBytes/rawready/internal/clean"
)

// EnvPrefix prefixes every environment override, e.g. RAWREADY_FILL_METHOD.
const EnvPrefix = "RAWREADY"

// Global configuration structure.
type Global struct {
	// Cleaning defaults
	FillMethod     string  `mapstructure:"fill_method" yaml:"fill_method"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold"`
	FuzzyFold      string  `mapstructure:"fuzzy_fold" yaml:"fuzzy_fold"`
	Parallel       int     `mapstructure:"parallel" yaml:"parallel"`
	Delimiter      string  `mapstructure:"delimiter" yaml:"delimiter"`
	SampleRows     int     `mapstructure:"sample_rows" yaml:"sample_rows"`

	// HTTP server
	ListenAddr      string  `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB     int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	RateLimitPerSec float64 `mapstructure:"rate_limit_per_sec" yaml:"rate_limit_per_sec"`

	// Audit history; empty disables it.
	AuditDB string `mapstructure:"audit_db" yaml:"audit_db"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"fill_method", "fuzzy_threshold", "fuzzy_fold", "parallel", "delimiter", "sample_rows",
	"listen_addr", "max_upload_mb", "rate_limit_per_sec", "audit_db", "log_level", "log_format",
}

// Dir returns ~/.rawready.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".rawready"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fill_method", string(clean.FillNA))
	v.SetDefault("fuzzy_threshold", canon.DefaultThreshold)
	v.SetDefault("fuzzy_fold", string(canon.FoldLowercase))
	v.SetDefault("parallel", 0)
	v.SetDefault("delimiter", ",")
	v.SetDefault("sample_rows", 200)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("rate_limit_per_sec", 5.0)
	v.SetDefault("audit_db", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env (including a .env file in the working directory) > config
// file > defaults. cfgFile, when set, replaces ~/.rawready/config.yaml.
func Load(cfgFile string) (*Global, error) {
	// .env never overrides variables already set in the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Save writes the given configuration to cfgFile, or to
// ~/.rawready/config.yaml when cfgFile is empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Set parses val and assigns it to key, validating enumerated values.
func (c *Global) Set(key, val string) error {
	switch key {
	case "fill_method":
		m, err := clean.ParseFillMethod(val)
		if err != nil {
			return err
		}
		c.FillMethod = string(m)
	case "fuzzy_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || !(f > 0 && f <= 1) {
			return fmt.Errorf("invalid fuzzy_threshold: %s (want a number in (0, 1])", val)
		}
		c.FuzzyThreshold = f
	case "fuzzy_fold":
		m, err := canon.ParseFoldMode(val)
		if err != nil {
			return err
		}
		c.FuzzyFold = string(m)
	case "parallel", "sample_rows", "max_upload_mb":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		switch key {
		case "parallel":
			c.Parallel = i
		case "sample_rows":
			c.SampleRows = i
		default:
			c.MaxUploadMB = i
		}
	case "delimiter":
		if _, err := ParseDelimiter(val); err != nil {
			return err
		}
		c.Delimiter = val
	case "listen_addr":
		c.ListenAddr = val
	case "rate_limit_per_sec":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for rate_limit_per_sec: %v", val)
		}
		c.RateLimitPerSec = f
	case "audit_db":
		c.AuditDB = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_format":
		switch strings.ToLower(val) {
		case "console", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get renders the value of key for display.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "fill_method":
		return c.FillMethod, nil
	case "fuzzy_threshold":
		return strconv.FormatFloat(c.FuzzyThreshold, 'f', -1, 64), nil
	case "fuzzy_fold":
		return c.FuzzyFold, nil
	case "parallel":
		return strconv.Itoa(c.Parallel), nil
	case "delimiter":
		return strconv.Quote(c.Delimiter), nil
	case "sample_rows":
		return strconv.Itoa(c.SampleRows), nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	case "rate_limit_per_sec":
		return strconv.FormatFloat(c.RateLimitPerSec, 'f', -1, 64), nil
	case "audit_db":
		return c.AuditDB, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// ParseDelimiter accepts a single character or the names "tab", "comma",
// "semicolon" and "pipe". Empty means comma.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", ",", "comma":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case "semicolon", ";":
		return ';', nil
	case "pipe", "|":
		return '|', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r[0], nil
}

// CleanOptions returns the cleaning defaults this configuration describes.
// Step toggles stay off; callers enable them per run.
func (c *Global) CleanOptions() (clean.Options, error) {
	opt := clean.DefaultOptions()
	m, err := clean.ParseFillMethod(c.FillMethod)
	if err != nil {
		return opt, err
	}
	opt.FillMethod = m
	if c.FuzzyThreshold != 0 {
		opt.FuzzyThreshold = c.FuzzyThreshold
	}
	fold, err := canon.ParseFoldMode(c.FuzzyFold)
	if err != nil {
		return opt, err
	}
	if c.FuzzyFold != "" {
		opt.FuzzyFold = fold
	}
	opt.Parallel = c.Parallel
	return opt, nil
}
