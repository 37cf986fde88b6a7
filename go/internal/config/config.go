package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kubby-exe/SWIFT-ROYALE/go/internal/dbconfig"
	"gopkg.in/yaml.v3"
)

// Results store backends
const (
	ResultsStoreMemory   = "memory"
	ResultsStorePostgres = "postgres"
)

// Log output formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the server configuration
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	RoundSeconds  int
	CountdownFrom int
	Texts         []string

	ProgressRate  float64
	ProgressBurst int

	NATSEnabled bool
	NATSURL     string

	ResultsStore    string
	ResultsCapacity int
	Database        dbconfig.Config
}

// fileConfig is the shape of the optional YAML file
type fileConfig struct {
	Server struct {
		Port      string `yaml:"port"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`
	Round struct {
		Seconds       int `yaml:"seconds"`
		CountdownFrom int `yaml:"countdown_from"`
	} `yaml:"round"`
	Progress struct {
		Rate  float64 `yaml:"rate"`
		Burst int     `yaml:"burst"`
	} `yaml:"progress"`
	Results struct {
		Store    string `yaml:"store"`
		Capacity int    `yaml:"capacity"`
	} `yaml:"results"`
	Texts []string `yaml:"texts"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Port:            "8080",
		LogLevel:        "info",
		LogFormat:       LogFormatConsole,
		RoundSeconds:    60,
		CountdownFrom:   3,
		ProgressRate:    20,
		ProgressBurst:   10,
		NATSURL:         "nats://localhost:4222",
		ResultsStore:    ResultsStoreMemory,
		ResultsCapacity: 500,
	}
}

// Load builds the configuration from defaults, then CONFIG_FILE, then the
// environment, then TEXTS_FILE.
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if path := getEnv("TEXTS_FILE", ""); path != "" {
		texts, err := LoadTexts(path)
		if err != nil {
			return nil, err
		}
		cfg.Texts = texts
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RoundSeconds <= 0 {
		errs = append(errs, fmt.Errorf("round seconds must be positive, got %d", c.RoundSeconds))
	}
	if c.CountdownFrom <= 0 {
		errs = append(errs, fmt.Errorf("countdown must be positive, got %d", c.CountdownFrom))
	}
	if c.ProgressRate <= 0 || c.ProgressBurst <= 0 {
		errs = append(errs, errors.New("progress rate and burst must be positive"))
	}
	switch c.ResultsStore {
	case ResultsStoreMemory, ResultsStorePostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown results store %q", c.ResultsStore))
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Server.LogLevel)
	setString(&c.LogFormat, fc.Server.LogFormat)
	setInt(&c.RoundSeconds, fc.Round.Seconds)
	setInt(&c.CountdownFrom, fc.Round.CountdownFrom)
	if fc.Progress.Rate > 0 {
		c.ProgressRate = fc.Progress.Rate
	}
	setInt(&c.ProgressBurst, fc.Progress.Burst)
	setString(&c.ResultsStore, fc.Results.Store)
	setInt(&c.ResultsCapacity, fc.Results.Capacity)
	if len(fc.Texts) > 0 {
		c.Texts = cleanTexts(fc.Texts)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.RoundSeconds = getEnvAsInt("ROUND_SECONDS", c.RoundSeconds)
	c.CountdownFrom = getEnvAsInt("COUNTDOWN_FROM", c.CountdownFrom)
	c.NATSEnabled = getEnvAsBool("NATS_ENABLED", c.NATSEnabled)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.ResultsStore = strings.ToLower(getEnv("RESULTS_STORE", c.ResultsStore))
	c.ResultsCapacity = getEnvAsInt("RESULTS_CAPACITY", c.ResultsCapacity)
	c.Database = dbconfig.NewConfigFromEnv()
}

// LoadTexts reads a YAML list of race passages
func LoadTexts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read texts file: %w", err)
	}

	var texts []string
	if err := yaml.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("failed to parse texts file: %w", err)
	}
	texts = cleanTexts(texts)
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts file %s has no passages", path)
	}
	return texts, nil
}

func cleanTexts(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
