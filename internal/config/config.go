package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "CONFIG_FILE"

// Config defines advisor backend configuration. Values come from an
// optional YAML file (CONFIG_FILE) and are overridden by environment
// variables.
type Config struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Queue struct {
		Enabled          bool   `yaml:"enabled"`
		Stream           string `yaml:"stream"`
		Group            string `yaml:"group"`
		DeadLetterStream string `yaml:"dead_letter_stream"`
		MaxAttempts      int    `yaml:"max_attempts"`
		BlockSeconds     int    `yaml:"block_seconds"`
	} `yaml:"queue"`
	Inference struct {
		OllamaURL      string `yaml:"ollama_url"`
		OpenAIBaseURL  string `yaml:"openai_base_url"`
		OpenAIAPIKey   string `yaml:"openai_api_key"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"inference"`
	Worker struct {
		StaleAfterMinutes    int `yaml:"stale_after_minutes"`
		SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	} `yaml:"worker"`
}

// Load reads configuration from file/env and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Queue.Enabled = true
	cfg.Queue.Stream = "advisor:ml-tasks"
	cfg.Queue.Group = "ml-workers"
	cfg.Queue.DeadLetterStream = "advisor:ml-tasks:dead"
	cfg.Queue.MaxAttempts = 3
	cfg.Queue.BlockSeconds = 5
	cfg.Inference.OllamaURL = "http://localhost:11434"
	cfg.Inference.TimeoutSeconds = 120
	cfg.Worker.StaleAfterMinutes = 10
	cfg.Worker.SweepIntervalSeconds = 60

	if path := os.Getenv(configPathEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}

	overrideString(&cfg.HTTP.Port, "ADVISOR_HTTP_PORT")
	overrideString(&cfg.Database.DSN, "ADVISOR_POSTGRES_DSN")
	overrideString(&cfg.Redis.Addr, "ADVISOR_REDIS_ADDR")
	overrideString(&cfg.Redis.Password, "ADVISOR_REDIS_PASSWORD")
	if err := overrideBool(&cfg.Queue.Enabled, "ADVISOR_QUEUE_ENABLED"); err != nil {
		return nil, err
	}
	overrideString(&cfg.Queue.Stream, "ADVISOR_QUEUE_STREAM")
	overrideString(&cfg.Queue.Group, "ADVISOR_QUEUE_GROUP")
	overrideString(&cfg.Queue.DeadLetterStream, "ADVISOR_QUEUE_DLQ_STREAM")
	if err := overrideInt(&cfg.Queue.MaxAttempts, "ADVISOR_QUEUE_MAX_ATTEMPTS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Queue.BlockSeconds, "ADVISOR_QUEUE_BLOCK_SECONDS"); err != nil {
		return nil, err
	}
	overrideString(&cfg.Inference.OllamaURL, "OLLAMA_URL")
	overrideString(&cfg.Inference.OpenAIBaseURL, "OPENAI_BASE_URL")
	overrideString(&cfg.Inference.OpenAIAPIKey, "OPENAI_API_KEY")
	if err := overrideInt(&cfg.Inference.TimeoutSeconds, "INFERENCE_TIMEOUT_SECONDS"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Worker.StaleAfterMinutes, "WORKER_STALE_AFTER_MINUTES"); err != nil {
		return nil, err
	}
	if err := overrideInt(&cfg.Worker.SweepIntervalSeconds, "WORKER_SWEEP_INTERVAL_SECONDS"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if cfg.Queue.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required when queue is enabled")
	}
	return cfg, nil
}

// HTTPAddress returns :port style string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// InferenceTimeout returns the bound applied to one collaborator call.
func (c *Config) InferenceTimeout() time.Duration {
	if c.Inference.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

// QueueBlock returns how long the consumer blocks waiting for a task.
func (c *Config) QueueBlock() time.Duration {
	if c.Queue.BlockSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Queue.BlockSeconds) * time.Second
}

// StaleAfter returns the age beyond which a non-terminal prediction is
// force-failed by the sweeper.
func (c *Config) StaleAfter() time.Duration {
	if c.Worker.StaleAfterMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Worker.StaleAfterMinutes) * time.Minute
}

// SweepInterval returns how often the sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	if c.Worker.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Worker.SweepIntervalSeconds) * time.Second
}

func overrideString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		*target = val
	}
}

func overrideInt(target *int, key string) error {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func overrideBool(target *bool, key string) error {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", key, err)
	}
	*target = parsed
	return nil
}
