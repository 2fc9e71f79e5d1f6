package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds client configuration. Values from the yaml file can be
// overridden by environment variables.
type Config struct {
	Broker struct {
		// Transport selects the broker implementation: "nats" or "websocket".
		Transport string `yaml:"transport"`
		URL       string `yaml:"url"`
	} `yaml:"broker"`
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Chat struct {
		// MaxMessages bounds the in-memory chat log. 0 means the default.
		MaxMessages int `yaml:"max_messages"`
	} `yaml:"chat"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Broker.Transport = "nats"
	cfg.Broker.URL = "nats://localhost:4222"
	cfg.API.BaseURL = "http://localhost:8080"
	cfg.Chat.MaxMessages = 512
	return &cfg
}

// Load reads the yaml config at path (missing file is not an error) and
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Broker.Transport = getEnv("EMOJINIOUS_BROKER_TRANSPORT", cfg.Broker.Transport)
	cfg.Broker.URL = getEnv("EMOJINIOUS_BROKER_URL", cfg.Broker.URL)
	cfg.API.BaseURL = getEnv("EMOJINIOUS_API_URL", cfg.API.BaseURL)
	cfg.Chat.MaxMessages = getEnvAsInt("EMOJINIOUS_CHAT_MAX", cfg.Chat.MaxMessages)

	return cfg, nil
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
