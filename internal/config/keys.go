package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured anywhere.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// KeySource says where the API key was found.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// lookupKey resolves the API key and its origin. The environment wins
// over the config file; ${VAR} references in the config expand, and an
// unexpanded reference counts as unset.
func lookupKey(cfg *Config) (string, KeySource) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, KeySourceEnv
	}
	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// GetAPIKey returns the Anthropic API key, preferring the environment
// over the config file.
func GetAPIKey(cfg *Config) (string, error) {
	key, source := lookupKey(cfg)
	if source == KeySourceNone {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	_, source := lookupKey(cfg)
	return source
}

// ValidateAPIKey checks the key's shape without calling the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return fmt.Errorf("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey renders a key safe for display, keeping the prefix and
// the last four characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
