package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envPrefix namespaces the environment variables consulted by Load.
const envPrefix = "RAGD_"

// Load resolves configuration from a YAML file and the environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (RAGD_ prefix)
//  2. YAML config file (optional; empty path skips the file layer)
//  3. Built-in defaults
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing and splitting section from field on the first underscore:
//
//	RAGD_SERVER_PORT          -> server.port
//	RAGD_EMBEDDING_BASE_URL   -> embedding.base_url
//	RAGD_INDEX_QDRANT_HOST    -> index.qdrant.host
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("failed to stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	return finish(k)
}

// LoadBytes resolves configuration from raw YAML content plus the
// environment. Used by tests and embedded deployments.
func LoadBytes(content []byte) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// transformEnvKey maps an environment variable name to a config key.
// The section is the token before the first underscore; the remainder keeps
// its underscores as the field name. index.qdrant and index.chromem are the
// only nested sections and are handled explicitly.
func transformEnvKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, field := parts[0], parts[1]
	if section == "index" {
		for _, sub := range []string{"qdrant_", "chromem_"} {
			if strings.HasPrefix(field, sub) {
				return section + "." + strings.TrimSuffix(sub, "_") + "." + strings.TrimPrefix(field, sub)
			}
		}
	}
	return section + "." + field
}
