// Package config loads the service configuration: a YAML file layered with
// environment-variable overrides for the secrets and model defaults the
// evaluation pipeline reads.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Model    ModelConfig    `yaml:"model"`
	Signing  SigningConfig  `yaml:"signing"`
	Secrets  SecretsConfig  `yaml:"-"`
	Registry RegistryConfig `yaml:"registry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig configures the control-plane Postgres connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the progress pub/sub connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// RegistryConfig configures the optional etcd endpoints used for
// cross-instance scheduler leases. Empty endpoints disable leasing.
type RegistryConfig struct {
	Endpoints []string `yaml:"endpoints"`
}

// ModelConfig carries the default evaluation model and decoding parameters,
// overridable per request.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        *int    `yaml:"top_k"`
	MaxTokens   int     `yaml:"max_tokens"`
	Seed        int64   `yaml:"seed"`
}

// SigningConfig carries the process-default repro-pack signing material.
type SigningConfig struct {
	PrivateKeyPEM string `yaml:"-"`
	PublicKeyPEM  string `yaml:"-"`
	KeyID         string `yaml:"key_id"`
	Authority     string `yaml:"authority"`
}

// SecretsConfig carries env-only secrets; never read from YAML.
type SecretsConfig struct {
	APIKeyEncryptionSecret     string
	SigningKeyEncryptionSecret string
}

// Load reads the YAML file (optional; empty path skips it) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		Model: ModelConfig{
			Provider:    "simulator",
			Name:        "bias-sim-1",
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   1024,
		},
		Signing: SigningConfig{Authority: "BiasLens"},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Database.DSN, "DATABASE_URL")
	setStr(&c.Redis.URL, "REDIS_URL")
	setStr(&c.Server.Addr, "LISTEN_ADDR")

	setStr(&c.Secrets.APIKeyEncryptionSecret, "API_KEY_ENCRYPTION_SECRET")
	setStr(&c.Secrets.SigningKeyEncryptionSecret, "SIGNING_KEY_ENCRYPTION_SECRET")

	setStr(&c.Signing.PrivateKeyPEM, "REPRO_PACK_SIGNING_PRIVATE_KEY")
	setStr(&c.Signing.PublicKeyPEM, "REPRO_PACK_SIGNING_PUBLIC_KEY")
	setStr(&c.Signing.KeyID, "REPRO_PACK_SIGNING_KEY_ID")
	setStr(&c.Signing.Authority, "REPRO_PACK_SIGNING_AUTHORITY")

	setStr(&c.Model.Provider, "EVALUATION_MODEL_PROVIDER")
	setStr(&c.Model.Name, "EVALUATION_MODEL_NAME")

	if v := os.Getenv("EVALUATION_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Model.Temperature = f
		}
	}
	if v := os.Getenv("EVALUATION_TOP_P"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Model.TopP = f
		}
	}
	if v := os.Getenv("EVALUATION_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.TopK = &n
		}
	}
	if v := os.Getenv("EVALUATION_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Model.MaxTokens = n
		}
	}
	if v := os.Getenv("EVALUATION_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Model.Seed = n
		}
	}
}
