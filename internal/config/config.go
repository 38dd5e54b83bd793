// Package config loads the hosting process configuration. Modules never
// read configuration globally; the process loads one Config and passes the
// relevant pieces into each module's constructor.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/agentauth/agentauth-core/internal/logging"
)

// Config is the process configuration.
type Config struct {
	Logging logging.Config `yaml:"logging"`

	Storage StorageConfig `yaml:"storage"`

	Token TokenConfig `yaml:"token"`

	Policy PolicyConfig `yaml:"policy"`

	// KeyringDir overrides the directory trusted issuer keys are read
	// from. Empty selects the per-user default.
	KeyringDir string `yaml:"keyringDir"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend"`

	// PostgresDSN is required for the postgres backend.
	PostgresDSN string `yaml:"postgresDsn"`

	// RedisAddr enables the shared revocation/score cache when set.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// RevocationCache overrides the local revocation cache file. Empty
	// selects the per-user default.
	RevocationCache string `yaml:"revocationCache"`
}

// TokenConfig configures capability token minting. The key material itself
// is owned by the process; only file paths or env references appear here.
type TokenConfig struct {
	// Issuer is the iss claim minted into tokens.
	Issuer string `yaml:"issuer"`

	// HMACSecretEnv names the environment variable holding the HS256
	// secret. When empty, an Ed25519 key file is expected instead.
	HMACSecretEnv string `yaml:"hmacSecretEnv"`

	// SigningKeyFile is a path to an Ed25519 private key (JWK).
	SigningKeyFile string `yaml:"signingKeyFile"`

	// TTL is the default token lifetime, e.g. "24h".
	TTL string `yaml:"ttl"`
}

// PolicyConfig configures policy evaluation.
type PolicyConfig struct {
	// DefaultEffect applies when no rule fires: "allow" (default) or
	// "deny". This is the deployment's fail-open/fail-closed posture.
	DefaultEffect string `yaml:"defaultEffect"`
}

// Load reads a YAML config file, after loading a .env file when present so
// env references resolve. A missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given: in-memory
// storage, fail-open policy default, dev logging. Environment overrides
// still apply.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

// applyEnv overrides file values from AGENTAUTH_* environment variables.
// Env wins over the file, which wins over defaults.
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"AGENTAUTH_LOG_ENV":          &c.Logging.Env,
		"AGENTAUTH_LOG_LEVEL":        &c.Logging.Level,
		"AGENTAUTH_STORAGE_BACKEND":  &c.Storage.Backend,
		"AGENTAUTH_POSTGRES_DSN":     &c.Storage.PostgresDSN,
		"AGENTAUTH_REDIS_ADDR":       &c.Storage.RedisAddr,
		"AGENTAUTH_REDIS_PASSWORD":   &c.Storage.RedisPassword,
		"AGENTAUTH_REVOCATION_CACHE": &c.Storage.RevocationCache,
		"AGENTAUTH_TOKEN_ISSUER":     &c.Token.Issuer,
		"AGENTAUTH_SIGNING_KEY_FILE": &c.Token.SigningKeyFile,
		"AGENTAUTH_TOKEN_TTL":        &c.Token.TTL,
		"AGENTAUTH_DEFAULT_EFFECT":   &c.Policy.DefaultEffect,
		"AGENTAUTH_KEYRING_DIR":      &c.KeyringDir,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Token.Issuer == "" {
		c.Token.Issuer = "agentauth"
	}
	if c.Policy.DefaultEffect == "" {
		c.Policy.DefaultEffect = "allow"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// HMACSecret resolves the configured HS256 secret from the environment, or
// nil when not configured.
func (c *Config) HMACSecret() []byte {
	if c.Token.HMACSecretEnv == "" {
		return nil
	}
	if v := os.Getenv(c.Token.HMACSecretEnv); v != "" {
		return []byte(v)
	}
	return nil
}
