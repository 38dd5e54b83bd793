package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"go.uber.org/zap"

	"github.com/agentauth/agentauth-core/internal/config"
	"github.com/agentauth/agentauth-core/internal/logging"
	"github.com/agentauth/agentauth-core/pkg/capability"
	"github.com/agentauth/agentauth-core/pkg/credential"
	"github.com/agentauth/agentauth-core/pkg/identity"
	"github.com/agentauth/agentauth-core/pkg/policy"
	"github.com/agentauth/agentauth-core/pkg/revocation"
	"github.com/agentauth/agentauth-core/pkg/store"
	"github.com/agentauth/agentauth-core/pkg/store/postgres"
	redisstore "github.com/agentauth/agentauth-core/pkg/store/redis"
	"github.com/agentauth/agentauth-core/pkg/trust"
)

// app wires the configured storage backend into the core services.
type app struct {
	cfg *config.Config
	log *zap.Logger

	identities  *identity.Manager
	keyring     *identity.Keyring
	credentials *credential.Service
	policies    *policy.Engine
	caps        *capability.Service
	scores      *trust.Service

	closer func()
}

// coreStore is the union of persistence contracts the services need.
type coreStore interface {
	identity.Store
	credential.Store
	capability.Store
	policy.Store
	trust.ScoreStore
	trust.FactorSource
}

// newApp builds the service graph from configuration.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	log := logging.New(cfg.Logging)

	var backing coreStore
	closer := func() { _ = log.Sync() }
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		backing = pg
		closer = func() { pg.Close(); _ = log.Sync() }
	case "memory", "":
		backing = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	signingKey, err := loadSigningKey(cfg)
	if err != nil {
		return nil, err
	}

	ttl := capability.DefaultTokenTTL
	if cfg.Token.TTL != "" {
		parsed, err := time.ParseDuration(cfg.Token.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid token ttl: %w", err)
		}
		ttl = parsed
	}

	keyring, err := identity.NewKeyring(cfg.KeyringDir)
	if err != nil {
		return nil, err
	}

	revCache, err := revocation.NewFileCache(cfg.Storage.RevocationCache)
	if err != nil {
		return nil, err
	}

	var credStore credential.Store = revocation.WrapStore(backing, revCache)
	var scoreStore trust.ScoreStore = backing
	if cfg.Storage.RedisAddr != "" {
		shared, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
		})
		if err != nil {
			return nil, err
		}
		credStore = redisstore.WrapStore(credStore, shared)
		scoreStore = shared
		prev := closer
		closer = func() { _ = shared.Close(); prev() }
	}

	identities := identity.NewManager(backing, identity.Config{})
	credentials := credential.NewService(credStore, credential.Config{
		Logger:      log,
		KeyResolver: keyring.Resolve,
	})
	policies := policy.NewEngine(backing, policy.EngineConfig{Logger: log})
	scores := trust.NewService(backing, scoreStore, trust.Config{Logger: log})
	caps := capability.NewService(backing, policies, capability.Config{
		SigningKey:    signingKey,
		TokenIssuer:   cfg.Token.Issuer,
		TokenTTL:      ttl,
		DefaultEffect: policy.Effect(cfg.Policy.DefaultEffect),
		Logger:        log,
	})

	return &app{
		cfg:         cfg,
		log:         log,
		identities:  identities,
		keyring:     keyring,
		credentials: credentials,
		policies:    policies,
		caps:        caps,
		scores:      scores,
		closer:      closer,
	}, nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer()
	}
}

// loadSigningKey resolves the service token key: an HMAC secret from the
// environment, an Ed25519 JWK file, or an ephemeral dev key as last resort.
func loadSigningKey(cfg *config.Config) (capability.SigningKey, error) {
	if secret := cfg.HMACSecret(); secret != nil {
		return capability.SigningKey{Secret: secret}, nil
	}
	if cfg.Token.SigningKeyFile != "" {
		data, err := os.ReadFile(cfg.Token.SigningKeyFile)
		if err != nil {
			return capability.SigningKey{}, fmt.Errorf("failed to read signing key: %w", err)
		}
		var jwk jose.JSONWebKey
		if err := json.Unmarshal(data, &jwk); err != nil {
			return capability.SigningKey{}, fmt.Errorf("failed to parse signing key: %w", err)
		}
		priv, ok := jwk.Key.(ed25519.PrivateKey)
		if !ok {
			return capability.SigningKey{}, fmt.Errorf("signing key file must hold an Ed25519 private JWK")
		}
		return capability.SigningKey{Private: priv}, nil
	}

	// Ephemeral key: fine for single-process demos, useless across restarts.
	_, priv, err := identity.Ed25519{}.GenerateKeyPair()
	if err != nil {
		return capability.SigningKey{}, err
	}
	return capability.SigningKey{Private: ed25519.PrivateKey(priv)}, nil
}

// printJSON renders a value as indented JSON on stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
