package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "ClaimLink"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultCredentialTTL  = 24 * time.Hour
	defaultPollInterval   = 15 * time.Second

	// Claim credentials must outlive the funding round-trip but never an
	// abandoned escrow; the creation flow negotiates within this window.
	MinCredentialTTL = time.Hour
	MaxCredentialTTL = 30 * 24 * time.Hour

	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	credentialTTLEnvVar    = "CREDENTIAL_TTL"
	pollIntervalEnvVar     = "FUNDING_POLL_INTERVAL"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	BaseURL        string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	// CredentialSecret signs claim credentials; CredentialTTL bounds their
	// lifetime between MinCredentialTTL and MaxCredentialTTL.
	CredentialSecret string
	CredentialTTL    time.Duration

	// SecretCipherKey is the 32-byte key (base64 in the environment) sealing
	// escrow signing seeds at rest.
	SecretCipherKey []byte

	HorizonURL        string
	NetworkPassphrase string
	FundingSecret     string

	FundingPollInterval time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
		CredentialSecret:    os.Getenv("CREDENTIAL_SECRET"),
		CredentialTTL:       defaultCredentialTTL,
		HorizonURL:          os.Getenv("HORIZON_URL"),
		NetworkPassphrase:   os.Getenv("NETWORK_PASSPHRASE"),
		FundingSecret:       os.Getenv("FUNDING_SECRET"),
		FundingPollInterval: defaultPollInterval,
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv(idemTTLSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLSecondsEnvVar, err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(idemTTLDurEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", idemTTLDurEnvVar, err)
		}
		cfg.IdempotencyTTL = d
	}

	if v := os.Getenv(credentialTTLEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", credentialTTLEnvVar, err)
		}
		cfg.CredentialTTL = ClampCredentialTTL(d)
	}

	if v := os.Getenv(pollIntervalEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", pollIntervalEnvVar, err)
		}
		cfg.FundingPollInterval = d
	}

	if v := os.Getenv("SECRET_CIPHER_KEY"); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SECRET_CIPHER_KEY: %w", err)
		}
		if len(key) != 32 {
			return Config{}, fmt.Errorf("SECRET_CIPHER_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretCipherKey = key
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.CredentialSecret == "" {
		return Config{}, fmt.Errorf("CREDENTIAL_SECRET must be set")
	}

	if len(cfg.SecretCipherKey) == 0 {
		return Config{}, fmt.Errorf("SECRET_CIPHER_KEY must be set")
	}

	return cfg, nil
}

// ClampCredentialTTL bounds a requested credential lifetime to the permitted window.
func ClampCredentialTTL(d time.Duration) time.Duration {
	if d < MinCredentialTTL {
		return MinCredentialTTL
	}
	if d > MaxCredentialTTL {
		return MaxCredentialTTL
	}
	return d
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
