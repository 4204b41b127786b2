package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Loaded once at startup from
// the environment; not hot-reloaded.
type Config struct {
	Addr string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	IdP IdPConfig

	SessionTTL    time.Duration
	SweepInterval time.Duration
	SweepWorkers  int

	// UpstreamRevokeTimeout bounds the best-effort IdP revocation call so it
	// can never block local cleanup.
	UpstreamRevokeTimeout time.Duration
}

// IdPConfig holds the external identity provider connection settings.
type IdPConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:         envOr("AUTOGATE_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOr("KAFKA_TOPIC", "auth.events"),
		IdP: IdPConfig{
			BaseURL:      envOr("IDP_BASE_URL", "http://localhost:8081"),
			Realm:        envOr("IDP_REALM", "master"),
			ClientID:     os.Getenv("IDP_CLIENT_ID"),
			ClientSecret: os.Getenv("IDP_CLIENT_SECRET"),
			Timeout:      envSeconds("IDP_TIMEOUT_SECONDS", 5*time.Second),
		},
		SessionTTL:            envSeconds("SESSION_TTL_SECONDS", time.Hour),
		SweepInterval:         envSeconds("SWEEP_INTERVAL_SECONDS", 5*time.Minute),
		SweepWorkers:          envInt("SWEEP_WORKERS", 8),
		UpstreamRevokeTimeout: envSeconds("UPSTREAM_REVOKE_TIMEOUT_SECONDS", 3*time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
