// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Per-call budget for tool execution including the upstream call.
	CallTimeout time.Duration

	// Fields that must be present and non-empty in decoded tenant
	// credentials. Deployment-specific; defaults match service account JSON.
	RequiredCredentialFields []string

	// User agent prefix sent on upstream calls (tenant id is appended per call).
	UpstreamUserAgent string

	// Optional inbound auth. When JWKSURL is empty the RPC endpoint is open
	// (hosting platform is expected to gate access).
	Issuer   string
	Audience string
	JWKSURL  string

	// Optional per-tenant rate limit (requires Redis). 0 disables.
	RateLimitPerMinute int

	// Optional deployment authorization policy (rego module path).
	PolicyFile string

	// Redis & Postgres (both optional)
	RedisURL    string
	DatabaseURL string
}

// fileConfig is the YAML overlay shape; only the operational knobs a
// deployment typically pins belong here, secrets stay in the environment.
type fileConfig struct {
	HTTPAddr                 string   `yaml:"http_addr"`
	CallTimeoutSec           int      `yaml:"call_timeout_sec"`
	RequiredCredentialFields []string `yaml:"required_credential_fields"`
	RateLimitPerMinute       int      `yaml:"rate_limit_per_minute"`
	PolicyFile               string   `yaml:"policy_file"`
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                      env("AGW_ENV", "dev"),
		HTTPAddr:                 env("AGW_HTTP_ADDR", ":8080"),
		CallTimeout:              envDur("AGW_CALL_TIMEOUT_SEC", 30) * time.Second,
		RequiredCredentialFields: splitList(env("AGW_REQUIRED_CREDENTIAL_FIELDS", "type,project_id,private_key,client_email,token_uri")),
		UpstreamUserAgent:        env("AGW_UPSTREAM_USER_AGENT", "analytics-gateway/0.1.0"),
		Issuer:                   env("OIDC_ISSUER", ""),
		Audience:                 env("OIDC_AUDIENCE", "analytics-gateway"),
		JWKSURL:                  env("JWKS_URL", ""),
		RateLimitPerMinute:       envInt("AGW_RATE_LIMIT_PER_MINUTE", 0),
		PolicyFile:               env("AGW_POLICY_FILE", ""),
		RedisURL:                 env("REDIS_URL", ""),
		DatabaseURL:              env("DATABASE_URL", ""),
	}
	if path := os.Getenv("AGW_CONFIG_FILE"); path != "" {
		applyFile(&cfg, path)
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set; audit events go to the log only")
	}
	return cfg
}

func applyFile(cfg *Config, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] config file %s: %v", path, err)
		return
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		log.Printf("[WARN] config file %s: %v", path, err)
		return
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.CallTimeoutSec > 0 {
		cfg.CallTimeout = time.Duration(fc.CallTimeoutSec) * time.Second
	}
	if len(fc.RequiredCredentialFields) > 0 {
		cfg.RequiredCredentialFields = fc.RequiredCredentialFields
	}
	if fc.RateLimitPerMinute > 0 {
		cfg.RateLimitPerMinute = fc.RateLimitPerMinute
	}
	if fc.PolicyFile != "" {
		cfg.PolicyFile = fc.PolicyFile
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return i
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
