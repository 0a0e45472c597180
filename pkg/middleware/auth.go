// pkg/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"analyticsgw/pkg/config"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// jwksCache caches the JWKS set for the configured URL.
type jwksCache struct {
	mu      sync.RWMutex
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	c.mu.RLock()
	if c.set != nil && time.Now().Before(c.expires) {
		defer c.mu.RUnlock()
		return c.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set != nil && time.Now().Before(c.expires) {
		return c.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.set = set
	c.expires = time.Now().Add(ttl)
	return set, nil
}

// JWTAuth gates the RPC endpoint behind bearer-token auth when a JWKS URL is
// configured. This protects the gateway itself; it is unrelated to the
// per-call tenant credentials, which ride inside tool params.
func JWTAuth(cfg config.Config, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if cfg.JWKSURL == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	cache := &jwksCache{}
	jwksTTL := 6 * time.Hour
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health and metrics stay reachable for the platform.
			switch r.URL.Path {
			case "/healthz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			raw := r.Header.Get("Authorization")
			if !strings.HasPrefix(raw, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			set, err := cache.get(r.Context(), cfg.JWKSURL, jwksTTL)
			if err != nil {
				log.Errorw("jwks fetch", "err", err)
				http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
				return
			}
			opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true)}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}
			if _, err := jwt.Parse([]byte(strings.TrimPrefix(raw, "Bearer ")), opts...); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
