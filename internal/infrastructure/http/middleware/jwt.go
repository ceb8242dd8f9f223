package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"3tcapital/saftprocessor/internal/infrastructure/config"
	httpx "3tcapital/saftprocessor/internal/infrastructure/http"
)

// ContextKeyToken exposes the verified JWT token via request context.
type ContextKeyToken struct{}

var validMethods = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodES256.Alg(),
}

// JWTAuthenticator validates Authorization headers against a remote JWKS.
type JWTAuthenticator struct {
	cfg        config.AuthSettings
	log        *slog.Logger
	keyfunc    jwt.Keyfunc
	cancel     context.CancelFunc
	bypassPath map[string]struct{}
}

func NewJWTAuthenticator(cfg config.AuthSettings, log *slog.Logger) (*JWTAuthenticator, error) {
	auth := newAuthenticator(cfg, log)
	if !cfg.Enabled {
		return auth, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	override := keyfunc.Override{
		RefreshInterval: 6 * time.Hour,
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				log.Error("Failed to refresh JWKS", "url", url, "error", err)
			}
		},
		HTTPTimeout: 10 * time.Second,
	}

	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSetURI}, override)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to load JWKS: %w", err)
	}
	auth.keyfunc = jwks.Keyfunc
	auth.cancel = cancel
	return auth, nil
}

func newAuthenticator(cfg config.AuthSettings, log *slog.Logger) *JWTAuthenticator {
	auth := &JWTAuthenticator{
		cfg:        cfg,
		log:        log.With("component", "jwt"),
		bypassPath: make(map[string]struct{}),
	}
	for _, path := range cfg.BypassPaths {
		if path != "" {
			auth.bypassPath[path] = struct{}{}
		}
	}
	return auth
}

// Middleware enforces JWT validation, and the configured scope if any, on inbound requests.
func (a *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	if !a.cfg.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "Authentication failed", []string{err.Error()}, a.log)
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, a.keyfunc,
			jwt.WithIssuer(a.cfg.IssuerURI),
			jwt.WithLeeway(a.cfg.ClockSkew),
			jwt.WithValidMethods(validMethods),
		)
		if err != nil || !token.Valid {
			a.log.Warn("Token validation failed", "path", r.URL.Path, "error", err)
			httpx.WriteError(w, http.StatusUnauthorized, "Authentication failed", []string{"invalid or expired token"}, a.log)
			return
		}

		if a.cfg.RequiredScope != "" && !hasScope(claims, a.cfg.RequiredScope) {
			a.log.Warn("Token lacks required scope", "path", r.URL.Path, "scope", a.cfg.RequiredScope)
			httpx.WriteError(w, http.StatusForbidden, "Forbidden", []string{"missing scope " + a.cfg.RequiredScope}, a.log)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyToken{}, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Close stops background JWKS refreshers.
func (a *JWTAuthenticator) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *JWTAuthenticator) shouldBypass(path string) bool {
	_, ok := a.bypassPath[path]
	return ok
}

// hasScope accepts both the space-separated "scope" claim and the "scp" array form.
func hasScope(claims jwt.MapClaims, want string) bool {
	if s, ok := claims["scope"].(string); ok && slices.Contains(strings.Fields(s), want) {
		return true
	}
	if list, ok := claims["scp"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	return parts[1], nil
}
