package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ganot/stepwise/internal/api"
	"github.com/ganot/stepwise/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type tenantKey struct{}

// TenantResolver resolves a tenant ID from a bearer token.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, token string) (string, error)
}

// TenantFromContext returns the tenant ID from context, if present.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantKey{}).(string)
	return tenantID, ok
}

// WithTenant returns a context carrying tenantID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "missing bearer token", nil)
				return
			}

			tenantID, err := resolver.ResolveTenant(r.Context(), token)
			if err != nil || tenantID == "" {
				writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid bearer token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
		})
	}
}

// TokenStore looks up the tenant that owns an API key.
type TokenStore interface {
	TenantForToken(ctx context.Context, token string) (string, error)
}

// APIKeyResolver resolves tenants from stored API keys.
type APIKeyResolver struct {
	store TokenStore
}

// NewAPIKeyResolver creates a resolver over store.
func NewAPIKeyResolver(store TokenStore) *APIKeyResolver {
	return &APIKeyResolver{store: store}
}

// ResolveTenant implements TenantResolver.
func (r *APIKeyResolver) ResolveTenant(ctx context.Context, token string) (string, error) {
	tenantID, err := r.store.TenantForToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	return tenantID, nil
}

// TenantClaims are the JWT claims the service accepts.
type TenantClaims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

// JWTResolver resolves tenants from HMAC-signed JWTs.
type JWTResolver struct {
	secret []byte
	issuer string
}

// NewJWTResolver creates a resolver that verifies tokens with secret. An
// empty issuer accepts any issuer.
func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer}
}

// ResolveTenant implements TenantResolver. The tenant claim wins over the
// subject.
func (r *JWTResolver) ResolveTenant(_ context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := &TenantClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	tenantID := claims.Tenant
	if tenantID == "" {
		tenantID = claims.Subject
	}
	if tenantID == "" {
		return "", fmt.Errorf("%w: token has no tenant", ErrUnauthorized)
	}
	return tenantID, nil
}

// Issue signs a token for tenantID valid for ttl.
func (r *JWTResolver) Issue(tenantID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TenantClaims{
		Tenant: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
