package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/md-rashed-zaman/ordersaga/libs/httpx"
)

const (
	RoleAdmin     = "ADMIN"
	RoleManager   = "MANAGER"
	RoleSupport   = "SUPPORT"
	RoleFinance   = "FINANCE"
	RoleWarehouse = "WAREHOUSE"
	RoleAuditor   = "AUDITOR"
	RoleCustomer  = "CUSTOMER"
)

const (
	HeaderUserID = "X-User-Id"
	HeaderRoles  = "X-User-Roles"
)

// Principal is the already-authenticated caller of a command.
type Principal struct {
	UserID string
	Roles  []string
}

func (p Principal) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator resolves the caller from a bearer token, or from gateway
// headers when the service sits behind a trusted gateway.
type Authenticator struct {
	Secret       string
	JWKS         *JWKSClient
	TrustHeaders bool
}

func (a Authenticator) Authenticate(r *http.Request) (Principal, error) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		claims, err := a.verify(r.Context(), strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			return Principal{}, err
		}
		return Principal{UserID: claims.Sub, Roles: normalizeRoles(claims.Roles)}, nil
	}
	if a.TrustHeaders {
		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			return Principal{UserID: id, Roles: normalizeRoles(strings.Split(r.Header.Get(HeaderRoles), ","))}, nil
		}
	}
	return Principal{}, ErrInvalidToken
}

func (a Authenticator) verify(ctx context.Context, token string) (*Claims, error) {
	if a.JWKS != nil {
		header, err := ParseHeader(token)
		if err != nil {
			return nil, err
		}
		if header.Alg == "RS256" && header.Kid != "" {
			pub, err := a.JWKS.Get(ctx, header.Kid)
			if err != nil {
				return nil, ErrInvalidToken
			}
			return VerifyRS256(token, pub)
		}
	}
	if a.Secret == "" {
		return nil, ErrInvalidToken
	}
	return ParseAndVerifyHS256(token, a.Secret)
}

// Middleware rejects unauthenticated requests with 401.
func (a Authenticator) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r)
			if err != nil {
				httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole allows the request when the principal holds any of roles.
func RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
			return
		}
		if !p.HasAnyRole(roles...) {
			httpx.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
		next(w, r)
	}
}

// UserKey keys rate limits by principal, falling back to client IP.
func UserKey(r *http.Request) string {
	if p, ok := FromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	return "ip:" + httpx.ClientIP(r)
}

func normalizeRoles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(r), "ROLE_"))
		if r != "" && !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
