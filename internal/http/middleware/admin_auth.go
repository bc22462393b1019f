package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

// tokenLeeway absorbs clock skew between the token issuer and this process.
const tokenLeeway = 30 * time.Second

var (
	errAuthDisabled = errors.New("dashboard auth disabled")
	errNoBearer     = errors.New("missing bearer token")
	errBadToken     = errors.New("invalid token")
)

// AdminClaims are the claims carried by dashboard tokens. An empty
// OperatorID grants access to every operator.
type AdminClaims struct {
	OperatorID string `json:"operator_id,omitempty"`
	jwt.RegisteredClaims
}

// CanAccess reports whether the token may act on operatorID's data.
func (c AdminClaims) CanAccess(operatorID string) bool {
	return c.OperatorID == "" || c.OperatorID == operatorID
}

// AdminJWT guards the dashboard and operator admin routes. Tokens must be
// HMAC signed with secret and carry an expiry.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := dashboardClaims(parser, secret, r)
			if err != nil {
				unauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAdminClaims(r.Context(), claims)))
		})
	}
}

func dashboardClaims(parser *jwt.Parser, secret string, r *http.Request) (AdminClaims, error) {
	var claims AdminClaims
	if secret == "" {
		return claims, errAuthDisabled
	}
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return claims, errNoBearer
	}
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return claims, errBadToken
	}
	return claims, nil
}

// bearerToken extracts the token from an Authorization header. The scheme
// name is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="chatdesk"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// AdminClaimsFromContext returns dashboard token claims if present.
func AdminClaimsFromContext(ctx context.Context) (AdminClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(AdminClaims)
	return claims, ok
}

// WithAdminClaims stores claims on ctx. Handlers tested without the JWT
// middleware use it to simulate an authenticated caller.
func WithAdminClaims(ctx context.Context, claims AdminClaims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}
