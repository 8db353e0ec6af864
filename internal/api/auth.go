package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kalambet/tastetwin/internal/taste"
)

type contextKey int

const identityKey contextKey = iota

// identityClaims are the JWT claims the service cares about: the subject is
// the profile id, email is optional display metadata.
type identityClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth verifies a Bearer token signed with the shared HS256 secret and
// puts the authenticated identity into the request context. Token issuance
// is an external concern; this layer only verifies.
func JWTAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing bearer token")
				return
			}

			ident, err := VerifyToken(secret, auth[len(prefix):])
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid token: %v", err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the authenticated identity stored by JWTAuth.
func IdentityFrom(ctx context.Context) (taste.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(taste.Identity)
	return ident, ok
}

// VerifyToken parses and validates an HS256 token, returning the identity it
// carries. The subject claim is required.
func VerifyToken(secret []byte, token string) (taste.Identity, error) {
	var claims identityClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return taste.Identity{}, err
	}
	if claims.Subject == "" {
		return taste.Identity{}, fmt.Errorf("token has no subject")
	}
	return taste.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// SignIdentity mints an HS256 token for the given identity, used by the CLI
// and tests.
func SignIdentity(secret []byte, ident taste.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Email: ident.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
