package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
	"github.com/golang-jwt/jwt/v4"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims are the access token claims. The subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID string
	Role   string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// UserID returns the authenticated user id or an empty string.
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(cfg config.Auth) *Authenticator {
	return &Authenticator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

func (a *Authenticator) Parse(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return Identity{}, errors.New("invalid token")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return Identity{}, errors.New("invalid token issuer")
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

// Issue signs a token for userID. Used by tooling and tests.
func (a *Authenticator) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			authRejected.WithLabelValues("missing_token").Inc()
			utils.WriteError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		id, err := a.Parse(raw)
		if err != nil {
			authRejected.WithLabelValues("invalid_token").Inc()
			utils.WriteError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole lets through authenticated callers with the given role.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				utils.WriteError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if id.Role != role {
				authRejected.WithLabelValues("forbidden_role").Inc()
				utils.WriteError(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
