package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/middleware"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator(t *testing.T) {
	auth := middleware.NewAuthenticator(config.Auth{JWTSecret: "0123456789abcdef", Issuer: "storefront"})

	userToken, err := auth.Issue("user-1", middleware.RoleUser, time.Hour)
	require.NoError(t, err)
	adminToken, err := auth.Issue("admin-1", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := auth.Issue("user-1", middleware.RoleUser, -time.Minute)
	require.NoError(t, err)

	foreign := middleware.NewAuthenticator(config.Auth{JWTSecret: "fedcba9876543210", Issuer: "storefront"})
	forged, err := foreign.Issue("user-1", middleware.RoleAdmin, time.Hour)
	require.NoError(t, err)

	otherIssuer := middleware.NewAuthenticator(config.Auth{JWTSecret: "0123456789abcdef", Issuer: "elsewhere"})
	wrongIssuer, err := otherIssuer.Issue("user-1", middleware.RoleUser, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	var seen string
	protected := auth.Authenticate(middleware.RequireRole(middleware.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.UserID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}),
	))

	testCases := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "admin", header: "Bearer " + adminToken, wantStatus: http.StatusNoContent, wantUser: "admin-1"},
		{name: "user is forbidden", header: "Bearer " + userToken, wantStatus: http.StatusForbidden},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + forged, wantStatus: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + wrongIssuer, wantStatus: http.StatusUnauthorized},
		{name: "unsigned", header: "Bearer " + unsigned, wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()

			protected.ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Equal(t, tc.wantUser, seen)
		})
	}
}

func TestAuthenticator_DefaultRole(t *testing.T) {
	auth := middleware.NewAuthenticator(config.Auth{JWTSecret: "0123456789abcdef"})

	token, err := auth.Issue("user-1", "", time.Hour)
	require.NoError(t, err)

	id, err := auth.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, middleware.Identity{UserID: "user-1", Role: middleware.RoleUser}, id)
}
