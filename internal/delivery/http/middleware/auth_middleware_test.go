package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestApp(allowHeader bool) *fiber.App {
	v := viper.New()
	v.Set("auth.jwt_secret", testSecret)
	v.Set("auth.allow_header_identity", allowHeader)
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := NewMiddleware(&MiddlewareConfig{Log: log, Config: v})

	app := fiber.New()
	app.Get("/me", m.Auth(), func(ctx *fiber.Ctx) error {
		return ctx.SendString(UserID(ctx))
	})
	return app
}

func signed(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthResolvesUserFromToken(t *testing.T) {
	valid := jwt.RegisteredClaims{Subject: "u-42", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	expired := jwt.RegisteredClaims{Subject: "u-42", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + signed(t, jwt.SigningMethodHS256, testSecret, valid), fiber.StatusOK, "u-42"},
		{"wrong secret", "Bearer " + signed(t, jwt.SigningMethodHS256, "other", valid), fiber.StatusUnauthorized, ""},
		{"expired", "Bearer " + signed(t, jwt.SigningMethodHS256, testSecret, expired), fiber.StatusUnauthorized, ""},
		{"other algorithm", "Bearer " + signed(t, jwt.SigningMethodHS512, testSecret, valid), fiber.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signed(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{}), fiber.StatusUnauthorized, ""},
		{"not bearer", "Basic dXNlcjpwYXNz", fiber.StatusUnauthorized, ""},
		{"missing", "", fiber.StatusUnauthorized, ""},
	}

	app := newTestApp(false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.body != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(body))
			}
		})
	}
}

func TestAuthHeaderIdentity(t *testing.T) {
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "dev-user")

	resp, err := newTestApp(false).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", "dev-user")
	resp, err = newTestApp(true).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "dev-user", string(body))
}
