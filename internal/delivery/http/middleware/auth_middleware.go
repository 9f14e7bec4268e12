package middleware

import (
	"errors"
	"strings"

	"github.com/evandrarf/neurocase-be/internal/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDLocal     = "user_id"
	userIDHeader    = "X-User-ID"
	unauthorizedMsg = "Unauthorized"
)

// Auth resolves the caller from an HS256 bearer token whose subject is the
// user id. When auth.allow_header_identity is set, X-User-ID is accepted in
// place of a token.
func (m *Middleware) Auth() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		header := strings.TrimSpace(ctx.Get(fiber.HeaderAuthorization))
		if header == "" {
			if m.allowHeaderIdentity {
				if id := strings.TrimSpace(ctx.Get(userIDHeader)); id != "" {
					ctx.Locals(userIDLocal, id)
					return ctx.Next()
				}
			}
			return response.NewFailed(unauthorizedMsg, fiber.NewError(fiber.StatusUnauthorized, "missing bearer token"), m.Log).Send(ctx)
		}

		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return response.NewFailed(unauthorizedMsg, fiber.NewError(fiber.StatusUnauthorized, "malformed authorization header"), m.Log).Send(ctx)
		}
		userID, err := m.parseSubject(strings.TrimSpace(token))
		if err != nil {
			m.Log.WithError(err).Debug("rejected bearer token")
			return response.NewFailed(unauthorizedMsg, fiber.NewError(fiber.StatusUnauthorized, "invalid token"), m.Log).Send(ctx)
		}

		ctx.Locals(userIDLocal, userID)
		return ctx.Next()
	}
}

func (m *Middleware) parseSubject(raw string) (string, error) {
	if len(m.jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// UserID returns the caller resolved by Auth.
func UserID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(userIDLocal).(string)
	return id
}
