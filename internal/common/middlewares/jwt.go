package middlewares

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/raptaro/meditrakk-sub001/pkg/utils"
)

// Definisikan tipe kustom untuk context key
type contextKey string

const ContextKeyClaims contextKey = "claims"

func unauthorized(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"status":  http.StatusUnauthorized,
		"message": message,
		"data":    nil,
	})
}

// JWTMiddleware memvalidasi bearer token dan menyimpan claims ke context.
// Browsers cannot set headers on a websocket handshake, so the token may
// also arrive as the "token" query parameter.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := c.QueryParam("token")
			if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					return unauthorized(c, "Invalid authorization header")
				}
				tokenStr = parts[1]
			}
			if tokenStr == "" {
				return unauthorized(c, "Authorization header missing")
			}

			claims, err := utils.ValidateJWTToken(secret, tokenStr)
			if err != nil {
				return unauthorized(c, "Invalid token: "+err.Error())
			}

			c.Set(string(ContextKeyClaims), claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by JWTMiddleware, or nil.
func ClaimsFrom(c echo.Context) *utils.Claims {
	claims, _ := c.Get(string(ContextKeyClaims)).(*utils.Claims)
	return claims
}
