package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const tokenPrefix = "Token "

// TokenMiddleware authenticates requests against the bridge's shared secret,
// expected as "Authorization: Token <secret>". Comparison is constant time.
// skip exempts public routes.
func TokenMiddleware(secret string, skip func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, tokenPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			provided := strings.TrimSpace(strings.TrimPrefix(header, tokenPrefix))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			return next(c)
		}
	}
}
