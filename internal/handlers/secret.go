package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SecretHandler lets integrations verify their shared secret before wiring
// anything else up. Reaching the handler at all means the token middleware
// accepted the credential.
type SecretHandler struct{}

func NewSecretHandler() *SecretHandler {
	return &SecretHandler{}
}

func (h *SecretHandler) Register(e *echo.Echo) {
	e.GET("/secret.check", h.Check)
}

func (h *SecretHandler) Check(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
