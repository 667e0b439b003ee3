package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProfileHandler sirve las rutas del usuario autenticado.
type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Me maneja GET /profile/me.
func (h *ProfileHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondUnauthorized(c)
		return
	}
	resp := gin.H{"user": user}
	if claims, ok := SessionClaims(c); ok {
		resp["sessionExpiresAt"] = claims.Expiry()
	}
	c.JSON(http.StatusOK, resp)
}
