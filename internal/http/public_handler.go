package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blogspot-api/internal/domain"
)

// CategoryLister es la lectura del catálogo que exponen las rutas públicas.
type CategoryLister interface {
	List(ctx context.Context) ([]domain.Category, error)
}

// PublicHandler sirve las rutas sin sesión.
type PublicHandler struct {
	logger     *zap.Logger
	categories CategoryLister
}

func NewPublicHandler(logger *zap.Logger, categories CategoryLister) *PublicHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicHandler{logger: logger, categories: categories}
}

// Home maneja GET /public/.
func (h *PublicHandler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hi Welcome to BlogSpot API"})
}

// GetCategories maneja GET /public/getcategory.
func (h *PublicHandler) GetCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories failed", zap.Error(err))
		respondInternal(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "categories fetched", "categories": categories})
}
