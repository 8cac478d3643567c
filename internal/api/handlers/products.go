package handlers

import (
	"net/http"

	"lattice-pricer/internal/product"

	"github.com/gin-gonic/gin"
)

// ListProducts handles GET /api/v1/products
func ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": product.Catalog()})
}
