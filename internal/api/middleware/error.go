package middleware

import (
	"errors"
	"net/http"

	"lattice-pricer/internal/api/models"
	"lattice-pricer/internal/model"

	"github.com/gin-gonic/gin"
)

// ErrorHandler recovers panics into a JSON 500.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		msg := "An unexpected error occurred"
		if s, ok := recovered.(string); ok {
			msg = s
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "INTERNAL_ERROR", Message: msg},
		})
	})
}

// Classify maps an error category to its HTTP status and error code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest, "CONFIGURATION_ERROR"
	case errors.Is(err, model.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_OPERATION"
	case errors.Is(err, model.ErrNumerical):
		return http.StatusUnprocessableEntity, "NUMERICAL_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// Detail is the response body form of err.
func Detail(err error) models.ErrorDetail {
	_, code := Classify(err)
	return models.ErrorDetail{Code: code, Message: err.Error()}
}

// AbortWithError writes err with the status of its category.
func AbortWithError(c *gin.Context, err error) {
	status, _ := Classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: Detail(err)})
}

// AbortInvalidRequest reports a body or query that failed to bind.
func AbortInvalidRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
		Error: models.ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()},
	})
}
