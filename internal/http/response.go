package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const messageAuthRequired = "Authentication required"

// errorBody es el detalle del envelope de error.
type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error  string    `json:"error"`
	Errors errorBody `json:"errors"`
}

// respondError escribe el envelope de error y corta la cadena de handlers.
func respondError(c *gin.Context, status int, message string, details any) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, errorEnvelope{
		Error: "yes",
		Errors: errorBody{
			Message:    message,
			StatusCode: status,
			Details:    details,
		},
	})
}

func respondUnauthorized(c *gin.Context) {
	respondError(c, http.StatusUnauthorized, messageAuthRequired, nil)
}

func respondInternal(c *gin.Context) {
	respondError(c, http.StatusInternalServerError, "Internal server error", nil)
}

// respondValidation informa el primer campo inválido.
func respondValidation(c *gin.Context, err error) {
	respondError(c, http.StatusForbidden, "Validation Error", validationDetail(err))
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "please enter a valid email"
	case "password":
		return "password must be at least 8 characters and contain letters and digits"
	case "uuid":
		return fmt.Sprintf("%s is not a valid id", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
