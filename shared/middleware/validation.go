package middleware

import (
	"errors"
	"net/http"

	"github.com/eaglebank/ledger-service/shared/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type BadRequestErrorResponse struct {
	ErrorResponse
	Details []ValidationError `json:"details"`
}

// ValidateRequest returns nil when obj satisfies its `validate` tags.
func ValidateRequest(obj any) []ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Message: err.Error(), Type: "invalid"}}
	}

	validationErrors := make([]ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Field(),
			Message: getErrorMsg(fe),
			Type:    fe.Tag(),
		})
	}
	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	default:
		return "Invalid value"
	}
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		ErrorResponse: ErrorResponse{
			Code:    apperr.CodeInvalidRequest,
			Kind:    string(apperr.InvalidInput),
			Message: "Invalid request data",
		},
		Details: validationErrors,
	})
}

// RespondWithBadRequest reports a request the transport could not decode.
func RespondWithBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, apperr.New(apperr.InvalidInput, apperr.CodeInvalidRequest, message))
}

func RespondWithError(c *gin.Context, status int, err *apperr.Error) {
	c.JSON(status, ErrorResponse{
		Code:    err.Code,
		Kind:    string(err.Kind),
		Message: err.Message,
	})
}
