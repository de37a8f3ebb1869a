package apirouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
)

// internalErrorMessage is part of the wire contract, misspelling included.
const internalErrorMessage = "an error occured, please try again later."

// ErrorHandlerMiddleware converts errors attached to the gin context into
// the response envelope. Handlers abort with an error instead of rendering
// failures themselves; the last error attached wins.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		var errorResponse ErrorResponse
		errorResponse.Parse(err.Err)
		renderErrorResponse(c, errorResponse)
	}
}

// FieldError describes a single rejected input field.
type FieldError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
}

// ErrorResponse is the internal representation of an error reply. It renders
// as {"message": ..., "data": null} or, when field errors are present,
// {"message": "validation_error", "errors": [...]}.
type ErrorResponse struct {
	Err     error
	Code    int
	Message string
	Errors  []FieldError
}

var _ error = ErrorResponse{}

func (e ErrorResponse) Error() string {
	return e.Message
}

func (e ErrorResponse) Unwrap() error {
	return e.Err
}

// Parse maps an arbitrary error to a response. Binding errors become 400s
// with per-field detail; anything unrecognized is masked as a 500.
func (e *ErrorResponse) Parse(err error) {
	var errorResponse ErrorResponse
	if errors.As(err, &errorResponse) {
		*e = errorResponse
		return
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			fields = append(fields, FieldError{
				Field:    fieldError.Field(),
				Code:     fieldError.Tag(),
				Message:  formatValidationError(fieldError.Field(), fieldError.Tag(), fieldError.Param()),
				Expected: fieldError.Param(),
			})
		}
		*e = ErrorResponse{
			Err:     err,
			Code:    http.StatusBadRequest,
			Message: "validation_error",
			Errors:  fields,
		}
		return
	}

	var typeError *json.UnmarshalTypeError
	if errors.As(err, &typeError) {
		expected := jsonTypeName(typeError.Type)
		field := typeError.Field
		if field == "" {
			field = "body"
		}
		*e = ErrorResponse{
			Err:     err,
			Code:    http.StatusBadRequest,
			Message: "validation_error",
			Errors: []FieldError{{
				Field:    field,
				Code:     "invalid_type",
				Message:  fmt.Sprintf("%s must be of type %s", field, expected),
				Expected: expected,
				Received: typeError.Value,
			}},
		}
		return
	}

	if isInvalidJSON(err) {
		*e = ErrorResponse{
			Err:     err,
			Code:    http.StatusBadRequest,
			Message: "invalid_json",
		}
		return
	}

	*e = ErrorResponse{
		Err:     err,
		Code:    http.StatusInternalServerError,
		Message: internalErrorMessage,
	}
}

func isInvalidJSON(err error) bool {
	var syntaxError *json.SyntaxError
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &syntaxError)
}

// formatValidationError converts a validation error into a human-readable
// message. field is the json field name, tag is the validation rule
// (e.g. "required", "lte"), and param is the rule parameter.
func formatValidationError(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	default:
		if param != "" {
			return fmt.Sprintf("%s failed %s=%s validation", field, tag, param)
		}
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

func jsonTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonTypeName(t.Elem())
	default:
		return t.String()
	}
}

func renderErrorResponse(c *gin.Context, response ErrorResponse) {
	if response.Code == 0 {
		response.Code = http.StatusInternalServerError
	}
	if len(response.Errors) > 0 {
		c.JSON(response.Code, gin.H{
			"message": response.Message,
			"errors":  response.Errors,
		})
		return
	}
	c.JSON(response.Code, gin.H{
		"message": response.Message,
		"data":    nil,
	})
}

// AbortWithError stops handler execution and hands the error to the error
// handler middleware for rendering.
func AbortWithError(c *gin.Context, code int, response ErrorResponse) {
	response.Code = code
	c.Abort()
	c.Error(response) // nolint:errcheck
}

// AbortWithValidationError forwards a binding error untouched so Parse can
// map it to per-field detail.
func AbortWithValidationError(c *gin.Context, err error) {
	c.Abort()
	c.Error(err) // nolint:errcheck
}

func NewErrInternalServer(err error) ErrorResponse {
	return ErrorResponse{
		Err:     pkgerrors.WithStack(err),
		Code:    http.StatusInternalServerError,
		Message: internalErrorMessage,
	}
}

func NewErrBadRequest(err error) ErrorResponse {
	return ErrorResponse{
		Err:     err,
		Code:    http.StatusBadRequest,
		Message: err.Error(),
	}
}

// NewErrNotFound renders {"message": "<resource>_not_found"}.
func NewErrNotFound(resource string) ErrorResponse {
	return ErrorResponse{
		Code:    http.StatusNotFound,
		Message: resource + "_not_found",
	}
}

func NewErrValidation(fields ...FieldError) ErrorResponse {
	return ErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "validation_error",
		Errors:  fields,
	}
}
