package pkg

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/goboot/internal/domain"
)

// Response is the standard JSON envelope for API responses. Code is 0 on
// success and the HTTP status otherwise.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ValidationErrorResponse is the JSON envelope for validation error responses.
type ValidationErrorResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

// HandlerFunc is a handler that returns its payload instead of writing it.
type HandlerFunc func(c *gin.Context) (any, error)

// Handle adapts fn to gin. Errors are logged with the request method and
// URL, at warn level for 4xx and error level for 5xx, then written with
// Error. A nil payload produces a bare success envelope. Handlers that
// already wrote a response are left alone.
func Handle(logger *slog.Logger, fn HandlerFunc) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		data, err := fn(c)
		if err != nil {
			status := statusOf(err)
			attrs := []any{
				slog.String("method", c.Request.Method),
				slog.String("url", c.Request.URL.String()),
				slog.Int("status", status),
				slog.String("error", err.Error()),
			}
			if status >= http.StatusInternalServerError {
				logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
			} else {
				logger.WarnContext(c.Request.Context(), "request rejected", attrs...)
			}
			if !c.Writer.Written() {
				Error(c, err)
			}
			return
		}
		if c.Writer.Written() {
			return
		}
		Success(c, data)
	}
}

// statusOf maps err to its HTTP status. Work cut short by the request
// deadline is a timeout whatever layer reported it.
func statusOf(err error) int {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout
	}
	return domain.HTTPStatusCode(err)
}

// Success sends a 200 JSON response with the given data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "Success",
		Data:    data,
	})
}

// Created sends a 201 JSON response with the given data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Code:    0,
		Message: "Success",
		Data:    data,
	})
}

// Error sends a JSON error response with the status mapped from err.
// Server errors never expose their message. Validation failures from the
// binding layer are rendered per field.
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		ValidationError(c, err)
		return
	}

	status := statusOf(err)
	msg := "Internal error"
	var appErr *domain.AppError
	switch {
	case status == http.StatusRequestTimeout:
		msg = "request timeout"
	case status < http.StatusInternalServerError && errors.As(err, &appErr):
		msg = appErr.Message
	}

	c.JSON(status, Response{
		Code:    status,
		Message: msg,
	})
}

// ValidationError sends a 400 JSON response with per-field validation error details.
// It detects validator.ValidationErrors and extracts field-level messages.
func ValidationError(c *gin.Context, err error) {
	validationErrorWithType(c, err, nil)
}

// BindAndValidate binds the request to obj and validates it.
// On failure it sends a ValidationError response and returns false.
//
//	if !pkg.BindAndValidate(c, &req) { return nil, nil }
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		validationErrorWithType(c, err, obj)
		return false
	}
	return true
}

// validationErrorWithType sends a 400 validation error response.
// When obj is non-nil, it reflects on the struct to prefer form or JSON tag names.
func validationErrorWithType(c *gin.Context, err error, obj any) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, Response{
			Code:    http.StatusBadRequest,
			Message: "bad request",
		})
		return
	}

	tags := buildTagMap(obj)

	fieldErrors := make(map[string]string, len(ve))
	for _, fe := range ve {
		name, ok := tags[fe.StructField()]
		if !ok {
			name = strings.ToLower(fe.Field())
		}
		fieldErrors[name] = fieldMessage(fe)
	}

	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Code:    http.StatusBadRequest,
		Message: "validation error",
		Errors:  fieldErrors,
	})
}

// fieldMessage renders a readable message for one failed rule.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return "Must be at least " + fe.Param() + " characters"
		}
		return "Must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "Must be at most " + fe.Param() + " characters"
		}
		return "Must be at most " + fe.Param()
	case "gte":
		return "Must be at least " + fe.Param()
	case "lte":
		return "Must be at most " + fe.Param()
	case "oneof":
		return "Must be one of: " + fe.Param()
	}
	msg := "Failed on the '" + fe.Tag() + "' rule"
	if fe.Param() != "" {
		msg += " (" + fe.Param() + ")"
	}
	return msg
}

// buildTagMap returns a map from struct field name to its form tag name,
// falling back to the JSON tag. If obj is nil or not a struct (pointer), it
// returns nil.
func buildTagMap(obj any) map[string]string {
	if obj == nil {
		return nil
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	m := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if name := parseTagName(f.Tag.Get("form")); name != "" {
			m[f.Name] = name
			continue
		}
		if name := parseTagName(f.Tag.Get("json")); name != "" {
			m[f.Name] = name
		}
	}
	return m
}

// parseTagName extracts the field name from a struct tag value.
func parseTagName(tag string) string {
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return ""
	}
	return name
}
