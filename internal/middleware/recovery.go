package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/goboot/internal/domain"
	"github.com/simp-lee/goboot/internal/pkg"
)

// Recovery recovers from panics, logs the value with its stack trace and
// answers with the standard 500 envelope:
//
//	{"code": 500, "message": "Internal error"}
//
// Nothing is written when the handler already started its response.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			logger.ErrorContext(c.Request.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)

			c.Abort()
			if c.Writer.Written() {
				return
			}
			pkg.Error(c, domain.NewAppError(domain.CodeInternal, "panic", fmt.Errorf("%v", rec)))
		}()
		c.Next()
	}
}
