package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/simp-lee/goboot/internal/domain"
	"github.com/simp-lee/goboot/internal/pkg"
)

const claimsContextKey = "auth_claims"

// ScopeRead limits a token to safe methods.
const ScopeRead = "read"

// Claims are the bearer token claims understood by Auth.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// Auth requires an HS256 bearer token on every request outside
// publicPaths. Missing or invalid tokens are answered 401; a read-scoped
// token used with a method other than GET, HEAD or OPTIONS is answered 403.
func Auth(secret []byte, publicPaths []string, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := public[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		claims, err := parseBearer(c.GetHeader("Authorization"), secret)
		if err == nil && claims.Scope == ScopeRead && !safeMethod(c.Request.Method) {
			err = domain.NewAppError(domain.CodeAccessDenied, "read-only token", nil)
		}
		if err != nil {
			logger.WarnContext(c.Request.Context(), "request not authorized",
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("error", err.Error()),
			)
			c.Abort()
			pkg.Error(c, err)
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// GetClaims returns the claims of the authenticated request, or nil.
func GetClaims(c *gin.Context) *Claims {
	v, _ := c.Get(claimsContextKey)
	claims, _ := v.(*Claims)
	return claims
}

func parseBearer(header string, secret []byte) (*Claims, error) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, domain.NewAppError(domain.CodeUnauthorized, "missing bearer token", nil)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return nil, domain.NewAppError(domain.CodeUnauthorized, msg, err)
	}
	return claims, nil
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
