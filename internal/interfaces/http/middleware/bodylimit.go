package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storefront/ledger/internal/interfaces/http/dto"
)

// BodyLimitConfig sets the request body limit. RouteLimits overrides MaxBytes
// for specific routes, keyed by gin's full route path
// (e.g. "/api/v1/bank-accounts/:id/statements").
type BodyLimitConfig struct {
	MaxBytes    int64
	RouteLimits map[string]int64
}

// BodyLimit applies one limit to every route
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return BodyLimitWithConfig(BodyLimitConfig{MaxBytes: maxBytes})
}

// BodyLimitWithConfig rejects requests whose declared size exceeds the route's
// limit and caps the body reader for requests that do not declare one
func BodyLimitWithConfig(cfg BodyLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := cfg.MaxBytes
		if routeLimit, ok := cfg.RouteLimits[c.FullPath()]; ok {
			limit = routeLimit
		}
		if limit <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				GetRequestID(c),
			))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
