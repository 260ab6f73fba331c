package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/glasserp/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client-chosen key that deduplicates
// retried mutations.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// Idempotency rejects a mutating request whose idempotency key was already
// processed within the TTL. Requests without a key pass through untouched.
// A store failure fails open; dropping deduplication is preferable to
// refusing writes.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		fresh, err := store.MarkProcessed(c.Request.Context(), key, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable, skipping deduplication",
				zap.String("key", key),
				zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			requestID := c.GetString("request_id")
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeDuplicateRequest,
				"Request with this idempotency key was already processed",
				requestID,
			))
			return
		}

		c.Next()
	}
}
