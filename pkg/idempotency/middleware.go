package idempotency

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// HeaderIdempotencyKey is the HTTP header for idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"

	// HeaderReplayed marks a response served from the store
	HeaderReplayed = "Idempotent-Replayed"

	// MaxBodySize bounds the body read for hashing
	MaxBodySize = 1 << 20
)

// responseWriter wraps gin.ResponseWriter to capture response
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays the stored response for a repeated Idempotency-Key on
// POST and DELETE. Requests without the header pass through. Store failures
// fail open; 5xx responses are not stored so the client can retry.
func Middleware(store Store, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if err := ValidateKey(key); err != nil {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodySize))
		if err != nil {
			abort(c, http.StatusBadRequest, "INVALID_REQUEST", "failed to read request body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		storeKey := fmt.Sprintf("%s %s %s", c.Request.Method, c.Request.URL.Path, key)
		hash := HashRequest(c.Request.Method, c.Request.URL.Path, body)
		log := logger.With(zap.String("idempotency_key", key), zap.String("path", c.Request.URL.Path))

		existing, found, err := store.Get(ctx, storeKey)
		if err != nil {
			log.Error("Failed to check idempotency key", zap.Error(err))
			c.Next()
			return
		}
		if found {
			replay(c, existing, hash, log)
			return
		}

		reserved, err := store.Reserve(ctx, Record{Key: storeKey, RequestHash: hash}, ttl)
		if err != nil {
			log.Error("Failed to reserve idempotency key", zap.Error(err))
			c.Next()
			return
		}
		if !reserved {
			abort(c, http.StatusConflict, "CONFLICT", "a request with this idempotency key is in progress")
			return
		}

		writer := &responseWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(ctx, storeKey); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
			return
		}

		rec := Record{Key: storeKey, RequestHash: hash, Status: status, Body: writer.body.Bytes()}
		if err := store.Complete(ctx, rec, ttl); err != nil {
			log.Error("Failed to store idempotent response", zap.Error(err))
			return
		}
		log.Debug("Stored idempotent response", zap.Int("status", status))
	}
}

func replay(c *gin.Context, rec *Record, hash string, log *zap.Logger) {
	switch {
	case rec.RequestHash != hash:
		log.Warn("Idempotency key reused with a different request")
		abort(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED",
			"idempotency key was already used for a different request")
	case rec.Pending:
		abort(c, http.StatusConflict, "CONFLICT", "a request with this idempotency key is in progress")
	default:
		log.Info("Replaying idempotent response", zap.Int("status", rec.Status))
		c.Header(HeaderReplayed, "true")
		c.Data(rec.Status, "application/json; charset=utf-8", rec.Body)
		c.Abort()
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
		"details": gin.H{"request_id": c.GetString("request_id")},
	})
}
