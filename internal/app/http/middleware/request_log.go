package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"course-ledger/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	reqBodyLimit = 8 * 1024
	// bodies up to this size are parsed for redaction; larger ones are not logged
	reqBodyParseLimit = 64 * 1024
)

var redactedKeys = map[string]bool{
	"password":            true,
	"authorization":       true,
	"token":               true,
	"secret":              true,
	"razorpay_signature":  true,
	"signature":           true,
	"account_number":      true,
	"bank_account_number": true,
}

// redactJSON masks sensitive keys at any depth. It reports false when raw
// is not valid JSON, in which case nothing may be logged.
func redactJSON(raw []byte) ([]byte, bool) {
	var m any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	var scrub func(any) any
	scrub = func(x any) any {
		switch v := x.(type) {
		case map[string]any:
			for k, val := range v {
				if redactedKeys[strings.ToLower(k)] {
					v[k] = "***redacted***"
					continue
				}
				v[k] = scrub(val)
			}
			return v
		case []any:
			for i := range v {
				v[i] = scrub(v[i])
			}
			return v
		default:
			return v
		}
	}
	b, err := json.Marshal(scrub(m))
	if err != nil {
		return nil, false
	}
	return b, true
}

// loggableBody redacts first and truncates after, so a padded body cannot
// push secrets past the redaction step.
func loggableBody(raw []byte, size int64) string {
	if len(raw) == 0 {
		return ""
	}
	if int64(len(raw)) > reqBodyParseLimit {
		return fmt.Sprintf("<%d bytes, not logged>", size)
	}
	redacted, ok := redactJSON(raw)
	if !ok {
		return fmt.Sprintf("<%d bytes, not logged>", size)
	}
	if len(redacted) > reqBodyLimit {
		return string(redacted[:reqBodyLimit]) + "...truncated..."
	}
	return string(redacted)
}

// RequestLogger attaches a request-scoped logger (with request id) to the
// context and logs one line per request with a redacted JSON body.
func RequestLogger(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", reqID)
		}
		c.Header("X-Request-Id", reqID)

		l := base.With(
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		var reqBody string
		if strings.Contains(c.GetHeader("Content-Type"), "application/json") && c.Request.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(c.Request.Body, reqBodyParseLimit+1))
			rest := c.Request.Body
			if err == nil {
				c.Request.Body = struct {
					io.Reader
					io.Closer
				}{io.MultiReader(bytes.NewReader(raw), rest), rest}
				size := c.Request.ContentLength
				if size <= 0 {
					size = int64(len(raw))
				}
				reqBody = loggableBody(raw, size)
			}
		}

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"dur_ms", time.Since(start).Milliseconds(),
			"resp_bytes", c.Writer.Size(),
		}
		if reqBody != "" {
			attrs = append(attrs, "req_body", reqBody)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		if status >= http.StatusInternalServerError {
			l.Error("http_request", attrs...)
			return
		}
		if status >= http.StatusBadRequest {
			l.Warn("http_request", attrs...)
			return
		}
		l.Info("http_request", attrs...)
	}
}
