package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/josepablo-design/marketplace/internal/logging"
)

const (
	RequestIDHeader = "X-Request-Id"
	maxLoggedBody   = 8 * 1024 // 8KB
	redacted        = "***redacted***"
)

var redactedKeys = map[string]bool{
	"password":      true,
	"authorization": true,
	"token":         true,
	"access_token":  true,
	"secret":        true,
	"client_secret": true,
	"clientsecret":  true,
}

// Logging logs one line per request and stores a request-scoped logger
// (req_id, method, route) in both the gin and the request context.
// JSON bodies are logged redacted; handlers always read the original bytes.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, reqID)
		}
		c.Header(RequestIDHeader, reqID)

		l := base.With(
			"req_id", reqID,
			"method", c.Request.Method,
			"path", c.FullPath(), // empty if no route matched
			"remote", c.ClientIP(),
		)
		logging.With(c, l)

		reqBody := captureRequest(c)
		rec := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = rec

		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.Int64("dur_ms", time.Since(start).Milliseconds()),
			slog.Int("resp_bytes", c.Writer.Size()),
		}
		if reqBody != "" {
			attrs = append(attrs, slog.String("req_body", reqBody))
		}
		if strings.Contains(c.Writer.Header().Get("Content-Type"), "application/json") {
			attrs = append(attrs, slog.String("resp_body", bodyForLog(rec.buf.Bytes(), c.Writer.Size())))
		}
		if len(c.Params) > 0 {
			attrs = append(attrs, slog.Any("params", c.Params))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		level := slog.LevelInfo
		if status >= http.StatusBadRequest {
			level = slog.LevelError
		}
		l.LogAttrs(c.Request.Context(), level, "http_request", attrs...)
	}
}

// captureRequest reads at most maxLoggedBody+1 bytes of a JSON request body
// and puts them back in front of the unread rest, so handlers see the exact
// stream and their own size limits still apply.
func captureRequest(c *gin.Context) string {
	if c.Request.Body == nil || !strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		return ""
	}
	body := c.Request.Body
	var head bytes.Buffer
	_, err := io.CopyN(&head, body, maxLoggedBody+1)
	c.Request.Body = replayBody{Reader: io.MultiReader(bytes.NewReader(head.Bytes()), body), Closer: body}
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	if head.Len() > maxLoggedBody {
		return "(more than " + strconv.Itoa(maxLoggedBody) + " bytes, not logged)"
	}
	return bodyForLog(head.Bytes(), head.Len())
}

type replayBody struct {
	io.Reader
	io.Closer
}

// bodyForLog redacts a JSON body. Bodies past the limit are not logged: a cut
// document cannot be parsed, so its secrets could not be redacted.
func bodyForLog(b []byte, size int) string {
	if size > maxLoggedBody || len(b) > maxLoggedBody {
		return "(" + strconv.Itoa(size) + " bytes, not logged)"
	}
	return string(redactJSON(b))
}

type responseRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody + 1 - w.buf.Len(); room > 0 {
		w.buf.Write(b[:min(len(b), room)])
	}
	return w.ResponseWriter.Write(b)
}

func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw // not JSON
	}
	out, err := json.Marshal(scrub(v))
	if err != nil {
		return raw
	}
	return out
}

func scrub(x any) any {
	switch v := x.(type) {
	case map[string]any:
		for k, val := range v {
			if redactedKeys[strings.ToLower(k)] {
				v[k] = redacted
			} else {
				v[k] = scrub(val)
			}
		}
	case []any:
		for i := range v {
			v[i] = scrub(v[i])
		}
	}
	return x
}
