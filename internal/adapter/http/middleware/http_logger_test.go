package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func TestLogging_RestoresRawBodyAndRedacts(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&logs, nil))

	r := gin.New()
	r.Use(Logging(l))
	var seen []byte
	r.POST("/echo", func(c *gin.Context) {
		seen, _ = io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"client_secret": "pi_1_secret", "ok": true})
	})

	// key order and spacing must survive untouched
	body := `{"password": "hunter2",  "user":"ana"}`
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, string(seen))
	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	assert.Contains(t, w.Body.String(), "pi_1_secret")

	out := logs.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "pi_1_secret")
	assert.Contains(t, out, "req-1")
}

func TestLogging_LargeBodyNotLogged(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&logs, nil))

	r := gin.New()
	r.Use(Logging(l))
	var n int
	r.POST("/big", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		n = len(b)
		c.Status(http.StatusNoContent)
	})

	payload, err := json.Marshal(map[string]string{"secret": "s3", "blob": strings.Repeat("x", maxLoggedBody)})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/big", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, len(payload), n)
	assert.NotContains(t, logs.String(), "s3")
	assert.Contains(t, logs.String(), "bytes, not logged")
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestLogging_ReadsOnlyTheLoggedPrefix(t *testing.T) {
	r := gin.New()
	r.Use(Logging(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	r.POST("/limited", func(c *gin.Context) {
		_, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 64<<10))
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusNoContent)
	})

	body := &countingReader{r: bytes.NewReader(bytes.Repeat([]byte("a"), 4<<20))}
	req := httptest.NewRequest(http.MethodPost, "/limited", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	// logger prefix plus what the handler's limit let through
	assert.LessOrEqual(t, body.n, maxLoggedBody+1+(64<<10)+1+32*1024)
}

func TestRedactJSON(t *testing.T) {
	got := redactJSON([]byte(`{"Authorization":"Bearer x","nested":{"token":"t"},"list":[{"secret":"s"}],"keep":1}`))
	var m map[string]any
	require.NoError(t, json.Unmarshal(got, &m))
	assert.Equal(t, "***redacted***", m["Authorization"])
	assert.Equal(t, "***redacted***", m["nested"].(map[string]any)["token"])
	assert.Equal(t, "***redacted***", m["list"].([]any)[0].(map[string]any)["secret"])
	assert.Equal(t, 1.0, m["keep"])

	assert.Equal(t, "not json", string(redactJSON([]byte("not json"))))
}
