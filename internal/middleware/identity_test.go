package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity())
	r.GET("/as/:id", func(c *gin.Context) {
		caller, ok := CallerID(c)
		c.JSON(http.StatusOK, gin.H{
			"request_id": c.GetString(RequestIDKey),
			"caller":     caller,
			"identified": ok,
			"allowed":    ActingAs(c, 7),
		})
	})
	return r
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/as/7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/as/7", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"request_id":"req-123"`)
}

func TestIdentity(t *testing.T) {
	r := newRouter()

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"anonymous", "", http.StatusOK, `"allowed":true`},
		{"same user", "7", http.StatusOK, `"allowed":true`},
		{"other user", "8", http.StatusOK, `"allowed":false`},
		{"malformed", "abc", http.StatusBadRequest, "invalid X-User-ID"},
		{"negative", "-1", http.StatusBadRequest, "invalid X-User-ID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/as/7", nil)
			if tc.header != "" {
				req.Header.Set("X-User-ID", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}
