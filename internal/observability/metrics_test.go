package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFullMethod(t *testing.T) {
	service, method := splitFullMethod("/grpc.health.v1.Health/Check")
	assert.Equal(t, "grpc.health.v1.Health", service)
	assert.Equal(t, "Check", method)

	service, method = splitFullMethod("bogus")
	assert.Equal(t, "unknown", service)
	assert.Equal(t, "unknown", method)
}

func TestHTTPMetricsMiddlewareCountsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMetricsMiddleware())
	r.GET("/conversations/:userId", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/conversations/:userId", "200"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/conversations/:userId", "200"))
	assert.Equal(t, before+1, after)
}

func TestMessagingCounters(t *testing.T) {
	before := testutil.ToFloat64(messagesSentTotal.WithLabelValues("text"))
	IncMessageSent("text")
	assert.Equal(t, before+1, testutil.ToFloat64(messagesSentTotal.WithLabelValues("text")))

	readBefore := testutil.ToFloat64(messagesReadTotal)
	AddMessagesRead(3)
	assert.Equal(t, readBefore+3, testutil.ToFloat64(messagesReadTotal))
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4242"
	assert.Equal(t, "10.0.0.5", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", IPFromRequest(req))
}
