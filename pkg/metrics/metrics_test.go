package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsMatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := MustNew(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/catalog/courses/:slug", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/catalog/courses/go-101", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/catalog/courses/:slug", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestDomainCounters(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())
	m.Transition("course_transaction", "unpaid", "paid")
	m.Registration("already_registered")
	m.TransactionsExpired(3)
	m.TransactionsExpired(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("course_transaction", "unpaid", "paid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("already_registered")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.expired))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.Transition("x", "a", "b") })
}
