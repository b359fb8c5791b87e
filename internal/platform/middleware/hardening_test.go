package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maven/accumulator/internal/platform/auth"
)

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRequestTimeout(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		err := RequestTimeout(time.Second)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
		require.NoError(t, err)
	})

	t.Run("expires", func(t *testing.T) {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		slow := func(c echo.Context) error {
			<-c.Request().Context().Done()
			return c.Request().Context().Err()
		}
		err := RequestTimeout(10 * time.Millisecond)(slow)(c)
		he, ok := err.(*echo.HTTPError)
		require.True(t, ok, "got %T", err)
		assert.Equal(t, http.StatusGatewayTimeout, he.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		var hasDeadline bool
		_ = RequestTimeout(0)(func(c echo.Context) error {
			_, hasDeadline = c.Request().Context().Deadline()
			return nil
		})(c)
		assert.False(t, hasDeadline)
	})
}

func TestRateLimit_PerSubject(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e := echo.New()

	call := func(subject string) error {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), auth.SubjectKey, subject))
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	require.NoError(t, call("payer-a"))
	err := call("payer-a")
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "second call should be throttled, got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, he.Code)

	assert.NoError(t, call("payer-b"), "callers have separate buckets")
}
