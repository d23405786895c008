package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"AlphaRadar/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_ReturnsJSON500(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Recover(logger.NewWriter(&buf)))
	e.GET("/boom", func(c echo.Context) error {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal Server Error")
	assert.Contains(t, buf.String(), "kaboom")
}

func corsEcho(origins ...string) *echo.Echo {
	e := echo.New()
	e.Use(CORS(RadarCORS(origins...)))
	e.GET("/api/assets", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func TestCORS_PreflightAnyOrigin(t *testing.T) {
	e := corsEcho("*")

	req := httptest.NewRequest(http.MethodOptions, "/api/assets", nil)
	req.Header.Set(echo.HeaderOrigin, "http://radar.local")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestCORS_ConfiguredOrigins(t *testing.T) {
	e := corsEcho("https://radar.example/", "https://ops.example")

	tests := []struct {
		name   string
		origin string
		allow  string
	}{
		{"listed origin", "https://radar.example", "https://radar.example"},
		{"case and trailing slash ignored", "HTTPS://OPS.example/", "HTTPS://OPS.example/"},
		{"unlisted origin", "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
			req.Header.Set(echo.HeaderOrigin, tt.origin)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.allow, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
			assert.Equal(t, echo.HeaderOrigin, rec.Header().Get(echo.HeaderVary))
		})
	}
}

func TestCORS_UnlistedPreflightNotAnswered(t *testing.T) {
	e := corsEcho("https://radar.example")

	req := httptest.NewRequest(http.MethodOptions, "/api/assets", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods))
}

func TestCORS_NoOriginPassesThrough(t *testing.T) {
	e := corsEcho("https://radar.example")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/assets", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestMetrics_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Metrics(logger.NewWriter(&buf), 0))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusServiceUnavailable) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, buf.String(), "http request failed")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(502))
}
