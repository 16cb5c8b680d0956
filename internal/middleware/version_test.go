package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func versionRequest(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Use(NewVersionMiddleware().APIVersionResolver())
	e.GET("/v1/plans", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIVersionResolver_StampsVersionHeader(t *testing.T) {
	rec := versionRequest(t, "/v1/plans")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
	assert.NotEmpty(t, rec.Header().Get("X-API-Message"))
}

func TestAPIVersionResolver_DefaultsUnversionedPaths(t *testing.T) {
	rec := versionRequest(t, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
}

func TestAPIVersionResolver_RejectsUnsupportedVersion(t *testing.T) {
	rec := versionRequest(t, "/v9/plans")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported API version")
}
