package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/groweasy/groweasy/internal/testing/guard"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(RouterParams{
		Logger: slog.Default(),
		Config: &Config{},
	})
}

func TestHealthz(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestTenantHeaderRequired(t *testing.T) {
	router := testRouter(t)

	for _, header := range []string{"", "abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/products", nil)
		if header != "" {
			req.Header.Set(TenantHeader, header)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
	}
}

func TestSecureHeadersApplied(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}
