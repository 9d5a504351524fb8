package server

import (
	"net/http"
	"net/http/httptest"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	appmiddleware "storefront-payments/internal/middleware"
	"storefront-payments/internal/repository"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, adminToken string) http.Handler {
	t.Helper()
	db, err := client.OpenDatabase(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)

	cfg := &config.Config{
		Session:   config.Session{CookieName: "zenid"},
		Admin:     config.Admin{Token: adminToken},
		Telemetry: config.Telemetry{ServiceName: "storefront-payments"},
	}
	return NewServer(cfg, repository.NewSessionRepository(db), Handlers{}).Handler()
}

func get(h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, "")

	rec := get(h, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, http.StatusNotFound, get(h, "/api/nope", nil).Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, get(newTestServer(t, ""), "/admin/recurring/I-1", nil).Code)

	h := newTestServer(t, "s3cret")
	rec := get(h, "/admin/recurring/I-1", map[string]string{appmiddleware.AdminHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
