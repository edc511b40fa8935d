package resolver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(snap *memorySnapshot) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, newTestService(snap, time.Now()))
	r := chi.NewRouter()
	r.Route("/authz", handler.MountRoutes)
	return r
}

func TestCheckEndpointAllows(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[7] = true
	snap.groupCaps[7] = []timedCap{{code: "informes.exportar"}}
	router := newTestRouter(snap)

	body := `{"user_id":7,"capability":"informes.exportar","resource":"report:3"}`
	req := httptest.NewRequest(http.MethodPost, "/authz/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Allowed)
}

func TestCheckEndpointDeniesMissingCapability(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[7] = true
	router := newTestRouter(snap)

	body := `{"user_id":7,"capability":"informes.exportar"}`
	req := httptest.NewRequest(http.MethodPost, "/authz/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Allowed bool `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Allowed)
}

func TestCheckEndpointUnknownUser(t *testing.T) {
	router := newTestRouter(newMemorySnapshot())

	body := `{"user_id":99,"capability":"informes.exportar"}`
	req := httptest.NewRequest(http.MethodPost, "/authz/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckEndpointValidation(t *testing.T) {
	router := newTestRouter(newMemorySnapshot())

	req := httptest.NewRequest(http.MethodPost, "/authz/check", strings.NewReader(`{"user_id":7}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEffectiveEndpoint(t *testing.T) {
	snap := newMemorySnapshot()
	snap.users[7] = true
	snap.groupCaps[7] = []timedCap{{code: "panel.metricas.ver"}}
	router := newTestRouter(snap)

	req := httptest.NewRequest(http.MethodGet, "/authz/users/7/capabilities", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID       int64    `json:"user_id"`
		Capabilities []string `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(7), resp.UserID)
	require.Equal(t, []string{"panel.metricas.ver"}, resp.Capabilities)
}
