package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annel0/mmo-region/internal/auth"
	"github.com/annel0/mmo-region/internal/proto"
	"github.com/annel0/mmo-region/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminCatalogYAML = `
regions:
  - name: town
    generator:
      kind: static_area
      areas:
        - area: plaza
cells:
  - name: plaza_cell
    bounds:
      min: {x: -128, y: -128, z: -64}
      max: {x: 128, y: 128, z: 64}
    navi_patch:
      walkable:
        - bounds: {min: {x: -128, y: -128, z: 0}, max: {x: 128, y: 128, z: 0}}
areas:
  - name: plaza
    generator: {kind: single_cell, cell: plaza_cell}
`

type regionResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    world.RegionInfo `json:"data"`
}

type testEnv struct {
	server  *AdminServer
	manager *world.RegionManager
	admin   string
	viewer  string
}

func newTestEnv(t *testing.T, withAuth bool) *testEnv {
	t.Helper()
	catalog, err := proto.ParseCatalog([]byte(adminCatalogYAML))
	require.NoError(t, err)
	m := world.NewRegionManager(catalog, world.DefaultManagerConfig())
	t.Cleanup(func() { m.Shutdown(context.Background()) })

	env := &testEnv{manager: m}
	cfg := Config{Manager: m, Registerer: prometheus.NewRegistry()}
	if withAuth {
		tokens, err := auth.NewTokenIssuer(auth.GenerateSecureSecret(), time.Hour)
		require.NoError(t, err)
		env.admin, err = tokens.GenerateJWT("ops", true)
		require.NoError(t, err)
		env.viewer, err = tokens.GenerateJWT("viewer", false)
		require.NoError(t, err)
		cfg.Tokens = tokens
	}
	env.server = NewAdminServer(cfg)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestAdminServer_Health(t *testing.T) {
	env := newTestEnv(t, true)
	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"), "запрос получает trace-ID")
}

func TestAdminServer_Auth(t *testing.T) {
	env := newTestEnv(t, true)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/regions", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/regions", "garbage", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/regions", env.viewer, nil).Code)

	w := env.do(t, http.MethodPost, "/api/admin/regions", env.viewer, CreateRegionRequest{Prototype: "town"})
	assert.Equal(t, http.StatusForbidden, w.Code, "создание региона только для администратора")
	assert.Equal(t, 0, env.manager.RegionCount())
}

func TestAdminServer_RegionLifecycle(t *testing.T) {
	env := newTestEnv(t, true)
	seed := int64(42)

	w := env.do(t, http.MethodPost, "/api/admin/regions", env.admin, CreateRegionRequest{Prototype: "town", Seed: &seed})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created regionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "town", created.Data.Prototype)
	assert.Equal(t, int64(42), created.Data.Seed)
	assert.True(t, created.Data.Generated)
	id := created.Data.ID

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/regions/%#x", id), env.viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got regionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.Data.ID, "ID принимается в шестнадцатеричном виде")

	assert.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/regions/%d/shutdown", id), env.admin, nil).Code)
	assert.True(t, env.manager.GetRegion(id).IsShutdownRequested())

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/regions/%d", id), env.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/regions/%d", id), env.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/api/regions/%d", id), env.viewer, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, fmt.Sprintf("/api/admin/regions/%d/resume", id), env.admin, nil).Code,
		"без хранилища архивов восстанавливать нечего")
}

func TestAdminServer_BadRequests(t *testing.T) {
	env := newTestEnv(t, false)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/regions/abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/regions/0", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/admin/regions", "", map[string]int{"seed": 1}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/admin/regions", "", CreateRegionRequest{Prototype: "nowhere"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/admin/regions/77/shutdown", "", nil).Code)
}

func TestAdminServer_StatsAndCleanup(t *testing.T) {
	env := newTestEnv(t, false)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/admin/regions", "", CreateRegionRequest{Prototype: "town"}).Code)

	w := env.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1 regions")

	w = env.do(t, http.MethodPost, "/api/admin/cleanup", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"destroyed":0`, "свежий регион не простаивает")
}
