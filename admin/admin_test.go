package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maxpert/groupbus/cfg"
	"github.com/maxpert/groupbus/db"
	"github.com/maxpert/groupbus/group"
	"github.com/maxpert/groupbus/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router http.Handler
	group  *group.Group
	store  *db.MessageStore
}

func setupAdmin(t *testing.T) *testEnv {
	t.Helper()

	store, err := db.OpenMessageStore(filepath.Join(t.TempDir(), "messages.sqlite"), db.StoreOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g, err := group.New(group.Options{
		GroupID:       "group.com.example.app",
		Store:         store,
		Bus:           notify.NewHub(),
		Settings:      store.Settings(),
		AllowedTopics: []string{"sync", "session.*"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	return &testEnv{
		router: NewRouter(http.NotFoundHandler(), NewAdminHandlers(g, store)),
		group:  g,
		store:  store,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	env := setupAdmin(t)
	rec, _ := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPublishAndList(t *testing.T) {
	env := setupAdmin(t)

	for _, p := range []string{"a", "b", "c"} {
		rec, body := env.do(t, http.MethodPost, "/admin/topics/sync", p)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "sync", data["topic"])
	}

	rec, body := env.do(t, http.MethodGet, "/admin/topics/sync/messages?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "a", data[0].(map[string]interface{})["payload"])
	assert.Equal(t, true, body["has_more"])

	lastID := uint64(body["last_id"].(float64))
	rec, body = env.do(t, http.MethodGet, "/admin/topics/sync/messages?after="+jsonNumber(lastID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "c", data[0].(map[string]interface{})["payload"])
	assert.Nil(t, body["has_more"])
}

func TestPublish_Errors(t *testing.T) {
	env := setupAdmin(t)

	rec, _ := env.do(t, http.MethodPost, "/admin/topics/secrets", "x")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/admin/topics/sync/messages?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/admin/topics/sync/messages?after=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsAndClear(t *testing.T) {
	env := setupAdmin(t)

	env.do(t, http.MethodPost, "/admin/topics/sync", "a")
	env.do(t, http.MethodPost, "/admin/topics/session.login", "b")

	rec, body := env.do(t, http.MethodGet, "/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["rows"])
	assert.Equal(t, "group.com.example.app", stats["group_id"])

	rec, _ = env.do(t, http.MethodPost, "/admin/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = env.do(t, http.MethodGet, "/admin/health", "")
	health := body["data"].(map[string]interface{})
	assert.Equal(t, true, health["healthy"])
	assert.Equal(t, float64(0), health["stats"].(map[string]interface{})["rows"])
}

func TestSettingsRoutes(t *testing.T) {
	env := setupAdmin(t)

	rec, _ := env.do(t, http.MethodGet, "/admin/settings/theme", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/admin/settings/theme", `"dark"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body := env.do(t, http.MethodGet, "/admin/settings/theme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dark", body["data"].(map[string]interface{})["value"])

	rec, _ = env.do(t, http.MethodPut, "/admin/settings/theme", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/admin/settings/theme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/admin/settings/theme", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	original := cfg.Config
	defer func() { cfg.Config = original }()
	cfg.Config = cfg.Default()
	cfg.Config.Admin.Secret = "s3cret"

	env := setupAdmin(t)

	rec, _ := env.do(t, http.MethodGet, "/admin/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set(SecretHeader, "s3cret")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Basic s3cret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Health stays open
	rec, _ = env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
