package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/httpserver"
	"github.com/dejobratic/storefront/internal/identity/adapters"
	identityhttp "github.com/dejobratic/storefront/internal/identity/adapters/http"
	"github.com/dejobratic/storefront/internal/identity/adapters/memory"
	"github.com/dejobratic/storefront/internal/identity/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	handler http.Handler
	service *app.Service
	tokens  *auth.Tokens
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tokens, err := auth.NewTokens("jwt-test-secret", time.Hour)
	require.NoError(t, err)
	service := app.NewService(memory.NewRepository(), adapters.NewBcryptHasher(bcrypt.MinCost), tokens, logger)

	router := httpserver.NewRouter(httpserver.Options{Logger: logger}, identityhttp.NewHandler(service, tokens, false, logger))
	return &testAPI{handler: router, service: service, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func (a *testAPI) register(t *testing.T, name, email string) (string, string) {
	t.Helper()
	rec, body := a.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := body["user"].(map[string]any)
	return user["id"].(string), body["token"].(string)
}

func errorKind(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	kind, _ := errBody["kind"].(string)
	return kind
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Ana Marić", "email": "ana@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ana@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec, body = api.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	token := body["token"].(string)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec, body = api.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana Marić", body["user"].(map[string]any)["name"])
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Ana Marić", "ana@example.com")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"short name", map[string]any{"name": "Al", "email": "al@example.com", "password": "password123"}},
		{"bad email", map[string]any{"name": "Alice", "email": "alice", "password": "password123"}},
		{"short password", map[string]any{"name": "Alice", "email": "alice@example.com", "password": "short"}},
		{"duplicate email", map[string]any{"name": "Other Ana", "email": "ana@example.com", "password": "password123"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := api.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", errorKind(body))
		})
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Ana Marić", "ana@example.com")

	rec, body := api.do(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorKind(body))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogoutClearsCookie(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/auth/logout", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestProfileUpdates(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.register(t, "Ana Marić", "ana@example.com")

	rec, body := api.do(t, http.MethodPut, "/auth/me", token, map[string]any{"name": "Ana M"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana M", body["user"].(map[string]any)["name"])

	rec, _ = api.do(t, http.MethodPut, "/auth/password", token, map[string]any{
		"old_password": "password123", "new_password": "new-password", "confirm_password": "new-password",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/auth/login", "", map[string]any{"email": "ana@example.com", "password": "new-password"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminUsers(t *testing.T) {
	api := newTestAPI(t)
	anaID, anaToken := api.register(t, "Ana Marić", "ana@example.com")
	adminID, _ := api.register(t, "Admin User", "admin@example.com")
	adminToken, err := api.tokens.Issue(auth.Principal{UserID: adminID, Email: "admin@example.com", Role: auth.RoleAdmin})
	require.NoError(t, err)

	t.Run("non admin is forbidden", func(t *testing.T) {
		rec, body := api.do(t, http.MethodGet, "/admin/users", anaToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", errorKind(body))
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodGet, "/admin/users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list and get", func(t *testing.T) {
		rec, body := api.do(t, http.MethodGet, "/admin/users", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 2, body["count"])

		rec, body = api.do(t, http.MethodGet, "/admin/users/"+anaID, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ana@example.com", body["user"].(map[string]any)["email"])

		rec, _ = api.do(t, http.MethodGet, "/admin/users/missing", adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update role", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodPut, "/admin/users/"+anaID, adminToken, map[string]any{"role": "root"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, body := api.do(t, http.MethodPut, "/admin/users/"+anaID, adminToken, map[string]any{"role": "admin"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "admin", body["user"].(map[string]any)["role"])
	})

	t.Run("delete", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodDelete, "/admin/users/"+adminID, adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, _ = api.do(t, http.MethodDelete, "/admin/users/"+anaID, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = api.do(t, http.MethodGet, "/admin/users/"+anaID, adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
