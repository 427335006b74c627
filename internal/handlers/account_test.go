package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playtube/api/internal/apperr"
	"playtube/api/internal/config"
	"playtube/api/internal/models"
	"playtube/api/internal/repository"
	"playtube/api/internal/service"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]models.User)}
}

func (m *memoryUserStore) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repository.ErrDuplicateUser
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return nil
}

func (m *memoryUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memoryUserStore) FindByUsernameOrEmail(_ context.Context, username, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username || user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memoryUserStore) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryUserStore) SetRefreshToken(_ context.Context, id string, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if token != nil {
		value := *token
		user.RefreshToken = &value
	} else {
		user.RefreshToken = nil
	}
	m.users[id] = user
	return nil
}

func (m *memoryUserStore) SetPasswordHash(_ context.Context, id string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	m.users[id] = user
	return nil
}

func (m *memoryUserStore) UpdateProfile(_ context.Context, id, fullName, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	user.FullName = fullName
	user.Email = email
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return user, nil
}

type stubUploader struct{}

func (stubUploader) StoreImage(_ context.Context, header *multipart.FileHeader, folder string) (string, error) {
	if header == nil {
		return "", apperr.New(apperr.Validation, "file is required")
	}
	return "https://cdn.example.com/" + folder + "/" + header.Filename, nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			AccessTokenSecret:  "access-secret",
			RefreshTokenSecret: "refresh-secret",
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    time.Hour,
		},
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	store := newMemoryUserStore()
	logger := zerolog.Nop()
	accounts := service.NewAccountService(store, stubUploader{}, cfg, logger)

	h := HandlerSet{
		log:      logger,
		cfg:      cfg,
		accounts: accounts,
		users:    store,
	}

	engine := gin.New()
	h.Register(engine.Group("/api"))
	return engine
}

func doRegister(t *testing.T, router *gin.Engine, username, email string) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("username", username))
	require.NoError(t, writer.WriteField("fullName", "Alice A"))
	require.NoError(t, writer.WriteField("email", email))
	require.NoError(t, writer.WriteField("password", "secret123"))

	part, err := writer.CreateFormFile("avatar", "avatar.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func doLogin(t *testing.T, router *gin.Engine, username, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func cookieValue(resp *httptest.ResponseRecorder, name string) string {
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	resp := doRegister(t, router, "Alice", "a@x.com")
	require.Equal(t, http.StatusCreated, resp.Code)

	body := decodeBody(t, resp)
	assert.EqualValues(t, 201, body["statusCode"])
	assert.Equal(t, true, body["success"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
	assert.Equal(t, "a@x.com", data["email"])
	assert.NotEmpty(t, data["avatarUrl"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "passwordHash")
	assert.NotContains(t, data, "refreshToken")
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	require.Equal(t, http.StatusCreated, doRegister(t, router, "alice", "a@x.com").Code)

	resp := doRegister(t, router, "alice", "other@x.com")
	require.Equal(t, http.StatusConflict, resp.Code)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, 409, body["statusCode"])
	assert.Nil(t, body["data"])

	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	assert.Empty(t, errs)
}

func TestRegisterEndpointMissingAvatar(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("username", "alice"))
	require.NoError(t, writer.WriteField("fullName", "Alice A"))
	require.NoError(t, writer.WriteField("email", "a@x.com"))
	require.NoError(t, writer.WriteField("password", "secret123"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	resp := doLogin(t, router, "alice", "a@x.com", "secret123")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["accessToken"])
	assert.NotEmpty(t, data["refreshToken"])

	user, ok := data["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", user["username"])

	var access, refresh *http.Cookie
	for _, cookie := range resp.Result().Cookies() {
		switch cookie.Name {
		case "accessToken":
			access = cookie
		case "refreshToken":
			refresh = cookie
		}
	}
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.True(t, refresh.HttpOnly)
	assert.True(t, refresh.Secure)
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	resp := doLogin(t, router, "alice", "a@x.com", "wrong")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, 401, body["statusCode"])
}

func TestRefreshEndpointSingleUse(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	login := doLogin(t, router, "alice", "a@x.com", "secret123")
	refreshToken := cookieValue(login, "refreshToken")
	require.NotEmpty(t, refreshToken)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
	router.ServeHTTP(first, req)
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
	router.ServeHTTP(second, req)
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestRefreshEndpointFromBody(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	login := doLogin(t, router, "alice", "a@x.com", "secret123")
	refreshToken := cookieValue(login, "refreshToken")

	payload, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["accessToken"])
}

func TestLogoutEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	login := doLogin(t, router, "alice", "a@x.com", "secret123")
	accessToken := cookieValue(login, "accessToken")
	refreshToken := cookieValue(login, "refreshToken")

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == "accessToken" || cookie.Name == "refreshToken" {
			assert.Less(t, cookie.MaxAge, 0, "%s cookie cleared", cookie.Name)
		}
	}

	// The stored refresh token is gone, so the old one no longer refreshes.
	after := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: refreshToken})
	router.ServeHTTP(after, req)
	assert.Equal(t, http.StatusUnauthorized, after.Code)
}

func TestMeEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	login := doLogin(t, router, "alice", "a@x.com", "secret123")
	accessToken := cookieValue(login, "accessToken")

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["username"])
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/users/logout"},
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodPost, "/api/v1/users/change-password"},
		{http.MethodPatch, "/api/v1/users/update-account"},
	} {
		resp := httptest.NewRecorder()
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(resp, req)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, "%s %s", tc.method, tc.path)
	}
}

func TestChangePasswordEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	login := doLogin(t, router, "alice", "a@x.com", "secret123")
	accessToken := cookieValue(login, "accessToken")

	wrong, err := json.Marshal(map[string]string{
		"oldPassword": "nope",
		"newPassword": "newsecret456",
	})
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(wrong))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	good, err := json.Marshal(map[string]string{
		"oldPassword": "secret123",
		"newPassword": "newsecret456",
	})
	require.NoError(t, err)

	resp = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(good))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, http.StatusUnauthorized, doLogin(t, router, "alice", "a@x.com", "secret123").Code)
	assert.Equal(t, http.StatusOK, doLogin(t, router, "alice", "a@x.com", "newsecret456").Code)
}

func TestUpdateAccountEndpoint(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	doRegister(t, router, "alice", "a@x.com")

	login := doLogin(t, router, "alice", "a@x.com", "secret123")
	accessToken := cookieValue(login, "accessToken")

	missing, err := json.Marshal(map[string]string{"fullName": "Alice B"})
	require.NoError(t, err)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/update-account", bytes.NewReader(missing))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	full, err := json.Marshal(map[string]string{
		"fullName": "Alice B",
		"email":    "b@x.com",
	})
	require.NoError(t, err)

	resp = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/users/update-account", bytes.NewReader(full))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody(t, resp)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice B", data["fullName"])
	assert.Equal(t, "b@x.com", data["email"])
}
