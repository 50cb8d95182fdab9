package wire

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/api/config"
	"Parley/internal/api/dto"
	"Parley/internal/pkg/cache"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return &config.Config{
		Backend:  config.BackendConfig{Driver: BackendMemory},
		Cache:    config.CacheConfig{Driver: cache.DriverSQLite, Path: filepath.Join(t.TempDir(), "cache.db")},
		Identity: config.IdentityConfig{JWTSecret: "test-secret", Issuer: "Parley", TokenTTL: time.Hour},
		Sync:     config.SyncConfig{Policy: "auto", Optimistic: true, PendingMatchWindow: time.Minute, TypingTTL: time.Second},
	}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var res apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w, res
}

func buildApp(t *testing.T, cfg *config.Config) *ApplicationContainer {
	t.Helper()
	app, err := BuildApplication(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func signIn(t *testing.T, app *ApplicationContainer, email string) {
	t.Helper()
	_, res := call(t, app.Router, http.MethodPost, "/api/session/register", dto.RegisterDTO{Email: email, Password: "secret123", DisplayName: "Alice"})
	require.Equal(t, 200, res.Code, res.Message)
	_, res = call(t, app.Router, http.MethodPost, "/api/session/login", dto.LoginDTO{Email: email, Password: "secret123"})
	require.Equal(t, 200, res.Code, res.Message)
}

func TestBuildApplicationRejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Driver = "cassandra"
	_, err := BuildApplication(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Cache.Driver = "etcd"
	_, err = BuildApplication(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Sync.Policy = "eventual"
	_, err = BuildApplication(context.Background(), cfg)
	assert.Error(t, err)
}

func TestGuardRedirects(t *testing.T) {
	app := buildApp(t, testConfig(t))

	w, _ := call(t, app.Router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/chat", w.Header().Get("Location"))

	w, _ = call(t, app.Router, http.MethodGet, "/chat", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w, res := call(t, app.Router, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, res.Code)

	signIn(t, app, "alice@example.com")

	w, _ = call(t, app.Router, http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/chat", w.Header().Get("Location"))

	w, res = call(t, app.Router, http.MethodGet, "/chat", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, res.Code)
}

func TestChatFlowOverHTTP(t *testing.T) {
	app := buildApp(t, testConfig(t))

	_, res := call(t, app.Router, http.MethodGet, "/api/chat/state", nil)
	assert.Equal(t, 401, res.Code)

	_, res = call(t, app.Router, http.MethodPost, "/api/session/login", dto.LoginDTO{Email: "nobody@example.com", Password: "secret123"})
	assert.Equal(t, 401, res.Code)

	_, res = call(t, app.Router, http.MethodPost, "/api/session/login", map[string]string{"email": "not-an-email"})
	assert.Equal(t, 400, res.Code)

	signIn(t, app, "alice@example.com")
	require.True(t, app.Session.IsAuthenticated())

	_, res = call(t, app.Router, http.MethodPost, "/api/chat/open", dto.OpenChatDTO{ChatID: "general"})
	require.Equal(t, 200, res.Code, res.Message)

	_, res = call(t, app.Router, http.MethodPost, "/api/chat/messages", dto.SendMessageDTO{Text: "hello"})
	require.Equal(t, 200, res.Code, res.Message)
	var sent dto.MessageDTO
	require.NoError(t, json.Unmarshal(res.Data, &sent))
	assert.Equal(t, "hello", sent.Text)
	assert.Equal(t, "Alice", sent.SenderName)

	_, res = call(t, app.Router, http.MethodGet, "/api/chat/state", nil)
	require.Equal(t, 200, res.Code)
	var state dto.ChatStateDTO
	require.NoError(t, json.Unmarshal(res.Data, &state))
	assert.Equal(t, "general", state.ActiveChatID)
	require.Len(t, state.Messages, 1)
	assert.False(t, state.Messages[0].Pending)
	assert.True(t, state.Messages[0].Read)

	_, res = call(t, app.Router, http.MethodPost, "/api/chat/messages", dto.SendMessageDTO{Text: "hi", Type: "video"})
	assert.Equal(t, 400, res.Code)

	_, res = call(t, app.Router, http.MethodPost, "/api/session/logout", nil)
	require.Equal(t, 200, res.Code, res.Message)
	assert.False(t, app.Session.IsAuthenticated())

	_, res = call(t, app.Router, http.MethodPost, "/api/chat/messages", dto.SendMessageDTO{Text: "hello"})
	assert.Equal(t, 401, res.Code)
}

func TestSessionSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Driver = BackendMemory

	first, err := BuildApplication(context.Background(), cfg)
	require.NoError(t, err)
	signIn(t, first, "alice@example.com")
	_, res := call(t, first.Router, http.MethodPost, "/api/theme/toggle", nil)
	require.Equal(t, 200, res.Code)
	require.NoError(t, first.Close(context.Background()))

	second := buildApp(t, cfg)
	assert.True(t, second.Themes.IsDark())
	// 令牌在缓存中，身份恢复；内存后端的用户资料重新创建
	assert.True(t, second.Session.IsAuthenticated())
	assert.False(t, second.Session.Loading())
}

func TestEventsPushInitialState(t *testing.T) {
	app := buildApp(t, testConfig(t))
	srv := httptest.NewServer(app.Router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	seen := map[string]bool{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for !seen["theme"] || !seen["session"] {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		seen[frame.Type] = true
		if frame.Type == "theme" {
			var theme dto.ThemeDTO
			require.NoError(t, json.Unmarshal(frame.Data, &theme))
			assert.Equal(t, "light", theme.Theme)
		}
	}

	_, res := call(t, app.Router, http.MethodPut, "/api/theme", dto.ThemeDTO{Theme: "dark"})
	require.Equal(t, 200, res.Code)
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		if bytes.Contains(raw, []byte(`"type":"theme"`)) {
			assert.Contains(t, string(raw), `"dark"`)
			break
		}
	}
}
