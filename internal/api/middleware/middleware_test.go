package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"Parley/internal/pkg/consts"
)

type fakeSession struct {
	userID string
}

func (s fakeSession) CurrentUserID() string { return s.userID }
func (s fakeSession) IsAuthenticated() bool { return s.userID != "" }

func TestResolve(t *testing.T) {
	cases := []struct {
		name   string
		meta   RouteMeta
		authed bool
		want   string
	}{
		{"root always redirects", RouteMeta{Redirect: ChatPath}, false, ChatPath},
		{"chat requires auth", RouteMeta{RequiresAuth: true}, false, LoginPath},
		{"chat allowed when authed", RouteMeta{RequiresAuth: true}, true, ""},
		{"login allowed for guest", RouteMeta{RequiresGuest: true}, false, ""},
		{"login redirects when authed", RouteMeta{RequiresGuest: true}, true, ChatPath},
		{"open route", RouteMeta{}, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.meta, tc.authed))
		})
	}
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(consts.UserIDKey))
	})...)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuard(t *testing.T) {
	r := newRouter(Guard(RouteMeta{RequiresAuth: true}, fakeSession{}))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))

	r = newRouter(Guard(RouteMeta{RequiresAuth: true}, fakeSession{userID: "u1"}))
	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(fakeSession{}))
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":401`)

	r = newRouter(AuthMiddleware(fakeSession{userID: "u1"}))
	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "u1", w.Body.String())
}

func TestCORS(t *testing.T) {
	r := newRouter(CORSMiddleware([]string{"http://app.local"}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://app.local")
	w := serve(r, req)
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTraceMiddleware(t *testing.T) {
	r := newRouter(TraceMiddleware())
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(consts.TraceHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(consts.TraceHeader, "trace-1")
	w = serve(r, req)
	assert.Equal(t, "trace-1", w.Header().Get(consts.TraceHeader))
}
