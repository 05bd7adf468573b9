package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
	failLoad bool
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]Session{}}
}

func (m *memorySessions) Load(_ context.Context, token string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, false, errors.New("redis down")
	}
	s, ok := m.sessions[token]
	if !ok {
		return nil, false, nil
	}
	s.Token = token
	return &s, true, nil
}

func (m *memorySessions) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

func (m *memorySessions) Destroy(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func testManager(store SessionStore) *SessionManager {
	return &SessionManager{Store: store, CookieName: "lms.sid", Idle: 2 * time.Hour, Logger: logrus.New()}
}

func testRouter(m *SessionManager, tokens *utils.DeskTokens, anon bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Middleware())
	r.POST("/login", func(c *gin.Context) {
		if err := m.Start(c, &Session{AdminAuthenticated: true, AdminUsername: "librarian"}); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	r.POST("/logout", func(c *gin.Context) {
		_ = m.Destroy(c)
		c.Status(http.StatusOK)
	})
	r.GET("/admin/stats", RequireAdmin(), func(c *gin.Context) {
		isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"admin": isAdmin})
	})
	r.GET("/user/stats", RequireStudent(), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/transactions/add", RequireLoanDesk(tokens, anon), func(c *gin.Context) {
		subject, _ := utils.GetDeskSubjectFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"desk": subject})
	})
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	// the last Set-Cookie wins, as in a browser
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "lms.sid" {
			found = c
		}
	}
	if found == nil {
		t.Fatalf("no session cookie set")
	}
	return found
}

func TestSession_LoginThenAdminRoute(t *testing.T) {
	store := newMemorySessions()
	r := testRouter(testManager(store), nil, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 7200, cookie.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"admin":true}`, w.Body.String())

	// student role is independent
	req = httptest.NewRequest(http.MethodGet, "/user/stats", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_LoginRotatesToken(t *testing.T) {
	store := newMemorySessions()
	r := testRouter(testManager(store), nil, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	first := sessionCookie(t, w)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.AddCookie(first)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	second := sessionCookie(t, w)

	assert.NotEqual(t, first.Value, second.Value)
	assert.Len(t, store.sessions, 1)
}

func TestSession_LogoutDestroysSession(t *testing.T) {
	store := newMemorySessions()
	r := testRouter(testManager(store), nil, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	cookie := sessionCookie(t, w)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, -1, sessionCookie(t, w).MaxAge)
	assert.Empty(t, store.sessions)

	req = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSession_UnknownTokenIsAnonymous(t *testing.T) {
	r := testRouter(testManager(newMemorySessions()), nil, false)
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.AddCookie(&http.Cookie{Name: "lms.sid", Value: "expired"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"unauthorized"}`, w.Body.String())
}

func TestSession_StoreFailureIs503(t *testing.T) {
	store := newMemorySessions()
	store.failLoad = true
	r := testRouter(testManager(store), nil, false)
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.AddCookie(&http.Cookie{Name: "lms.sid", Value: "any"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequireAdmin_RedirectsBrowsers(t *testing.T) {
	r := testRouter(testManager(newMemorySessions()), nil, false)
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/user/stats", nil)
	req.Header.Set("Accept", "text/html")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "/user/login", w.Header().Get("Location"))
}

func TestRequireLoanDesk(t *testing.T) {
	tokens := utils.NewDeskTokens("desk-secret", time.Hour)
	tok, err := tokens.Generate("front-desk")
	require.NoError(t, err)

	r := testRouter(testManager(newMemorySessions()), tokens, false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/transactions/add", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/transactions/add", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"desk":"front-desk"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/transactions/add", nil)
	req.Header.Set("Authorization", "Bearer "+tok+"x")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// an admin session is enough
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	req = httptest.NewRequest(http.MethodPost, "/transactions/add", nil)
	req.AddCookie(sessionCookie(t, w))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	open := testRouter(testManager(newMemorySessions()), nil, true)
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/transactions/add", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
