package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/sirupsen/logrus"
)

const sessionContextKey = "lms.session"

// Session is the server-side state behind the session cookie. Admin and student are
// independent roles and may both be present.
type Session struct {
	Token              string          `json:"-"`
	AdminAuthenticated bool            `json:"admin_authenticated"`
	AdminUsername      string          `json:"admin_username,omitempty"`
	Student            *StudentSession `json:"student,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type StudentSession struct {
	RegNo      string `json:"reg_no"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Year       string `json:"year"`
}

type SessionStore interface {
	// Load returns the session and slides its idle expiry.
	Load(ctx context.Context, token string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Destroy(ctx context.Context, token string) error
}

// RedisSessionStore keeps sessions under session:<token> with an idle TTL.
type RedisSessionStore struct {
	Redis *config.RedisStore
	Idle  time.Duration
}

func sessionKey(token string) string { return "session:" + token }

func (r *RedisSessionStore) Load(ctx context.Context, token string) (*Session, bool, error) {
	var s Session
	found, err := r.Redis.GetObject(ctx, sessionKey(token), &s)
	if err != nil || !found {
		return nil, false, err
	}
	if _, err := r.Redis.Touch(ctx, sessionKey(token), r.Idle); err != nil {
		return nil, false, err
	}
	s.Token = token
	return &s, true, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s *Session) error {
	return r.Redis.SetObject(ctx, sessionKey(s.Token), s, r.Idle)
}

func (r *RedisSessionStore) Destroy(ctx context.Context, token string) error {
	return r.Redis.RemoveKeys(ctx, sessionKey(token))
}

type SessionManager struct {
	Store      SessionStore
	CookieName string
	Idle       time.Duration
	Secure     bool
	Logger     *logrus.Logger
}

// Middleware resolves the session cookie. Unknown or expired tokens continue anonymously;
// a failing store answers 503.
func (m *SessionManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(m.CookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		s, found, err := m.Store.Load(c.Request.Context(), token)
		if err != nil {
			config.LogError(m.Logger, "sessionMiddleware.go", "Middleware", "loading session", nil, err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "session store unavailable"})
			return
		}
		if !found {
			m.clearCookie(c)
			c.Next()
			return
		}
		m.attach(c, s)
		m.setCookie(c, s.Token)
		c.Next()
	}
}

// Start persists s under a fresh token (the old session, if any, is dropped) and sets the cookie.
func (m *SessionManager) Start(c *gin.Context, s *Session) error {
	if old := CurrentSession(c); old != nil {
		if err := m.Store.Destroy(c.Request.Context(), old.Token); err != nil {
			return err
		}
	}
	s.Token = uuid.NewString()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if err := m.Store.Save(c.Request.Context(), s); err != nil {
		return err
	}
	m.attach(c, s)
	m.setCookie(c, s.Token)
	return nil
}

// Update saves changes to the current session.
func (m *SessionManager) Update(c *gin.Context, s *Session) error {
	if err := m.Store.Save(c.Request.Context(), s); err != nil {
		return err
	}
	m.attach(c, s)
	return nil
}

// Destroy removes the session and clears the cookie.
func (m *SessionManager) Destroy(c *gin.Context) error {
	if s := CurrentSession(c); s != nil {
		if err := m.Store.Destroy(c.Request.Context(), s.Token); err != nil {
			return err
		}
	}
	m.clearCookie(c)
	return nil
}

func (m *SessionManager) attach(c *gin.Context, s *Session) {
	c.Set(sessionContextKey, s)
	ctx := utils.SetSessionTokenInContext(c.Request.Context(), s.Token)
	ctx = utils.SetIsAdminInContext(ctx, s.AdminAuthenticated)
	if s.AdminAuthenticated {
		ctx = utils.SetAdminUsernameInContext(ctx, s.AdminUsername)
	}
	if s.Student != nil {
		ctx = utils.SetRegNoInContext(ctx, s.Student.RegNo)
	}
	c.Request = c.Request.WithContext(ctx)
}

func (m *SessionManager) setCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.CookieName, token, int(m.Idle.Seconds()), "/", "", m.Secure, true)
}

func (m *SessionManager) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.CookieName, "", -1, "/", "", m.Secure, true)
}

// CurrentSession is the session resolved for this request, or nil.
func CurrentSession(c *gin.Context) *Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
