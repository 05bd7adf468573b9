package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/utils"
)

const (
	adminLoginPath   = "/admin/login"
	studentLoginPath = "/user/login"
)

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := CurrentSession(c); s != nil && s.AdminAuthenticated {
			c.Next()
			return
		}
		unauthorized(c, adminLoginPath)
	}
}

func RequireStudent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := CurrentSession(c); s != nil && s.Student != nil && s.Student.RegNo != "" {
			c.Next()
			return
		}
		unauthorized(c, studentLoginPath)
	}
}

// RequireLoanDesk admits an admin session or a bearer loan-desk JWT. With allowAnonymous
// the check is skipped entirely.
func RequireLoanDesk(tokens *utils.DeskTokens, allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowAnonymous {
			c.Next()
			return
		}
		if s := CurrentSession(c); s != nil && s.AdminAuthenticated {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		const bearer = "Bearer "
		if tokens != nil && len(auth) > len(bearer) && strings.EqualFold(auth[:len(bearer)], bearer) {
			claims, err := tokens.Validate(strings.TrimSpace(auth[len(bearer):]))
			if err == nil {
				c.Request = c.Request.WithContext(utils.SetDeskSubjectInContext(c.Request.Context(), claims.Subject))
				c.Next()
				return
			}
		}
		unauthorized(c, adminLoginPath)
	}
}

// unauthorized redirects browser navigations to the login page and answers 401 JSON otherwise.
func unauthorized(c *gin.Context, loginPath string) {
	if wantsHTML(c.Request) {
		c.Redirect(http.StatusFound, loginPath)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
