package main

import (
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mmdatafocus/lms_backend/middlewares"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const correlationHeader = "x-correlation-id"

var registerFieldNames sync.Once

type routerOptions struct {
	Production     bool
	AllowedOrigins []string
	DeskTokens     *utils.DeskTokens
	AllowAnonDesk  bool
	// LoginLimiter throttles the login and signup endpoints; nil disables it.
	LoginLimiter *middlewares.RateLimiter
}

func newRouter(a *api, opts routerOptions) *gin.Engine {
	registerFieldNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(utils.JSONTagName)
		}
	})

	r := gin.New()
	r.Use(correlationID())
	r.Use(cors.New(corsConfig(opts.Production, opts.AllowedOrigins)))
	r.Use(middlewares.RequestMetrics())
	r.Use(customErrorLogger(a.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	app := r.Group("/")
	app.Use(a.sessions.Middleware())
	app.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "LMS Backend is Running...") })
	app.GET("/books/:dept", a.booksByDepartment)

	login := app.Group("/")
	if opts.LoginLimiter != nil {
		login.Use(opts.LoginLimiter.Middleware())
	}
	login.POST("/admin/login", a.adminLogin)
	login.POST("/user/login", a.studentLogin)
	login.POST("/signup", a.signup)
	app.POST("/user/logout", a.studentLogout)

	desk := app.Group("/transactions", middlewares.RequireLoanDesk(opts.DeskTokens, opts.AllowAnonDesk))
	desk.POST("/add", a.issueLoan)
	desk.POST("/return/:id", a.returnLoan)

	admin := app.Group("/admin", middlewares.RequireAdmin())
	admin.POST("/logout", a.adminLogout)
	admin.GET("/transactions-all", a.transactionsAll)
	admin.GET("/transactions/export.xlsx", a.exportTransactions)
	admin.GET("/overdue", a.overdue)
	admin.GET("/dashboard-stats", a.adminDashboard)
	admin.GET("/analytics", a.analytics)
	admin.GET("/total-books", a.totalBooks)
	admin.POST("/add-book", a.addBook)
	admin.POST("/sweep", a.runSweep)

	student := app.Group("/user", middlewares.RequireStudent())
	student.GET("/profile", a.studentProfile)
	student.POST("/edit", a.editProfile)
	student.GET("/dashboard-stats", a.studentDashboard)
	student.GET("/transactions", a.studentTransactions)

	r.NoRoute(customNotFoundHandler)
	return r
}

// correlationID reuses the caller's x-correlation-id or mints one, and echoes it back.
func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(correlationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header(correlationHeader, cid)
		c.Next()
	}
}

// corsConfig requires an explicit allowlist in production and allows all origins elsewhere.
func corsConfig(production bool, allowed []string) cors.Config {
	cfg := cors.DefaultConfig()
	if production {
		// deny all if not configured
		cfg.AllowOrigins = allowed
		if len(allowed) == 0 {
			cfg.AllowOriginFunc = func(string) bool { return false }
		}
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", "Authorization", idempotencyKeyHeader, correlationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", correlationHeader)
	cfg.AllowCredentials = true
	return cfg
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": c.Writer.Header().Get(correlationHeader),
			}).Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}
