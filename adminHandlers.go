package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/middlewares"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/mmdatafocus/lms_backend/models/reports"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/mmdatafocus/lms_backend/workflow"
)

type adminLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" trim:"-"`
}

func (a *api) adminLogin(c *gin.Context) {
	var input adminLogin
	if err := bindJSON(c, &input); err != nil {
		writeError(c, a.logger, "adminLogin", err)
		return
	}
	if !utils.CheckAdminCredentials(input.Username, input.Password, a.admin.Username, a.admin.PasswordHash) {
		writeError(c, a.logger, "adminLogin", &models.AuthError{Reason: "Invalid credentials"})
		return
	}
	s := &middlewares.Session{AdminAuthenticated: true, AdminUsername: a.admin.Username}
	if old := middlewares.CurrentSession(c); old != nil {
		s.Student = old.Student
	}
	if err := a.sessions.Start(c, s); err != nil {
		config.LogError(a.logger, "adminHandlers.go", "adminLogin", "starting session", nil, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *api) adminLogout(c *gin.Context) {
	if err := a.sessions.Destroy(c); err != nil {
		config.LogError(a.logger, "adminHandlers.go", "adminLogout", "destroying session", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (a *api) transactionsAll(c *gin.Context) {
	rows, err := a.loans.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, a.logger, "transactionsAll", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (a *api) overdue(c *gin.Context) {
	rows, err := a.loans.ListOverdue(c.Request.Context())
	if err != nil {
		writeError(c, a.logger, "overdue", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "overdueBooks": rows})
}

func (a *api) adminDashboard(c *gin.Context) {
	stats, err := a.reports.AdminDashboard(c.Request.Context())
	if err != nil {
		writeError(c, a.logger, "adminDashboard", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *api) analytics(c *gin.Context) {
	res, err := a.reports.Analytics(c.Request.Context())
	if err != nil {
		writeError(c, a.logger, "analytics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": res})
}

func (a *api) exportTransactions(c *gin.Context) {
	rows, err := a.loans.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, a.logger, "exportTransactions", err)
		return
	}
	now := time.Now()
	if a.loc != nil {
		now = now.In(a.loc)
	}
	filename := fmt.Sprintf("transactions-%s.xlsx", now.Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := reports.WriteTransactionsXLSX(c.Writer, rows, a.loc); err != nil {
		// headers are already out; all we can do is log
		config.LogError(a.logger, "adminHandlers.go", "exportTransactions", "writing xlsx", len(rows), err)
	}
}

func (a *api) runSweep(c *gin.Context) {
	res, err := a.sweep.RunOnce(c.Request.Context(), "admin")
	if errors.Is(err, workflow.ErrSweepInProgress) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Sweep already running"})
		return
	}
	if err != nil {
		writeError(c, a.logger, "runSweep", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}
