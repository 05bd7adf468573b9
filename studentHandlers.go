package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/middlewares"
	"github.com/mmdatafocus/lms_backend/models"
)

func (a *api) signup(c *gin.Context) {
	var input models.NewBorrower
	if err := bindJSON(c, &input); err != nil {
		writeError(c, a.logger, "signup", err)
		return
	}
	b, err := a.identity.Signup(c.Request.Context(), &input)
	if err != nil {
		writeError(c, a.logger, "signup", err)
		return
	}
	if !a.startStudentSession(c, b) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Signup successful"})
}

func (a *api) studentLogin(c *gin.Context) {
	var input models.StudentLogin
	if err := bindJSON(c, &input); err != nil {
		writeError(c, a.logger, "studentLogin", err)
		return
	}
	b, err := a.identity.Authenticate(c.Request.Context(), input.RegNo, input.Name)
	if err != nil {
		writeError(c, a.logger, "studentLogin", err)
		return
	}
	if !a.startStudentSession(c, b) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login successful"})
}

func (a *api) startStudentSession(c *gin.Context, b *models.Borrower) bool {
	s := &middlewares.Session{Student: studentSession(b)}
	if old := middlewares.CurrentSession(c); old != nil {
		s.AdminAuthenticated = old.AdminAuthenticated
		s.AdminUsername = old.AdminUsername
	}
	if err := a.sessions.Start(c, s); err != nil {
		config.LogError(a.logger, "studentHandlers.go", "startStudentSession", "starting session", b.RegNo, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Session store unavailable"})
		return false
	}
	return true
}

func studentSession(b *models.Borrower) *middlewares.StudentSession {
	return &middlewares.StudentSession{RegNo: b.RegNo, Name: b.Name, Department: b.Department, Year: b.Year}
}

func (a *api) studentLogout(c *gin.Context) {
	if err := a.sessions.Destroy(c); err != nil {
		config.LogError(a.logger, "studentHandlers.go", "studentLogout", "destroying session", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func (a *api) studentProfile(c *gin.Context) {
	regNo := middlewares.CurrentSession(c).Student.RegNo
	b, err := a.identity.Get(c.Request.Context(), regNo)
	if err != nil {
		writeError(c, a.logger, "studentProfile", err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (a *api) editProfile(c *gin.Context) {
	s := middlewares.CurrentSession(c)
	var input models.ProfileUpdate
	if err := bindJSON(c, &input); err != nil {
		writeError(c, a.logger, "editProfile", err)
		return
	}
	b, err := a.identity.UpdateProfile(c.Request.Context(), s.Student.RegNo, &input)
	if err != nil {
		writeError(c, a.logger, "editProfile", err)
		return
	}
	s.Student = studentSession(b)
	if err := a.sessions.Update(c, s); err != nil {
		// the profile is saved; the session catches up on next login
		config.LogError(a.logger, "studentHandlers.go", "editProfile", "refreshing session", b.RegNo, err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated successfully"})
}

func (a *api) studentDashboard(c *gin.Context) {
	regNo := middlewares.CurrentSession(c).Student.RegNo
	stats, err := a.reports.StudentDashboard(c.Request.Context(), regNo)
	if err != nil {
		writeError(c, a.logger, "studentDashboard", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *api) studentTransactions(c *gin.Context) {
	regNo := middlewares.CurrentSession(c).Student.RegNo
	loans, err := a.loans.PartitionForStudent(c.Request.Context(), regNo)
	if err != nil {
		writeError(c, a.logger, "studentTransactions", err)
		return
	}
	c.JSON(http.StatusOK, loans)
}
