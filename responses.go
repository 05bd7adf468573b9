package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/config"
	"github.com/mmdatafocus/lms_backend/models"
	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/sirupsen/logrus"
)

// bindJSON decodes and validates the request body into dst. Failures come back as
// *models.ValidationError so they flow through writeError like any other input problem.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if fields := utils.ProcessValidationErrors(err); len(fields) > 0 {
			return &models.ValidationError{Fields: fields}
		}
		return models.NewValidationError("body", "invalid JSON")
	}
	utils.TrimStrings(dst)
	return nil
}

// writeError maps the domain error taxonomy onto HTTP. Store failures are logged and
// reported generically.
func writeError(c *gin.Context, logger *logrus.Logger, funcName string, err error) {
	var (
		ve  *models.ValidationError
		ide *models.InvalidDepartmentError
		de  *models.DuplicateError
		nf  *models.NotFoundError
		ae  *models.AuthError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Required fields missing or invalid", "fields": ve.Fields})
	case errors.As(err, &ide):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid department", "message": ide.Error()})
	case errors.As(err, &de):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": de.Error()})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": nf.Error()})
	case errors.Is(err, models.ErrLoanAlreadyReturned):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Transaction already returned"})
	case errors.As(err, &ae):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": ae.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		config.LogError(logger, "server.go", funcName, "request deadline", nil, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "Request timed out"})
	default:
		config.LogError(logger, "server.go", funcName, "request failed", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error"})
	}
}
