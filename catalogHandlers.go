package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/lms_backend/models"
)

func (a *api) booksByDepartment(c *gin.Context) {
	books, err := a.catalog.ListByDepartment(c.Request.Context(), c.Param("dept"))
	if err != nil {
		writeError(c, a.logger, "booksByDepartment", err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (a *api) addBook(c *gin.Context) {
	var input models.NewBook
	if err := bindJSON(c, &input); err != nil {
		writeError(c, a.logger, "addBook", err)
		return
	}
	book, err := a.catalog.AddBook(c.Request.Context(), &input)
	if err != nil {
		writeError(c, a.logger, "addBook", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Book added successfully", "book": book})
}

func (a *api) totalBooks(c *gin.Context) {
	total, err := a.catalog.TotalVolumes(c.Request.Context())
	if err != nil {
		writeError(c, a.logger, "totalBooks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "totalBooks": total})
}
