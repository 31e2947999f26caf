// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope. Code carries a machine-readable
// denial reason (e.g. "limit_exceeded") so clients need not parse Error.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) { fail(c, http.StatusBadRequest, err, "") }

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) { fail(c, http.StatusUnauthorized, err, "") }

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) { fail(c, http.StatusForbidden, err, "") }

// Denied sends 403 with a policy reason code alongside the human-readable message.
func Denied(c *gin.Context, code, msg string) { fail(c, http.StatusForbidden, msg, code) }

// NotFound sends 404.
func NotFound(c *gin.Context, err string) { fail(c, http.StatusNotFound, err, "") }

// Conflict sends 409.
func Conflict(c *gin.Context, err string) { fail(c, http.StatusConflict, err, "") }

// Internal sends 500.
func Internal(c *gin.Context, err string) { fail(c, http.StatusInternalServerError, err, "") }

func fail(c *gin.Context, status int, err, code string) {
	c.JSON(status, Body{Error: err, Code: code})
}
