// Package api defines the uniform response envelopes every endpoint returns.
package api

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"playtube/api/internal/apperr"
)

type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type ErrorResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	Data       any      `json:"data"`
	Stack      string   `json:"stack,omitempty"`
}

func Success(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < 400,
	})
}

// Fail renders err as the uniform error envelope. Stack traces are attached
// only when includeStack is set, i.e. outside production.
func Fail(c *gin.Context, err error, includeStack bool) {
	c.JSON(errorResponse(err, includeStack))
}

// AbortFail is Fail for middleware: it also stops the handler chain.
func AbortFail(c *gin.Context, err error, includeStack bool) {
	c.AbortWithStatusJSON(errorResponse(err, includeStack))
}

func errorResponse(err error, includeStack bool) (int, ErrorResponse) {
	status := apperr.KindOf(err).HTTPStatus()
	resp := ErrorResponse{
		StatusCode: status,
		Message:    apperr.MessageOf(err),
		Success:    false,
		Errors:     []string{},
		Data:       nil,
	}
	if includeStack {
		resp.Stack = string(debug.Stack())
	}
	return status, resp
}
