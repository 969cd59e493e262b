package adminhttp

import "github.com/gin-gonic/gin"

// ErrorResponse is the standard JSON error envelope for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func respondError(c *gin.Context, statusCode int, errorMsg string) {
	c.JSON(statusCode, ErrorResponse{Error: errorMsg, Code: statusCode})
}
