// file: utils/response.go
package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Every response is a flat JSON object with either a "status" or an
// "error" key plus whatever extra fields the handler adds. No stack
// traces or internal identifiers ever leave the service.

func Success(c *gin.Context, msg string, extra gin.H) {
	body := gin.H{"status": msg}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

func Status(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": msg})
}

func StatusWith(c *gin.Context, code int, msg string, extra gin.H) {
	body := gin.H{"status": msg}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}

func Fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}
