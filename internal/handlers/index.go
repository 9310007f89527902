package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kvcache/pkg/response"
)

// Index answers GET / so a bare probe of the server gets a friendly payload.
func Index(c *gin.Context) {
	response.SuccessWithMessage(c, http.StatusOK, "Hello World!!!!", gin.H{"service": "kvcache"})
}
