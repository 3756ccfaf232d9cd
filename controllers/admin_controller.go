// file: controllers/admin_controller.go
package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/noob-master-jpb/CTFd/services"
	"github.com/noob-master-jpb/CTFd/utils"
)

var backend *services.PortainerClient

func InitAdminController(client *services.PortainerClient) {
	backend = client
}

// ListBackendContainers relays the backend's container listing for
// operators. Diagnostic only; nothing on the provisioning path uses it.
func ListBackendContainers(c *gin.Context) {
	resp, err := backend.ListContainers(c.Request.Context())
	if err != nil {
		log.Printf("backend list failed: %v", err)
		utils.Fail(c, http.StatusInternalServerError, "could not reach the backend")
		return
	}
	c.Data(resp.StatusCode, "application/json", resp.Body)
}
