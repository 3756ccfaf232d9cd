// file: controllers/instance_controller.go
package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/noob-master-jpb/CTFd/dto"
	"github.com/noob-master-jpb/CTFd/services"
	"github.com/noob-master-jpb/CTFd/utils"
)

var instances *services.InstanceService

// InitInstanceController wires the lifecycle service in from main.
func InitInstanceController(svc *services.InstanceService) {
	instances = svc
}

// GetInstance reports the connection address of the caller's container.
func GetInstance(c *gin.Context) {
	req, ok := validatedRequest(c)
	if !ok {
		return
	}

	connection, err := instances.Connection(req.UserID)
	if err != nil {
		respondInstanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": connection})
}

// CreateInstance provisions a container for the caller and the requested
// challenge.
func CreateInstance(c *gin.Context) {
	req, ok := validatedRequest(c)
	if !ok {
		return
	}

	connection, err := instances.Provision(c.Request.Context(), req)
	if err != nil {
		respondInstanceError(c, err)
		return
	}
	utils.Success(c, "success", gin.H{"connection": connection})
}

// DeleteInstance tears the caller's container down.
func DeleteInstance(c *gin.Context) {
	req, ok := validatedRequest(c)
	if !ok {
		return
	}

	if err := instances.Teardown(c.Request.Context(), req); err != nil {
		respondInstanceError(c, err)
		return
	}
	utils.Status(c, http.StatusOK, "container deleted")
}

// validatedRequest parses the identity headers and authenticates them
// against the user table. Writes the response itself on failure.
func validatedRequest(c *gin.Context) (*dto.InstanceRequest, bool) {
	req, err := dto.ParseInstanceHeaders(c.Request.Header)
	if err != nil {
		if dto.IsValidationError(err) {
			utils.Status(c, http.StatusBadRequest, err.Error())
		} else {
			log.Printf("unexpected header parse error: %v", err)
			utils.Fail(c, http.StatusInternalServerError, "internal error")
		}
		return nil, false
	}
	if _, err := instances.Authenticate(req); err != nil {
		respondInstanceError(c, err)
		return nil, false
	}
	return req, true
}

// respondInstanceError maps service errors onto HTTP statuses. Internal
// detail stays in the log; the body carries only the stable message.
func respondInstanceError(c *gin.Context, err error) {
	var provisioned *services.AlreadyProvisionedError
	var backendErr *services.BackendError
	var malformed *services.MalformedResponseError
	var notMapped *services.ImageNotMappedError
	var transport *services.TransportError
	var persistence *services.PersistenceError

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		utils.Fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCredentialMismatch):
		utils.Fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrStoreUnavailable):
		utils.Fail(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrChallengeNotFound):
		utils.Status(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrChallengeHidden):
		utils.Status(c, http.StatusLocked, err.Error())
	case errors.Is(err, services.ErrWrongCategory):
		utils.Status(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadySolved):
		utils.Status(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, services.ErrNoContainer):
		utils.Fail(c, http.StatusNotFound, err.Error())
	case errors.As(err, &provisioned):
		utils.StatusWith(c, http.StatusConflict, provisioned.Error(),
			gin.H{"connection_id": provisioned.Connection})
	case errors.Is(err, services.ErrProvisionInProgress):
		utils.Status(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPartialCleanup):
		utils.Fail(c, http.StatusMultiStatus, err.Error())
	case errors.Is(err, services.ErrPortRangeExhausted):
		log.Printf("provisioning failed: %v", err)
		utils.Fail(c, http.StatusInternalServerError, "no ports available")
	case errors.As(err, &backendErr):
		utils.Fail(c, http.StatusInternalServerError, backendErr.Error())
	case errors.As(err, &malformed):
		utils.Fail(c, http.StatusInternalServerError, malformed.Error())
	case errors.As(err, &notMapped):
		log.Printf("provisioning failed: %v", err)
		utils.Fail(c, http.StatusInternalServerError, "image id not found")
	case errors.As(err, &transport):
		log.Printf("backend unreachable: %v", err)
		utils.Fail(c, http.StatusInternalServerError, "could not reach the backend")
	case errors.As(err, &persistence):
		log.Printf("persistence failure: %v", err)
		utils.Fail(c, http.StatusInternalServerError, "internal persistence failure")
	default:
		log.Printf("unexpected instance error: %v", err)
		utils.Fail(c, http.StatusInternalServerError, "internal error")
	}
}
