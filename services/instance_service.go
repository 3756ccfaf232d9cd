// file: services/instance_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/noob-master-jpb/CTFd/dto"
	"github.com/noob-master-jpb/CTFd/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// How long a provisioning lock may outlive its request before expiring
// on its own.
const provisionLockTTL = 30 * time.Second

// InstanceService owns the container and port records and every
// transition between them. Nothing else writes those tables.
type InstanceService struct {
	db      *gorm.DB
	rdb     *redis.Client
	ports   *PortAllocator
	images  *ImageRegistry
	backend *PortainerClient
	vmIP    string
}

func NewInstanceService(db *gorm.DB, rdb *redis.Client, ports *PortAllocator, images *ImageRegistry, backend *PortainerClient, vmIP string) *InstanceService {
	return &InstanceService{
		db:      db,
		rdb:     rdb,
		ports:   ports,
		images:  images,
		backend: backend,
		vmIP:    vmIP,
	}
}

// Authenticate resolves the user by id and compares the supplied name
// and email exactly. Read-only.
func (s *InstanceService) Authenticate(req *dto.InstanceRequest) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, ErrStoreUnavailable
	}
	if req.Username != user.Username || req.Email != user.Email {
		return nil, ErrCredentialMismatch
	}
	return &user, nil
}

// Connection returns the stored connection address for the user's
// container, if any.
func (s *InstanceService) Connection(userID uint32) (string, error) {
	var container models.Container
	if err := s.db.Where("user_id = ?", userID).First(&container).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoContainer
		}
		return "", ErrStoreUnavailable
	}
	return container.Connection, nil
}

// Provision runs the full create path: eligibility gates, port
// reservation, backend create/start, and the final container record.
// Every failure after a resource was acquired rolls that resource back
// so nothing leaks.
func (s *InstanceService) Provision(ctx context.Context, req *dto.InstanceRequest) (string, error) {
	if err := s.checkEligibility(req); err != nil {
		return "", err
	}

	release, err := s.acquireLock(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	defer release()

	// Re-check under the lock: the fast-path check above may have raced.
	if existing, err := s.Connection(req.UserID); err == nil {
		return "", &AlreadyProvisionedError{Connection: existing}
	}

	port, err := s.ports.Allocate(req.UserID)
	if err != nil {
		return "", err
	}

	image, err := s.images.Resolve(req.ChallengeID)
	if err != nil {
		s.rollbackPort(port)
		return "", err
	}

	name := fmt.Sprintf("%s_%d", req.Username, port)

	created, err := s.backend.CreateContainer(ctx, name, image, port)
	if err != nil {
		s.rollbackPort(port)
		return "", err
	}
	if !created.Accepted() {
		s.rollbackPort(port)
		return "", &BackendError{Op: "create", Status: created.StatusCode}
	}

	containerID, err := created.ContainerID()
	if err != nil {
		// No id to clean up with; the reservation is all we can undo.
		s.rollbackPort(port)
		return "", err
	}

	if err := s.ports.MarkInUse(port); err != nil {
		s.rollbackContainer(containerID)
		s.rollbackPort(port)
		return "", err
	}

	started, err := s.backend.StartContainer(ctx, containerID)
	if err != nil {
		s.rollbackContainer(containerID)
		s.rollbackPort(port)
		return "", err
	}
	if !started.Accepted() {
		s.rollbackContainer(containerID)
		s.rollbackPort(port)
		return "", &BackendError{Op: "start", Status: started.StatusCode}
	}

	connection := fmt.Sprintf("%s:%d", s.vmIP, port)
	record := models.Container{
		ChallengeID:   req.ChallengeID,
		UserID:        req.UserID,
		ContainerName: name,
		DockerID:      containerID,
		Connection:    connection,
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.rollbackContainer(containerID)
		s.rollbackPort(port)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another request for this user won the unique index; hand
			// back whatever it provisioned.
			if existing, lookupErr := s.Connection(req.UserID); lookupErr == nil {
				return "", &AlreadyProvisionedError{Connection: existing}
			}
			return "", &AlreadyProvisionedError{}
		}
		return "", &PersistenceError{Op: "save container record", Err: err}
	}

	log.Printf("provisioned container %s (%s)", name, req)
	return connection, nil
}

// Teardown deletes the user's backend container and finalizes the
// bookkeeping. Backend failure leaves every record intact for a retry.
func (s *InstanceService) Teardown(ctx context.Context, req *dto.InstanceRequest) error {
	var container models.Container
	if err := s.db.Where("user_id = ?", req.UserID).First(&container).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoContainer
		}
		return ErrStoreUnavailable
	}

	port, err := portFromConnection(container.Connection)
	if err != nil {
		return &PersistenceError{Op: "parse stored connection", Err: err}
	}

	var reservation models.Port
	if err := s.db.Where("port = ?", port).First(&reservation).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStoreUnavailable
		}
		// The reservation never made it in during create; book one so
		// the port's fate is recorded before touching the backend.
		if err := s.ports.RepairClosing(port, req.UserID); err != nil {
			return err
		}
	}

	deleted, err := s.backend.DeleteContainer(ctx, container.DockerID)
	if err != nil {
		return err
	}
	switch deleted.StatusCode {
	case 400, 404, 409, 500:
		return &BackendError{Op: "delete", Status: deleted.StatusCode}
	}

	if err := s.ports.FinalizeClosed(port); err != nil {
		return ErrPartialCleanup
	}
	if err := s.db.Delete(&models.Container{}, container.ID).Error; err != nil {
		return ErrPartialCleanup
	}
	log.Printf("deleted container %s (%s)", container.DockerID, req)
	return nil
}

// checkEligibility runs the read-only gates in their fixed order.
func (s *InstanceService) checkEligibility(req *dto.InstanceRequest) error {
	var challenge models.Challenge
	if err := s.db.First(&challenge, req.ChallengeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChallengeNotFound
		}
		return ErrStoreUnavailable
	}
	if challenge.State == models.ChallengeStateHidden {
		return ErrChallengeHidden
	}
	if challenge.Category != models.CategoryWeb {
		return ErrWrongCategory
	}

	var solves int64
	if err := s.db.Model(&models.Solve{}).
		Where("user_id = ? AND challenge_id = ?", req.UserID, req.ChallengeID).
		Count(&solves).Error; err != nil {
		return ErrStoreUnavailable
	}
	if solves > 0 {
		return ErrAlreadySolved
	}

	if existing, err := s.Connection(req.UserID); err == nil {
		return &AlreadyProvisionedError{Connection: existing}
	} else if !errors.Is(err, ErrNoContainer) {
		return err
	}
	return nil
}

// acquireLock takes a short-TTL per-user lock in Redis so double-clicks
// don't race each other to the backend. The unique index on the
// container table is the hard guarantee; losing Redis only loses the
// politeness, so a Redis failure is logged and waved through.
func (s *InstanceService) acquireLock(ctx context.Context, userID uint32) (func(), error) {
	key := fmt.Sprintf("provision_lock:%d", userID)
	ok, err := s.rdb.SetNX(ctx, key, 1, provisionLockTTL).Result()
	if err != nil {
		log.Printf("Warning: provisioning lock unavailable: %v", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrProvisionInProgress
	}
	return func() {
		if err := s.rdb.Del(context.Background(), key).Err(); err != nil {
			log.Printf("Warning: failed to release provisioning lock for user %d: %v", userID, err)
		}
	}, nil
}

// rollbackPort and rollbackContainer are compensating actions; their own
// failures are logged, never surfaced over the original error.
func (s *InstanceService) rollbackPort(port int) {
	if err := s.ports.Release(port); err != nil {
		log.Printf("Warning: failed to release port %d during rollback: %v", port, err)
	}
}

func (s *InstanceService) rollbackContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.backend.DeleteContainer(ctx, containerID); err != nil {
		log.Printf("Warning: failed to delete backend container %s during rollback: %v", containerID, err)
	}
}

func portFromConnection(connection string) (int, error) {
	_, portPart, found := strings.Cut(connection, ":")
	if !found {
		return 0, fmt.Errorf("connection %q has no port", connection)
	}
	port, err := strconv.Atoi(portPart)
	if err != nil {
		return 0, fmt.Errorf("connection %q has a non-numeric port", connection)
	}
	return port, nil
}
