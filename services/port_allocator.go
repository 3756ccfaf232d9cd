// file: services/port_allocator.go
package services

import (
	"errors"
	"math/rand"

	"github.com/noob-master-jpb/CTFd/models"
	"gorm.io/gorm"
)

const (
	// Inclusive host-port range handed out to instances.
	PortRangeStart = 45000
	PortRangeEnd   = 55000

	// Random probing degrades as the range fills up; cap the attempts at
	// a multiple of the range size instead of spinning forever.
	maxProbeFactor = 3
)

// PortAllocator hands out ports from a fixed range and walks each
// reservation through open -> in_use -> closed. The unique index on the
// port column is the only lock: whoever commits the insert owns the port.
type PortAllocator struct {
	db    *gorm.DB
	start int
	end   int
}

func NewPortAllocator(db *gorm.DB) *PortAllocator {
	return &PortAllocator{db: db, start: PortRangeStart, end: PortRangeEnd}
}

// Allocate reserves a free port for userID with status open. A failed
// insert means the caller must treat the port as not allocated.
func (a *PortAllocator) Allocate(userID uint32) (int, error) {
	span := a.end - a.start + 1
	for attempt := 0; attempt < span*maxProbeFactor; attempt++ {
		port := a.start + rand.Intn(span)

		var count int64
		if err := a.db.Model(&models.Port{}).Where("port = ?", port).Count(&count).Error; err != nil {
			return 0, &PersistenceError{Op: "check port availability", Err: err}
		}
		if count > 0 {
			// A closed reservation is history, not occupancy. Reclaim it
			// with a conditional update so two probes cannot both win.
			res := a.db.Model(&models.Port{}).
				Where("port = ? AND status = ?", port, models.PortStatusClosed).
				Updates(map[string]any{"status": models.PortStatusOpen, "user_id": userID})
			if res.Error != nil {
				return 0, &PersistenceError{Op: "reclaim closed port", Err: res.Error}
			}
			if res.RowsAffected == 1 {
				return port, nil
			}
			continue
		}

		err := a.db.Create(&models.Port{Port: port, UserID: userID, Status: models.PortStatusOpen}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the race for this port; treat it as occupied.
				continue
			}
			return 0, &PersistenceError{Op: "add port to database", Err: err}
		}
		return port, nil
	}
	return 0, ErrPortRangeExhausted
}

// MarkInUse records that the backend container for this port was
// confirmed created.
func (a *PortAllocator) MarkInUse(port int) error {
	return a.setStatus(port, models.PortStatusInUse)
}

// FinalizeClosed is terminal: the backend container is confirmed gone.
func (a *PortAllocator) FinalizeClosed(port int) error {
	return a.setStatus(port, models.PortStatusClosed)
}

func (a *PortAllocator) setStatus(port int, status models.PortStatus) error {
	res := a.db.Model(&models.Port{}).Where("port = ?", port).Update("status", status)
	if res.Error != nil {
		return &PersistenceError{Op: "update port status", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Release deletes the reservation outright so the port is immediately
// reusable. Used to roll back an allocation whose downstream step failed.
func (a *PortAllocator) Release(port int) error {
	res := a.db.Where("port = ?", port).Delete(&models.Port{})
	if res.Error != nil {
		return &PersistenceError{Op: "release port", Err: res.Error}
	}
	return nil
}

// RepairClosing books a reservation in status closing for a port that
// teardown found unaccounted for. Self-healing path, not a normal case.
func (a *PortAllocator) RepairClosing(port int, userID uint32) error {
	err := a.db.Create(&models.Port{Port: port, UserID: userID, Status: models.PortStatusClosing}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return &PersistenceError{Op: "book repair reservation", Err: err}
	}
	return nil
}
