// file: models/port.go
package models

import (
	"time"
)

type PortStatus string

const (
	// PortStatusOpen: reserved, no backend container yet.
	PortStatusOpen PortStatus = "open"
	// PortStatusInUse: backend container confirmed created.
	PortStatusInUse PortStatus = "in_use"
	// PortStatusClosing: teardown found no reservation row and booked a
	// repair record before continuing.
	PortStatusClosing PortStatus = "closing"
	// PortStatusClosed: terminal, backend container confirmed deleted.
	PortStatusClosed PortStatus = "closed"
)

// Port is this service's own bookkeeping for a host port, distinct from
// anything the backend tracks. The unique index makes the insert itself
// the lock that decides which of two racing allocations wins the port.
type Port struct {
	ID        uint32     `gorm:"primarykey"`
	Port      int        `gorm:"uniqueIndex;not null"`
	UserID    uint32     `gorm:"not null"`
	Status    PortStatus `gorm:"size:20;not null;default:'open'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Port) TableName() string {
	return "ctfd_port"
}
