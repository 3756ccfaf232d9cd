// file: models/container.go
package models

import (
	"time"
)

// Container is one live provisioning. The unique index on UserID is what
// enforces the one-container-per-user rule under concurrent requests; the
// read-before-insert check in the service is only the friendly fast path.
type Container struct {
	ID            uint32    `gorm:"primarykey"`
	ChallengeID   uint32    `gorm:"not null"`
	UserID        uint32    `gorm:"uniqueIndex;not null"`
	ContainerName string    `gorm:"size:100;not null"`
	DockerID      string    `gorm:"size:64;not null"`
	Connection    string    `gorm:"size:100;not null"`
	CreatedAt     time.Time
}

func (Container) TableName() string {
	return "ctfd_container"
}
