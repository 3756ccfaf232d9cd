// file: models/solve.go
package models

import (
	"time"
)

type Solve struct {
	ID          uint64    `gorm:"primarykey"`
	ChallengeID uint32    `gorm:"not null;uniqueIndex:idx_solve_user_challenge"`
	UserID      uint32    `gorm:"not null;uniqueIndex:idx_solve_user_challenge"`
	SolvedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

func (Solve) TableName() string {
	return "ctfd_solve"
}
