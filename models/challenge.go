// file: models/challenge.go
package models

import (
	"time"
)

type ChallengeState string

const (
	ChallengeStateVisible ChallengeState = "visible"
	ChallengeStateHidden  ChallengeState = "hidden"
)

// CategoryWeb is the only category eligible for on-demand instances.
const CategoryWeb = "web"

type Challenge struct {
	ID            uint32         `gorm:"primarykey"`
	ChallengeName string         `gorm:"size:100;unique;not null"`
	Category      string         `gorm:"size:50;not null"`
	Description   string         `gorm:"type:text"`
	State         ChallengeState `gorm:"size:20;not null;default:'hidden'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Challenge) TableName() string {
	return "ctfd_challenge"
}
