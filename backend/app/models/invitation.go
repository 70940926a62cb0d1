package models

import "time"

const (
	InvitationPending = "pending"
	InvitationDone    = "done"
)

// Invitation is a single use enrollment credential.
type Invitation struct {
	ID             uint   `gorm:"primaryKey"`
	Token          string `gorm:"uniqueIndex;size:191;not null"`
	Status         string `gorm:"size:16;not null;default:pending"`
	ExpirationDate *time.Time
	UserID         uint `gorm:"index"`
	User           *User
	EntityID       uint `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type InvitationLog struct {
	ID           uint   `gorm:"primaryKey"`
	InvitationID uint   `gorm:"index"`
	Event        string `gorm:"size:512"`
	CreatedAt    time.Time
}
