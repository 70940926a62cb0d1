package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleAgent = "agent"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:191;not null"`
	Email        string `gorm:"index;size:191"`
	Firstname    string `gorm:"size:255"`
	Realname     string `gorm:"size:255"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:32;not null;default:user"`
	EntityID     uint   `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type EntityConfig struct {
	EntityID    uint `gorm:"primaryKey;autoIncrement:false"`
	DeviceLimit int
}
