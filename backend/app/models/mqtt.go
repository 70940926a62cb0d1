package models

import "time"

const (
	AccessRead      = 1
	AccessWrite     = 2
	AccessReadWrite = 3
)

// MqttUser is a broker account checked by the mosquitto auth endpoint.
type MqttUser struct {
	ID        uint   `gorm:"primaryKey"`
	User      string `gorm:"uniqueIndex;size:191;not null"`
	Password  string `gorm:"size:255;not null"`
	Enabled   bool   `gorm:"not null;default:true"`
	Acls      []MqttAcl
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MqttAcl struct {
	ID          uint   `gorm:"primaryKey"`
	MqttUserID  uint   `gorm:"index;not null"`
	Topic       string `gorm:"size:255;not null"`
	AccessLevel int    `gorm:"not null"`
}

// MqttLog keeps a trace of messages exchanged with agents.
type MqttLog struct {
	ID        uint   `gorm:"primaryKey"`
	Direction string `gorm:"size:1"`
	Topic     string `gorm:"size:255;index"`
	Message   string `gorm:"type:text"`
	CreatedAt time.Time
}
