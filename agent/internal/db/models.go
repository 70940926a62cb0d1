package db

import "time"

// Credentials is what enrollment handed to the device. One row at most.
type Credentials struct {
	ID           uint   `gorm:"primaryKey"`
	APIToken     string `gorm:"size:8192"`
	Topic        string `gorm:"size:255"`
	MqttUser     string `gorm:"size:255"`
	MqttPassword string `gorm:"size:255"`
	Broker       string `gorm:"size:255"`
	Port         int
	TLSPort      int
	TLS          bool
	FleetTopic   string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AppliedPolicy is the last value received for a policy task.
type AppliedPolicy struct {
	TaskID    uint   `gorm:"primaryKey;autoIncrement:false"`
	Symbol    string `gorm:"size:255;index"`
	Value     string `gorm:"size:1024"`
	UpdatedAt time.Time
}
