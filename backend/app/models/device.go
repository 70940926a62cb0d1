package models

import "time"

// Device is the managed computer an agent runs on. It outlives the agent
// when the agent is unenrolled.
type Device struct {
	ID                uint   `gorm:"primaryKey"`
	EntityID          uint   `gorm:"index"`
	Serial            string `gorm:"index;size:191"`
	UUID              string `gorm:"size:191"`
	Name              string `gorm:"size:255"`
	UserID            uint   `gorm:"index"`
	OSName            string `gorm:"size:128"`
	OSVersion         string `gorm:"size:128"`
	Model             string `gorm:"size:255"`
	InventoryDeviceID string `gorm:"size:255"` // DEVICEID of the inventory agent
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Geolocation struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  uint   `gorm:"index;not null"`
	Latitude  string `gorm:"size:32"`
	Longitude string `gorm:"size:32"`
	Accuracy  string `gorm:"size:32"`
	Date      time.Time
	CreatedAt time.Time
}

// GeolocationUnavailable is the latitude reported when the device GPS is off.
const GeolocationUnavailable = "na"

func (g *Geolocation) Unavailable() bool { return g.Latitude == GeolocationUnavailable }

type InventorySnapshot struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  uint   `gorm:"index;not null"`
	Checksum  string `gorm:"size:64"`
	Raw       string `gorm:"type:longtext"`
	CreatedAt time.Time
}

type Document struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   uint   `gorm:"index"`
	Name      string `gorm:"size:255"`
	Path      string `gorm:"size:1024"`
	CreatedAt time.Time
}
