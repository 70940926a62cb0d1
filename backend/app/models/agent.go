package models

import (
	"fmt"
	"time"
)

const (
	EnrollStatusEnrolled    = "enrolled"
	EnrollStatusUnenrolling = "unenrolling"
)

const (
	MdmTypeAndroid = "android"
	MdmTypeApple   = "apple"
)

const (
	NotificationMQTT = "mqtt"
	NotificationFCM  = "fcm"
)

// Agent is one enrolled device as seen by the management backend.
type Agent struct {
	ID                  uint   `gorm:"primaryKey"`
	Name                string `gorm:"size:255"`
	EntityID            uint   `gorm:"index;not null"`
	DeviceID            uint   `gorm:"uniqueIndex;not null"`
	Device              *Device
	FleetID             uint `gorm:"index"`
	Fleet               *Fleet
	UserID              uint `gorm:"index"`
	InvitationID        uint
	EnrollStatus        string `gorm:"size:32;index;not null;default:enrolled"`
	Version             string `gorm:"size:32"`
	MdmType             string `gorm:"size:32"`
	HasSystemPermission bool
	IsOnline            bool
	LastContact         *time.Time
	Wipe                bool
	Lock                bool
	NotificationType    string `gorm:"size:32"`
	NotificationToken   string `gorm:"size:255"`
	Certificate         string `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	topic    string
	topicSet bool
}

// Topic is "<entity>/agent/<serial>", or "" when the device has no serial.
// The value is computed once per loaded agent.
func (a *Agent) Topic() string {
	if a.topicSet {
		return a.topic
	}
	if a.Device == nil || a.Device.Serial == "" {
		return ""
	}
	a.topic = fmt.Sprintf("%d/agent/%s", a.EntityID, a.Device.Serial)
	a.topicSet = true
	return a.topic
}

func (a *Agent) Enrolled() bool { return a.EnrollStatus == EnrollStatusEnrolled }

// PushScopeType is the scope type advertised to push transports; mqtt agents
// have none.
func (a *Agent) PushScopeType() string {
	if a.NotificationType == NotificationMQTT {
		return ""
	}
	return a.NotificationType
}
