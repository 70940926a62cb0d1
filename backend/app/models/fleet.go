package models

import (
	"fmt"
	"time"
)

type Fleet struct {
	ID        uint   `gorm:"primaryKey"`
	EntityID  uint   `gorm:"index;not null"`
	Name      string `gorm:"size:255;not null"`
	IsDefault bool   `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Topic is "<entity>/fleet/<id>". The default fleet has no topic.
func (f *Fleet) Topic() string {
	if f == nil || f.IsDefault {
		return ""
	}
	return fmt.Sprintf("%d/fleet/%d", f.EntityID, f.ID)
}

type Policy struct {
	ID       uint   `gorm:"primaryKey"`
	Symbol   string `gorm:"uniqueIndex;size:191;not null"`
	Name     string `gorm:"size:255"`
	Type     string `gorm:"size:32"`
	Unicity  bool
	Default  string `gorm:"size:255"`
	Itemtype string `gorm:"size:32"` // package, file or empty
}

const (
	AppliedToFleet = "fleet"
	AppliedToAgent = "agent"
)

// Task is one policy applied to a fleet (or a single agent).
type Task struct {
	ID              uint `gorm:"primaryKey"`
	PolicyID        uint `gorm:"index;not null"`
	Policy          *Policy
	ItemtypeApplied string `gorm:"size:16;index;not null"`
	ItemsIDApplied  uint   `gorm:"index;not null"`
	Value           string `gorm:"type:text"`
	Itemtype        string `gorm:"size:32"`
	ItemsID         uint
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const (
	TaskStatusPending  = "pending"
	TaskStatusReceived = "received"
	TaskStatusDone     = "done"
	TaskStatusFailed   = "failed"
	TaskStatusCanceled = "canceled"
)

type TaskStatus struct {
	ID        uint   `gorm:"primaryKey"`
	AgentID   uint   `gorm:"index;not null"`
	TaskID    uint   `gorm:"index;not null"`
	Status    string `gorm:"size:32;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Package struct {
	ID          uint   `gorm:"primaryKey"`
	EntityID    uint   `gorm:"index"`
	Name        string `gorm:"size:255"`
	PackageName string `gorm:"size:255"`
	Version     string `gorm:"size:64"`
}

type File struct {
	ID       uint   `gorm:"primaryKey"`
	EntityID uint   `gorm:"index"`
	Name     string `gorm:"size:255"`
	Source   string `gorm:"size:1024"`
}
