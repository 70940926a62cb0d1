package dto

import "time"

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	EntityID uint   `json:"entity_id"`
}

type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	EntityID uint   `json:"entity_id"`
}

type InvitationRequest struct {
	Email    string `json:"email"`
	EntityID uint   `json:"entity_id"`
}

type InvitationResponse struct {
	ID             uint       `json:"id"`
	Token          string     `json:"invitation_token"`
	Status         string     `json:"status"`
	ExpirationDate *time.Time `json:"expiration_date"`
	EntityID       uint       `json:"entity_id"`
}

type InvitationLogEntry struct {
	Event string    `json:"event"`
	Date  time.Time `json:"date"`
}

type FleetRequest struct {
	Name     string `json:"name"`
	EntityID uint   `json:"entity_id"`
}

type FleetResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	EntityID  uint   `json:"entity_id"`
	IsDefault bool   `json:"is_default"`
	Topic     string `json:"topic,omitempty"`
}

type EntityRequest struct {
	DeviceLimit int `json:"device_limit"`
}

type EntityResponse struct {
	EntityID    uint `json:"entity_id"`
	DeviceLimit int  `json:"device_limit"`
}

type TaskResponse struct {
	ID       uint   `json:"id"`
	PolicyID uint   `json:"policy_id"`
	Symbol   string `json:"symbol,omitempty"`
	FleetID  uint   `json:"fleet_id"`
	Value    string `json:"value"`
	Warning  string `json:"warning,omitempty"`
}

type TaskStatusResponse struct {
	TaskID uint   `json:"task_id"`
	Status string `json:"status"`
}
