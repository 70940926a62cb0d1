package dto

import "time"

type AgentResponse struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	EntityID         uint       `json:"entity_id"`
	DeviceID         uint       `json:"device_id"`
	Serial           string     `json:"serial,omitempty"`
	FleetID          uint       `json:"fleet_id"`
	Topic            string     `json:"topic,omitempty"`
	EnrollStatus     string     `json:"enroll_status"`
	Version          string     `json:"version,omitempty"`
	MdmType          string     `json:"mdm_type,omitempty"`
	NotificationType string     `json:"notification_type,omitempty"`
	IsOnline         bool       `json:"is_online"`
	LastContact      *time.Time `json:"last_contact,omitempty"`
	Wipe             bool       `json:"wipe"`
	Lock             bool       `json:"lock"`
	Warning          string     `json:"warning,omitempty"`
}

// AgentUpdateRequest mirrors the fields an administrator may change. Absent
// fields are left untouched.
type AgentUpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	FleetID  *uint   `json:"fleet_id,omitempty"`
	Wipe     *bool   `json:"wipe,omitempty"`
	Lock     *bool   `json:"lock,omitempty"`
	Unenroll bool    `json:"_unenroll,omitempty"`
}

type GeolocationResponse struct {
	Latitude  string    `json:"latitude"`
	Longitude string    `json:"longitude"`
	Accuracy  string    `json:"accuracy,omitempty"`
	Date      time.Time `json:"date"`
}

type InventoryResponse struct {
	Checksum  string    `json:"checksum"`
	Inventory string    `json:"inventory"`
	Date      time.Time `json:"date"`
}

type QueryResponse struct {
	Query  string `json:"query"`
	Status string `json:"status"`
}

type EnrollResponse struct {
	Agent        AgentResponse `json:"agent"`
	APIToken     string        `json:"api_token"`
	Topic        string        `json:"topic"`
	MqttUser     string        `json:"mqttuser"`
	MqttPassword string        `json:"mqttpasswd"`
	Broker       string        `json:"broker"`
	Port         int           `json:"port"`
	TLSPort      int           `json:"tls_port"`
	TLS          bool          `json:"tls"`
	Certificate  string        `json:"certificate,omitempty"`
}
