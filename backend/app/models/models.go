package models

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&User{}, &EntityConfig{},
		&Device{}, &Geolocation{}, &InventorySnapshot{}, &Document{},
		&Fleet{}, &Policy{}, &Task{}, &TaskStatus{}, &Package{}, &File{},
		&Agent{},
		&Invitation{}, &InvitationLog{},
		&MqttUser{}, &MqttAcl{}, &MqttLog{},
	}
}
