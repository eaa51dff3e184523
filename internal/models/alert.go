package models

import "time"

// AlertStatus tracks where an entry is in its alert lifecycle.
type AlertStatus string

const (
	AlertStatusPending AlertStatus = "pending"
	AlertStatusAlerted AlertStatus = "alerted"
	AlertStatusExpired AlertStatus = "expired"
)

// AlertEvent is produced when an entry enters the lookahead window.
type AlertEvent struct {
	Key        string        `json:"key"`
	Generation uint64        `json:"generation"`
	Entry      ScheduleEntry `json:"entry"`
	Occurrence time.Time     `json:"occurrence"`
	Remaining  time.Duration `json:"remaining"`
}

// Notification is the user-facing message emitted for a fired alert.
type Notification struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	BossName   string    `json:"bossName"`
	SpawnTime  string    `json:"spawnTime"`
	Occurrence time.Time `json:"occurrence"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NotificationPermission mirrors the browser notification permission state.
type NotificationPermission string

const (
	PermissionDefault NotificationPermission = "default"
	PermissionGranted NotificationPermission = "granted"
	PermissionDenied  NotificationPermission = "denied"
)

// Valid reports whether p is one of the known permission states.
func (p NotificationPermission) Valid() bool {
	switch p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return true
	}
	return false
}
