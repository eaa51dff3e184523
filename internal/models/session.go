package models

import "time"

// SessionStatus represents the analysis status of a session.
type SessionStatus string

const (
	SessionStatusIdle      SessionStatus = "idle"
	SessionStatusAnalyzing SessionStatus = "analyzing"
	SessionStatusReady     SessionStatus = "ready"
	SessionStatusError     SessionStatus = "error"
)

// SessionView is the JSON snapshot of a session returned to the browser.
type SessionView struct {
	ID                string                 `json:"id"`
	Status            SessionStatus          `json:"status"`
	Stage             string                 `json:"stage,omitempty"`
	Progress          float64                `json:"progress"` // 0-100
	Error             string                 `json:"error,omitempty"`
	Files             []*FileInfo            `json:"files"`
	ReferenceTime     string                 `json:"referenceTime,omitempty"`     // the schedule was ordered against this
	ReportedReference string                 `json:"reportedReference,omitempty"` // as read from the screenshots
	Generation        uint64                 `json:"generation"`
	Schedule          []DisplayEntry         `json:"schedule"`
	Display           DisplayOptions         `json:"display"`
	AlertsEnabled     bool                   `json:"alertsEnabled"`
	Watching          bool                   `json:"watching"`
	Permission        NotificationPermission `json:"permission"`
	CreatedAt         time.Time              `json:"createdAt"`
	LastAccessed      time.Time              `json:"lastAccessed"`
}
