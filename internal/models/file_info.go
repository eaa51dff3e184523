package models

import "time"

// FileInfo represents metadata about an uploaded screenshot.
type FileInfo struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId,omitempty"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"` // client-reported lastModified, falls back to upload time
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded"
}
