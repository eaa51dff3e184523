// handlers_files.go - Screenshot upload handlers
package api

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/session"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	sessions SessionManager
}

// NewFileHandler creates a new file handler
func NewFileHandler(sessions SessionManager) FileHandler {
	return &FileHandlerImpl{sessions: sessions}
}

// PasteRequest is a screenshot pasted from the clipboard.
type PasteRequest struct {
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Data         string `json:"data"` // base64, optionally a data: URL
	LastModified int64  `json:"lastModified,omitempty"`
}

// HandleUploadFiles accepts one or more multipart "file" parts. An optional
// "lastModified" value per file carries the browser's modification time in milliseconds.
func (h *FileHandlerImpl) HandleUploadFiles(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		return NewValidationError("file")
	}
	stamps := form.Value["lastModified"]

	uploaded := make([]*models.FileInfo, 0, len(headers))
	for i, fh := range headers {
		var modified time.Time
		if i < len(stamps) {
			modified = parseMillis(stamps[i])
		}
		f, err := fh.Open()
		if err != nil {
			return NewBadRequestError("failed to open uploaded file", err)
		}
		info, err := h.sessions.AddFile(id, session.Upload{
			Name:       fh.Filename,
			MimeType:   fh.Header.Get(echo.HeaderContentType),
			ModifiedAt: modified,
			Reader:     f,
		})
		f.Close()
		if err != nil {
			return FromError(err)
		}
		uploaded = append(uploaded, info)
	}
	return c.JSON(http.StatusCreated, uploaded)
}

// HandlePasteFile accepts a single base64 screenshot as JSON
func (h *FileHandlerImpl) HandlePasteFile(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var req PasteRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Data == "" {
		return NewValidationError("data")
	}

	mimeType, payload := splitDataURL(req.Data)
	if req.MimeType != "" {
		mimeType = req.MimeType
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}
	name := req.Name
	if name == "" {
		name = "pasted-image"
	}
	var modified time.Time
	if req.LastModified > 0 {
		modified = time.UnixMilli(req.LastModified)
	}

	info, err := h.sessions.AddFile(id, session.Upload{
		Name:       name,
		MimeType:   mimeType,
		ModifiedAt: modified,
		Data:       data,
	})
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleListFiles returns the session's screenshots in upload order
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	files, err := h.sessions.Files(id)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleClearFiles removes every screenshot and clears the schedule
func (h *FileHandlerImpl) HandleClearFiles(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	if err := h.sessions.ClearFiles(id); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteFile removes one screenshot
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	fileID := c.Param("fileId")
	if fileID == "" {
		return NewValidationError("fileId")
	}
	if err := h.sessions.RemoveFile(id, fileID); err != nil {
		return FromError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// splitDataURL separates "data:image/png;base64,...." into its MIME type and payload.
func splitDataURL(s string) (string, string) {
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", s
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	return mimeType, payload
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
