package session

import (
	"fmt"
	"io"
	"time"

	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/metrics"
	"github.com/boss-timer/backend/internal/models"
)

// Upload is one screenshot offered to a session.
type Upload struct {
	Name       string
	MimeType   string
	ModifiedAt time.Time
	Reader     io.Reader // used when Data is nil
	Data       []byte
}

// AddFile stores a screenshot in the session. It fails while an analysis runs and once
// the session holds MaxFilesPerSession screenshots.
func (m *Manager) AddFile(id string, up Upload) (*models.FileInfo, error) {
	st, err := m.get(id)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.status == models.SessionStatusAnalyzing {
		return nil, ErrAnalysisInProgress
	}
	files, err := m.store.List(id)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	if len(files) >= m.opts.MaxFilesPerSession {
		return nil, ErrTooManyFiles
	}

	var info *models.FileInfo
	if up.Data != nil || up.Reader == nil {
		info, err = m.store.SaveBytes(id, up.Name, up.MimeType, up.ModifiedAt, up.Data)
	} else {
		info, err = m.store.Save(id, up.Name, up.MimeType, up.ModifiedAt, up.Reader)
	}
	if err != nil {
		return nil, err
	}
	st.lastAccessed = m.opts.Now()
	metrics.IncScreenshots()

	m.logger.Debug().
		Str("session", log.ShortID(id)).
		Str("file", info.Name).
		Int64("size", info.Size).
		Msg("screenshot added")
	return info, nil
}

// Files lists the screenshots of a session in upload order.
func (m *Manager) Files(id string) ([]*models.FileInfo, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	return m.store.List(id)
}

// RemoveFile deletes one screenshot. Removing the last one clears the schedule.
func (m *Manager) RemoveFile(id, fileID string) error {
	st, err := m.get(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.status == models.SessionStatusAnalyzing {
		st.mu.Unlock()
		return ErrAnalysisInProgress
	}
	info, err := m.store.Get(fileID)
	if err != nil || info.SessionID != id {
		st.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if err := m.store.Delete(fileID); err != nil {
		st.mu.Unlock()
		return err
	}
	remaining, err := m.store.List(id)
	cleared := err == nil && len(remaining) == 0
	if cleared {
		m.clearScheduleLocked(st)
	}
	st.mu.Unlock()
	return nil
}

// ClearFiles deletes every screenshot of the session and clears its schedule and alert memory.
func (m *Manager) ClearFiles(id string) error {
	st, err := m.get(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.status == models.SessionStatusAnalyzing {
		st.mu.Unlock()
		return ErrAnalysisInProgress
	}
	if _, err := m.store.DeleteSession(id); err != nil {
		st.mu.Unlock()
		return err
	}
	m.clearScheduleLocked(st)
	st.mu.Unlock()

	m.logger.Info().Str("session", log.ShortID(id)).Msg("screenshots cleared")
	return nil
}

// clearScheduleLocked empties the schedule as a new generation and stops the watcher.
// Caller holds st.mu.
func (m *Manager) clearScheduleLocked(st *state) {
	st.replaceSchedule(nil)
	st.watcher.Sync()
	st.status = models.SessionStatusIdle
	st.stage = ""
	st.progress = 0
	st.errMsg = ""
}
