// Package storage keeps uploaded screenshots on a filesystem with their metadata in memory.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/boss-timer/backend/internal/models"
)

// DefaultMaxFileSize bounds a single screenshot.
const DefaultMaxFileSize = 20 << 20

var (
	ErrFileNotFound = errors.New("file not found")
	ErrNotImage     = errors.New("only image files are accepted")
	ErrFileTooLarge = errors.New("file too large")
)

// Store defines the interface for screenshot storage.
type Store interface {
	Save(sessionID, name, mimeType string, modifiedAt time.Time, r io.Reader) (*models.FileInfo, error)
	SaveBytes(sessionID, name, mimeType string, modifiedAt time.Time, data []byte) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(sessionID string) ([]*models.FileInfo, error)
	ReadAll(id string) ([]byte, error)
	Delete(id string) error
	DeleteSession(sessionID string) (int, error)
}

// LocalStore implements Store on an afero filesystem, one directory per session.
type LocalStore struct {
	mu          sync.RWMutex
	fs          afero.Fs
	uploadDir   string
	maxFileSize int64
	files       map[string]*models.FileInfo
	now         func() time.Time
}

// NewLocalStore creates a store rooted at uploadDir on the OS filesystem.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	return NewStore(afero.NewOsFs(), uploadDir, DefaultMaxFileSize)
}

// NewStore creates a store on fs. maxFileSize <= 0 selects DefaultMaxFileSize.
func NewStore(fs afero.Fs, uploadDir string, maxFileSize int64) (*LocalStore, error) {
	if err := fs.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &LocalStore{
		fs:          fs,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
		files:       make(map[string]*models.FileInfo),
		now:         time.Now,
	}, nil
}

// IsImage reports whether a MIME type names an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// Save reads r fully and stores it as a screenshot of sessionID.
func (s *LocalStore) Save(sessionID, name, mimeType string, modifiedAt time.Time, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return s.SaveBytes(sessionID, name, mimeType, modifiedAt, data)
}

// SaveBytes stores data as a screenshot of sessionID. An empty or generic MIME type is
// sniffed from the content. A zero modifiedAt falls back to the upload time.
func (s *LocalStore) SaveBytes(sessionID, name, mimeType string, modifiedAt time.Time, data []byte) (*models.FileInfo, error) {
	if int64(len(data)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !IsImage(mimeType) {
		return nil, ErrNotImage
	}

	id := uuid.New().String()
	dir := filepath.Join(s.uploadDir, sessionID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	if err := afero.WriteReader(s.fs, filepath.Join(dir, id), bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	now := s.now()
	if modifiedAt.IsZero() {
		modifiedAt = now
	}
	info := &models.FileInfo{
		ID:         id,
		SessionID:  sessionID,
		Name:       name,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		ModifiedAt: modifiedAt,
		UploadedAt: now,
		Status:     "uploaded",
	}

	s.mu.Lock()
	s.files[id] = info
	s.mu.Unlock()

	return copyInfo(info), nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return copyInfo(info), nil
}

// List returns the session's files in upload order.
func (s *LocalStore) List(sessionID string) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0)
	for _, info := range s.files {
		if info.SessionID == sessionID {
			list = append(list, copyInfo(info))
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].UploadedAt.Equal(list[j].UploadedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].UploadedAt.Before(list[j].UploadedAt)
	})
	return list, nil
}

// ReadAll returns the content of a stored file.
func (s *LocalStore) ReadAll(id string) ([]byte, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	path := filepath.Join(s.uploadDir, info.SessionID, id)
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	delete(s.files, id)
	return nil
}

// DeleteSession removes every file of a session and returns how many were removed.
func (s *LocalStore) DeleteSession(sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, info := range s.files {
		if info.SessionID == sessionID {
			delete(s.files, id)
			n++
		}
	}
	if err := s.fs.RemoveAll(filepath.Join(s.uploadDir, sessionID)); err != nil {
		return n, fmt.Errorf("deleting session files: %w", err)
	}
	return n, nil
}

func (s *LocalStore) path(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.files[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return filepath.Join(s.uploadDir, info.SessionID, id), nil
}

func copyInfo(info *models.FileInfo) *models.FileInfo {
	c := *info
	return &c
}
