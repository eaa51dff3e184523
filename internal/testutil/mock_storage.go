// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/storage"
)

// MockStorage implements storage.Store in memory for testing
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	seq      map[string]int
	next     int

	// ReadErr, when set, is returned by ReadAll.
	ReadErr error
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
		seq:      make(map[string]int),
	}
}

func (m *MockStorage) Save(sessionID, name, mimeType string, modifiedAt time.Time, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(sessionID, name, mimeType, modifiedAt, data)
}

func (m *MockStorage) SaveBytes(sessionID, name, mimeType string, modifiedAt time.Time, data []byte) (*models.FileInfo, error) {
	if !storage.IsImage(mimeType) {
		return nil, storage.ErrNotImage
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if modifiedAt.IsZero() {
		modifiedAt = now
	}
	m.next++
	id := fmt.Sprintf("test-id-%d", m.next)
	file := &models.FileInfo{
		ID:         id,
		SessionID:  sessionID,
		Name:       name,
		MimeType:   mimeType,
		Size:       int64(len(data)),
		ModifiedAt: modifiedAt,
		UploadedAt: now,
		Status:     "uploaded",
	}
	m.files[id] = file
	m.fileData[id] = data
	m.seq[id] = m.next
	c := *file
	return &c, nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	c := *file
	return &c, nil
}

func (m *MockStorage) List(sessionID string) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.FileInfo, 0)
	for _, file := range m.files {
		if file.SessionID == sessionID {
			c := *file
			files = append(files, &c)
		}
	}
	sort.Slice(files, func(i, j int) bool { return m.seq[files[i].ID] < m.seq[files[j].ID] })
	return files, nil
}

func (m *MockStorage) ReadAll(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	data, ok := m.fileData[id]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return data, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.files[id]; !exists {
		return errors.New("file not found")
	}
	delete(m.files, id)
	delete(m.fileData, id)
	delete(m.seq, id)
	return nil
}

func (m *MockStorage) DeleteSession(sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, file := range m.files {
		if file.SessionID == sessionID {
			delete(m.files, id)
			delete(m.fileData, id)
			delete(m.seq, id)
			n++
		}
	}
	return n, nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
