package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/boss-timer/backend/internal/log"
	"github.com/boss-timer/backend/internal/metrics"
	"github.com/boss-timer/backend/internal/models"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the active rule set and reloads it when the rules file changes.
// Without a path it serves the built-in defaults.
type Holder struct {
	fs     afero.Fs
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	current models.BossRules

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
}

// NewHolder returns a holder for the rules file at path, read through fs.
// The file is loaded once; a missing file leaves the defaults in place.
func NewHolder(fs afero.Fs, path string) (*Holder, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	h := &Holder{
		fs:      fs,
		path:    path,
		logger:  log.WithComponent("rules"),
		current: Default(),
	}
	if path == "" {
		return h, nil
	}
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("stat rules: %w", err)
	}
	if !exists {
		h.logger.Info().Str("path", path).Msg("rules file not found, using built-in rules")
		return h, nil
	}
	if err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// Get returns the active rule set.
func (h *Holder) Get() models.BossRules {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Path returns the watched rules file, if any.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads the rules file. An invalid file keeps the previous rules.
func (h *Holder) Reload() error {
	if h.path == "" {
		return nil
	}
	data, err := afero.ReadFile(h.fs, h.path)
	if err != nil {
		metrics.RecordRulesReload(err)
		return fmt.Errorf("read rules: %w", err)
	}
	r, err := Parse(data)
	metrics.RecordRulesReload(err)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("rules reload rejected")
		return err
	}

	h.mu.Lock()
	h.current = r
	h.mu.Unlock()

	h.logger.Info().
		Int("exclude", len(r.Exclude)).
		Int("rename", len(r.Rename)).
		Msg("rules loaded")
	return nil
}

// StartWatcher reloads the rules whenever the file is written or replaced, until ctx ends.
// The parent directory is watched so editors that rename over the file are picked up.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch rules dir: %w", err)
	}

	h.watchMu.Lock()
	h.watcher = w
	h.watchMu.Unlock()

	h.logger.Info().Str("path", h.path).Msg("watching rules file")
	go h.watchLoop(ctx, w)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
		_ = w.Close()
	}()

	target := filepath.Clean(h.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := h.Reload(); err != nil {
					h.logger.Warn().Err(err).Msg("automatic rules reload failed")
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("rules watcher error")
		}
	}
}

// Stop closes the file watcher if one is running.
func (h *Holder) Stop() {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	if h.watcher != nil {
		_ = h.watcher.Close()
		h.watcher = nil
	}
}
