package session

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrTooManySessions    = errors.New("too many active sessions")
	ErrFileNotFound       = errors.New("file not found in session")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNoFiles            = errors.New("no screenshots to analyze")
	ErrTooManyFiles       = errors.New("too many screenshots")
	ErrRateLimited        = errors.New("analysis rate limit exceeded")
	ErrInvalidPermission  = errors.New("invalid notification permission")
)
