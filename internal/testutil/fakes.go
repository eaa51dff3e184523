package testutil

import (
	"context"
	"sync"

	"github.com/boss-timer/backend/internal/analyzer"
	"github.com/boss-timer/backend/internal/models"
)

// FakeAnalyzer returns a canned result. When Gate is set, Analyze blocks until it is
// closed or the context ends.
type FakeAnalyzer struct {
	mu     sync.Mutex
	Result *models.AnalysisResult
	Err    error
	Gate   chan struct{}
	calls  [][]analyzer.Image
}

func (f *FakeAnalyzer) Analyze(ctx context.Context, images []analyzer.Image, _ models.BossRules) (*models.AnalysisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, images)
	gate, res, err := f.Gate, f.Result, f.Err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &models.AnalysisResult{ReferenceTime: models.NoReferenceTime, Bosses: []models.BossSpawn{}}, nil
	}
	c := *res
	c.Bosses = append([]models.BossSpawn(nil), res.Bosses...)
	return &c, nil
}

// Set replaces the canned answer.
func (f *FakeAnalyzer) Set(res *models.AnalysisResult, err error) {
	f.mu.Lock()
	f.Result, f.Err = res, err
	f.mu.Unlock()
}

// Calls returns the image sets seen so far.
func (f *FakeAnalyzer) Calls() [][]analyzer.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]analyzer.Image(nil), f.calls...)
}

var _ analyzer.Analyzer = (*FakeAnalyzer)(nil)

// RecordingPublisher collects published notifications.
type RecordingPublisher struct {
	mu     sync.Mutex
	sent   map[string][]models.Notification
	closed []string
	Err    error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{sent: make(map[string][]models.Notification)}
}

func (p *RecordingPublisher) Publish(sessionID string, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[sessionID] = append(p.sent[sessionID], n)
	return p.Err
}

// Sent returns the notifications published for sessionID.
func (p *RecordingPublisher) Sent(sessionID string) []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Notification(nil), p.sent[sessionID]...)
}

// CloseSession records that sessionID was released.
func (p *RecordingPublisher) CloseSession(sessionID string) {
	p.mu.Lock()
	p.closed = append(p.closed, sessionID)
	p.mu.Unlock()
}

// Closed returns the session IDs passed to CloseSession, in call order.
func (p *RecordingPublisher) Closed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.closed...)
}
