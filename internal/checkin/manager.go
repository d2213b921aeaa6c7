package checkin

import (
	"context"
	"sync"
	"time"

	"github.com/skintrack/server/internal/models"
	"github.com/skintrack/server/internal/observability"
)

// ActiveTestSource looks up the test a session should ask about
type ActiveTestSource interface {
	GetActiveTest(ctx context.Context, ownerID string) (*models.Test, error)
}

// ProfileSource looks up the coarse profile passed to summaries
type ProfileSource interface {
	GetProfile(ctx context.Context, ownerID string) (*models.UserProfile, error)
}

// ManagerConfig wires a Manager
type ManagerConfig struct {
	Store       SessionStore
	Tests       ActiveTestSource
	Profiles    ProfileSource
	Uploader    ImageUploader
	Summaries   *SummaryAdapter
	OnSummary   func(ownerID string, result SummaryResult)
	IdleTimeout time.Duration
	Clock       func() time.Time
	Logger      *observability.Logger
	Metrics     *observability.CheckinMetrics
}

// SweepStatus reports the session sweeper's last run
type SweepStatus struct {
	Running          bool      `json:"running"`
	LiveSessions     int       `json:"liveSessions"`
	LastRun          time.Time `json:"lastRun,omitempty"`
	LastRemoved      int       `json:"lastRemoved"`
	NextScheduledRun time.Time `json:"nextScheduledRun,omitempty"`
}

// Manager keeps live sessions in memory and expires idle ones
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
	status   SweepStatus
	ticker   *time.Ticker
	stopChan chan struct{}
	loopDone chan struct{}
}

// NewManager creates an empty session registry
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Start opens a new session for the owner with their active test and
// profile as they are right now
func (m *Manager) Start(ctx context.Context, ownerID string) (*Session, error) {
	test, err := m.cfg.Tests.GetActiveTest(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	profile := models.UserProfile{OwnerID: ownerID}
	if m.cfg.Profiles != nil {
		p, err := m.cfg.Profiles.GetProfile(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			profile = *p
		}
	}

	s, err := NewSession(SessionConfig{
		OwnerID:    ownerID,
		ActiveTest: test,
		Profile:    profile,
		Store:      m.cfg.Store,
		Uploader:   m.cfg.Uploader,
		Summaries:  m.cfg.Summaries,
		OnSummary:  m.cfg.OnSummary,
		Clock:      m.cfg.Clock,
		Logger:     m.cfg.Logger,
		Metrics:    m.cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.cfg.Metrics.RecordSessionStarted(ctx)
	m.cfg.Logger.WithContext(ctx).
		WithFields(map[string]interface{}{"session_id": s.ID(), "user_id": ownerID, "with_test": test != nil}).
		Info("check-in session started")

	return s, nil
}

// Get returns the owner's session. Sessions of other owners are reported
// as not found.
func (m *Manager) Get(id, ownerID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok || s.OwnerID() != ownerID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of sessions held
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes every session idle for longer than the idle timeout.
// Sessions that can still be cancelled are cancelled first.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := m.cfg.Clock().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	live := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		outcome := "expired"
		switch s.Step() {
		case StepCompleted, StepCompleting:
			outcome = "completed"
		case StepCancelled:
			outcome = "cancelled"
		}
		s.expire()
		m.cfg.Metrics.RecordSessionEnded(ctx, outcome)
	}

	m.mu.Lock()
	m.status.LastRun = m.cfg.Clock()
	m.status.LastRemoved = len(stale)
	m.status.LiveSessions = live
	m.mu.Unlock()

	if len(stale) > 0 {
		m.cfg.Logger.Infof("Session sweep: removed %d idle sessions, %d live", len(stale), live)
	}
	return len(stale)
}

// StartSweeper runs Sweep every interval until Stop is called
func (m *Manager) StartSweeper(interval time.Duration) {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		return
	}
	m.ticker = time.NewTicker(interval)
	m.stopChan = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.status.Running = true
	m.status.NextScheduledRun = m.cfg.Clock().Add(interval)
	ticker, stop, done := m.ticker, m.stopChan, m.loopDone
	m.mu.Unlock()

	m.cfg.Logger.Infof("Session sweeper started (runs every %s)", interval)

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				m.mu.Lock()
				m.status.NextScheduledRun = m.cfg.Clock().Add(interval)
				m.mu.Unlock()
				m.Sweep(context.Background())
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the sweeper and waits for its loop to exit
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	close(m.stopChan)
	done := m.loopDone
	m.ticker = nil
	m.status.Running = false
	m.mu.Unlock()

	<-done
	m.cfg.Logger.Info("Session sweeper stopped")
}

// Status returns the sweeper status
func (m *Manager) Status() SweepStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := m.status
	status.LiveSessions = len(m.sessions)
	return status
}
