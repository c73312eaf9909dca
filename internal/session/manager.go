// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the remote agent session: identity, liveness, and
// idle timeout.
package session

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/palaverhq/palaver-tui/internal/commands"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Prober checks gateway reachability. Satisfied by *rpc.Client.
type Prober interface {
	Ping(ctx context.Context) error
}

// Manager tracks the remote session's identity and liveness. Commands that
// require a session consult the manager's Ref() snapshot at dispatch time.
type Manager struct {
	mu sync.Mutex

	sessionID    string
	live         bool
	startTime    time.Time
	lastActivity time.Time

	// Idle timeout configuration
	timeout       time.Duration
	warningBefore time.Duration
	warningShown  bool

	prober Prober
}

// Config holds configuration for the session manager.
type Config struct {
	// Timeout is the idle timeout after which the session is considered
	// stale (default: 30 minutes)
	Timeout time.Duration

	// WarningBefore is how long before timeout to surface a warning
	// (default: 2 minutes)
	WarningBefore time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Minute,
		WarningBefore: 2 * time.Minute,
	}
}

// NewManager creates a session manager with a fresh session identity. The
// session starts not-live; Connect marks it live once the gateway answers.
func NewManager(cfg Config, prober Prober) *Manager {
	now := time.Now()
	return &Manager{
		sessionID:     uuid.NewString(),
		startTime:     now,
		lastActivity:  now,
		timeout:       cfg.Timeout,
		warningBefore: cfg.WarningBefore,
		prober:        prober,
	}
}

// =============================================================================
// SESSION STATE
// =============================================================================

// SessionID returns the current session ID.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Live reports whether the session is currently usable for dispatch.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Ref returns a snapshot of the session reference for command dispatch.
func (m *Manager) Ref() commands.SessionRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return commands.SessionRef{ID: m.sessionID, Live: m.live}
}

// Duration returns how long the session has existed.
func (m *Manager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.startTime)
}

// IdleTime returns how long since the last recorded activity.
func (m *Manager) IdleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity)
}

// RemainingTime returns time until the idle timeout fires.
func (m *Manager) RemainingTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.timeout - time.Since(m.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// =============================================================================
// LIVENESS
// =============================================================================

// Connect probes the gateway and marks the session live on success.
func (m *Manager) Connect(ctx context.Context) error {
	if m.prober != nil {
		if err := m.prober.Ping(ctx); err != nil {
			m.setLive(false)
			return err
		}
	}
	m.setLive(true)
	return nil
}

// MarkDisconnected marks the session not-live after a transport failure.
// Dispatch preconditions fail until the next successful Connect.
func (m *Manager) MarkDisconnected() {
	m.setLive(false)
}

// Reset discards the current session identity and starts a fresh one,
// not-live. Used when the remote session is torn down.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.sessionID = uuid.NewString()
	m.live = false
	m.startTime = now
	m.lastActivity = now
	m.warningShown = false
}

func (m *Manager) setLive(live bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = live
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp. Called on user input.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
	m.warningShown = false
}

// IsExpired returns true if the session has been idle past its timeout.
func (m *Manager) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity) >= m.timeout
}

// ShouldShowWarning returns true once per idle period when the session is
// approaching its timeout.
func (m *Manager) ShouldShowWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.warningShown {
		return false
	}

	idle := time.Since(m.lastActivity)
	threshold := m.timeout - m.warningBefore

	return idle >= threshold && idle < m.timeout
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check session state.
type TickMsg struct {
	Time time.Time
}

// TimeoutWarningMsg indicates the session is about to time out.
type TimeoutWarningMsg struct {
	Remaining time.Duration
}

// TimeoutMsg indicates the session has timed out.
type TimeoutMsg struct{}

// ConnectedMsg indicates the gateway probe succeeded.
type ConnectedMsg struct{}

// DisconnectedMsg indicates the gateway probe failed.
type DisconnectedMsg struct {
	Err error
}

// TickCmd returns a command that ticks once per second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// ConnectCmd returns a command that probes the gateway and reports the
// result as a message.
func (m *Manager) ConnectCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		if err := m.Connect(ctx); err != nil {
			return DisconnectedMsg{Err: err}
		}
		return ConnectedMsg{}
	}
}

// HandleTick processes a tick and returns the follow-up commands.
func (m *Manager) HandleTick() tea.Cmd {
	var cmds []tea.Cmd

	if m.ShouldShowWarning() {
		remaining := m.RemainingTime()
		cmds = append(cmds, func() tea.Msg {
			return TimeoutWarningMsg{Remaining: remaining}
		})
		m.mu.Lock()
		m.warningShown = true
		m.mu.Unlock()
	}

	if m.IsExpired() {
		cmds = append(cmds, func() tea.Msg {
			return TimeoutMsg{}
		})
	}

	cmds = append(cmds, TickCmd())
	return tea.Batch(cmds...)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// SetTimeout updates the idle timeout duration.
func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
}

// SetWarningTime updates when to surface the timeout warning.
func (m *Manager) SetWarningTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningBefore = d
}
