package session

import (
	"context"
	"log/slog"

	"ibgate/internal/domain"
	"ibgate/internal/metrics"
)

// ConnectResult is the outcome of a successful connect or reuse.
type ConnectResult struct {
	ClientID int
	Reused   bool // true when an already live session answered
	Account  domain.AccountSummary
}

// DisconnectResult is the outcome of a disconnect.
type DisconnectResult struct {
	ClientID            int
	AlreadyDisconnected bool
}

// Manager runs the session lifecycle protocol on top of the registry:
// reuse a live session, connect a new or dead one, and tear sessions
// down. All venue I/O happens outside the registry's structural lock, so
// one client's slow handshake never serializes another client's
// operations.
type Manager struct {
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewManager creates a Manager. metrics may be nil.
func NewManager(registry *Registry, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{registry: registry, log: logger, metrics: m}
}

// Registry exposes the underlying registry, e.g. for gauges.
func (m *Manager) Registry() *Registry { return m.registry }

// Connect establishes or reuses the session for clientID.
//
// An existing live session is reused with zero new venue connects; the
// returned account snapshot is still fetched live. A new or dead
// session is connected outside the registry lock. On failure the entry
// stays in place disconnected, so the caller can simply retry.
func (m *Manager) Connect(ctx context.Context, host string, port, clientID int) (*ConnectResult, *Error) {
	entry, created := m.registry.CreateIfAbsent(clientID)

	if !created && entry.Session.IsConnected() {
		acct, err := entry.Session.AccountSummary(ctx)
		if err != nil {
			m.metrics.Connect("failed")
			return nil, ErrOperationFailed(clientID, "account summary", err)
		}
		m.log.Info("session reused", "client_id", clientID, "account", acct.AccountID)
		m.metrics.Connect("reused")
		return &ConnectResult{ClientID: clientID, Reused: true, Account: acct}, nil
	}

	// Network connect happens outside the structural lock and may take
	// arbitrary time.
	if err := entry.Session.Connect(ctx, host, port, clientID); err != nil {
		m.log.Warn("connect failed", "client_id", clientID, "host", host, "port", port, "error", err)
		m.metrics.Connect("failed")
		return nil, ErrConnectionFailed(clientID, err)
	}

	acct, err := entry.Session.AccountSummary(ctx)
	if err != nil {
		m.metrics.Connect("failed")
		return nil, ErrOperationFailed(clientID, "account summary", err)
	}

	m.log.Info("session connected", "client_id", clientID, "host", host, "port", port, "account", acct.AccountID)
	m.metrics.Connect("connected")
	return &ConnectResult{ClientID: clientID, Account: acct}, nil
}

// Disconnect tears down the session for clientID and removes its entry.
//
// An absent entry is a normal negative result (no_connection). An entry
// whose session already reports disconnected is removed as well, so
// presence in the registry always means a teardown has not completed.
func (m *Manager) Disconnect(ctx context.Context, clientID int) (*DisconnectResult, *Error) {
	entry, ok := m.registry.Lookup(clientID)
	if !ok {
		return nil, ErrNoConnection(clientID)
	}

	if !entry.Session.IsConnected() {
		m.registry.Remove(clientID)
		m.log.Info("stale session removed", "client_id", clientID)
		m.metrics.Disconnect()
		return &DisconnectResult{ClientID: clientID, AlreadyDisconnected: true}, nil
	}

	// Venue teardown outside the structural lock; it may block on
	// network I/O.
	if err := entry.Session.Disconnect(ctx); err != nil {
		m.log.Warn("disconnect failed", "client_id", clientID, "error", err)
		return nil, ErrOperationFailed(clientID, "disconnect", err)
	}

	m.registry.Remove(clientID)
	m.log.Info("session disconnected", "client_id", clientID)
	m.metrics.Disconnect()
	return &DisconnectResult{ClientID: clientID}, nil
}
