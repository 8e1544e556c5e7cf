package session

import (
	"context"

	"ibgate/internal/broker"
	"ibgate/internal/domain"
)

// Live returns the session for clientID after the guard sequence every
// higher-level action must pass: an absent entry is no_connection, a
// present-but-dead one is not_connected. The venue operation itself runs
// after this, outside any registry lock.
func (m *Manager) Live(clientID int) (broker.Session, *Error) {
	entry, ok := m.registry.Lookup(clientID)
	if !ok {
		return nil, ErrNoConnection(clientID)
	}
	if !entry.Session.IsConnected() {
		return nil, ErrNotConnected(clientID)
	}
	return entry.Session, nil
}

// AccountSummary is the guarded live account snapshot for clientID.
func (m *Manager) AccountSummary(ctx context.Context, clientID int) (domain.AccountSummary, *Error) {
	sess, gerr := m.Live(clientID)
	if gerr != nil {
		return domain.AccountSummary{}, gerr
	}
	acct, err := sess.AccountSummary(ctx)
	if err != nil {
		return domain.AccountSummary{}, ErrOperationFailed(clientID, "account summary", err)
	}
	return acct, nil
}

// Positions is the guarded position query for clientID.
func (m *Manager) Positions(ctx context.Context, clientID int) ([]domain.Position, *Error) {
	sess, gerr := m.Live(clientID)
	if gerr != nil {
		return nil, gerr
	}
	positions, err := sess.Positions(ctx)
	if err != nil {
		return nil, ErrOperationFailed(clientID, "positions", err)
	}
	return positions, nil
}

// OpenOrders is the guarded open-order query for clientID.
func (m *Manager) OpenOrders(ctx context.Context, clientID int) ([]domain.OpenOrder, *Error) {
	sess, gerr := m.Live(clientID)
	if gerr != nil {
		return nil, gerr
	}
	orders, err := sess.OpenOrders(ctx)
	if err != nil {
		return nil, ErrOperationFailed(clientID, "open orders", err)
	}
	return orders, nil
}
