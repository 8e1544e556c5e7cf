// Package broker defines the venue session capability and provides
// implementations for the native gateway protocol, the Alpaca API, and an
// in-memory simulator.
package broker

import (
	"context"
	"errors"

	"ibgate/internal/domain"
)

// Session is one authenticated connection slot at a trading venue. A
// session is constructed disconnected; Connect establishes it and
// Disconnect tears it down. Data and order operations require a live
// connection and return ErrNotConnected otherwise.
//
// A session is driven by one logical caller at a time. Connection state
// is safe to inspect concurrently, but concurrent data/order calls from
// multiple callers are not serialized beyond what the venue protocol
// itself requires.
type Session interface {
	// Connect establishes the connection to the venue at host:port,
	// identifying as clientID.
	Connect(ctx context.Context, host string, port int, clientID int) error

	// Disconnect tears the connection down. Disconnecting an already
	// disconnected session is a no-op.
	Disconnect(ctx context.Context) error

	// IsConnected reports the live connection state. Never cached by
	// callers; always derived from the session.
	IsConnected() bool

	// AccountSummary fetches a live snapshot of the account.
	AccountSummary(ctx context.Context) (domain.AccountSummary, error)

	// Positions returns all current positions.
	Positions(ctx context.Context) ([]domain.Position, error)

	// OpenOrders returns all working orders for this session.
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)

	// QualifyContract resolves a contract to its venue identifier.
	QualifyContract(ctx context.Context, c domain.Contract) (domain.Contract, error)

	// PlaceOrder submits one order against a qualified contract.
	PlaceOrder(ctx context.Context, c domain.Contract, t domain.OrderTicket) (domain.OpenOrder, error)

	// CancelOrder requests cancellation of a working order.
	CancelOrder(ctx context.Context, orderID int64) error
}

// Errors shared by session implementations.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrTimeout          = errors.New("venue call timeout")
)
