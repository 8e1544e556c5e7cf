package broker

import (
	"context"
	"fmt"
	"sync"

	"ibgate/internal/domain"
)

// Compile-time interface check.
var _ Session = (*SimulatorSession)(nil)

// SimulatorSession implements Session entirely in memory, for paper mode
// and tests. Market orders fill immediately at the contract's average
// cost basis (or the order's limit price when set); limit and stop
// orders rest as working orders.
type SimulatorSession struct {
	mu        sync.Mutex
	connected bool
	clientID  int

	account   domain.AccountSummary
	positions map[string]*domain.Position
	orders    map[int64]*domain.OpenOrder
	nextOrder int64
	nextConID int64

	// Failure injection for tests.
	FailConnect error // returned by Connect when set
	FailOp      error // returned by every data/order call when set

	// ConnectDelay, when set, is waited inside Connect. Used to
	// exercise lock-scoping behaviour under slow handshakes.
	ConnectDelay func()
}

// NewSimulatorSession creates a disconnected simulator with a default
// paper account.
func NewSimulatorSession() *SimulatorSession {
	return &SimulatorSession{
		account: domain.AccountSummary{
			AccountID:    "DU1234567",
			Currency:     "USD",
			NetLiquidity: 100000,
		},
		positions: make(map[string]*domain.Position),
		orders:    make(map[int64]*domain.OpenOrder),
		nextOrder: 1,
		nextConID: 1000,
	}
}

// SetAccount replaces the simulated account snapshot.
func (s *SimulatorSession) SetAccount(a domain.AccountSummary) {
	s.mu.Lock()
	s.account = a
	s.mu.Unlock()
}

// Connect marks the session live. Honors FailConnect and ConnectDelay.
func (s *SimulatorSession) Connect(_ context.Context, _ string, _ int, clientID int) error {
	if s.ConnectDelay != nil {
		s.ConnectDelay()
	}
	if s.FailConnect != nil {
		return s.FailConnect
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return ErrAlreadyConnected
	}
	s.connected = true
	s.clientID = clientID
	return nil
}

// Disconnect marks the session dead. No-op when already disconnected.
func (s *SimulatorSession) Disconnect(_ context.Context) error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

// IsConnected reports the simulated connection state.
func (s *SimulatorSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Drop simulates an external connection loss: the session reports
// disconnected without any teardown having run.
func (s *SimulatorSession) Drop() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *SimulatorSession) guard() error {
	if !s.connected {
		return ErrNotConnected
	}
	if s.FailOp != nil {
		return s.FailOp
	}
	return nil
}

// AccountSummary returns the simulated account snapshot.
func (s *SimulatorSession) AccountSummary(_ context.Context) (domain.AccountSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return domain.AccountSummary{}, err
	}
	a := s.account
	a.Values = append([]domain.AccountValue{
		{Account: a.AccountID, Tag: "NetLiquidation", Value: fmt.Sprintf("%.2f", a.NetLiquidity), Currency: a.Currency},
	}, a.Values...)
	return a, nil
}

// Positions returns the simulated positions.
func (s *SimulatorSession) Positions(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.Qty != 0 {
			out = append(out, *p)
		}
	}
	return out, nil
}

// OpenOrders returns the simulated working orders.
func (s *SimulatorSession) OpenOrders(_ context.Context) ([]domain.OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return nil, err
	}
	out := make([]domain.OpenOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

// QualifyContract assigns a stable simulated contract id.
func (s *SimulatorSession) QualifyContract(_ context.Context, c domain.Contract) (domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return domain.Contract{}, err
	}
	if p, ok := s.positions[c.Key()]; ok {
		return p.Contract, nil
	}
	c.ConID = s.nextConID
	s.nextConID++
	return c, nil
}

// PlaceOrder fills market orders immediately and rests everything else.
func (s *SimulatorSession) PlaceOrder(_ context.Context, c domain.Contract, t domain.OrderTicket) (domain.OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return domain.OpenOrder{}, err
	}

	order := domain.OpenOrder{
		OrderID:  s.nextOrder,
		ClientID: s.clientID,
		PermID:   s.nextOrder + 7000,
		Action:   t.Action,
		TotalQty: t.Qty,
		Type:     t.Type,
		LmtPrice: t.LimitPrice,
		AuxPrice: t.StopPrice,
		TIF:      t.TIF,
		Symbol:   c.Symbol,
		Exchange: c.Exchange,
		Currency: c.Currency,
		Status:   "Submitted",
	}
	s.nextOrder++

	if t.Type == domain.OrderTypeMarket {
		order.Status = "Filled"
		s.applyFill(c, t)
	} else {
		s.orders[order.OrderID] = &order
	}

	return order, nil
}

// applyFill adjusts the position book for an immediate fill.
func (s *SimulatorSession) applyFill(c domain.Contract, t domain.OrderTicket) {
	signed := t.Qty
	if t.Action == domain.ActionSell {
		signed = -signed
	}

	p, ok := s.positions[c.Key()]
	if !ok {
		price := t.LimitPrice
		s.positions[c.Key()] = &domain.Position{Contract: c, Qty: signed, AvgCost: price}
		return
	}
	p.Qty += signed
	if p.Qty == 0 {
		delete(s.positions, c.Key())
	}
}

// CancelOrder removes a working order. Unknown ids are an error, as the
// venue would reject them.
func (s *SimulatorSession) CancelOrder(_ context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guard(); err != nil {
		return err
	}
	if _, ok := s.orders[orderID]; !ok {
		return fmt.Errorf("cancel order %d: unknown order", orderID)
	}
	delete(s.orders, orderID)
	return nil
}
