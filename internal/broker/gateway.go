package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ibgate/internal/domain"
)

// Compile-time interface check.
var _ Session = (*GatewaySession)(nil)

// GatewaySession speaks the native gateway protocol: JSON command/response
// frames over a WebSocket, with a login handshake identifying the client.
type GatewaySession struct {
	cfg GatewayConfig
	log *slog.Logger

	// Connection state.
	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	clientID  int
	done      chan struct{}

	// Write serialization.
	writeMu sync.Mutex

	// Command/response correlation.
	pendingMu sync.Mutex
	pending   map[int64]chan response
	cmdID     int64 // atomic counter
}

// NewGatewaySession creates a disconnected gateway session.
func NewGatewaySession(cfg GatewayConfig, logger *slog.Logger) *GatewaySession {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewaySession{
		cfg:     cfg,
		log:     logger,
		pending: make(map[int64]chan response),
	}
}

// Connect dials the gateway at host:port, performs the login handshake
// with clientID, and starts the read loop.
func (s *GatewaySession) Connect(ctx context.Context, host string, port int, clientID int) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	url := fmt.Sprintf("ws://%s:%d/v1/ws", host, port)
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.ConnectTimeout}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway %s: %w", url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.clientID = clientID
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.readLoop(conn, s.done)

	// Login identifies the client slot; the gateway rejects a second
	// live login for the same client id.
	if err := s.call(ctx, opLogin, loginParams{ClientID: clientID}, nil); err != nil {
		s.teardown(conn)
		return fmt.Errorf("gateway login (client %d): %w", clientID, err)
	}

	s.log.Debug("gateway connected", "url", url, "client_id", clientID)
	return nil
}

// Disconnect closes the connection. Safe to call on an already
// disconnected session.
func (s *GatewaySession) Disconnect(_ context.Context) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	s.mu.Unlock()

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.teardown(conn)

	s.log.Debug("gateway disconnected", "client_id", s.clientID)
	return nil
}

// IsConnected reports the live connection state.
func (s *GatewaySession) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// AccountSummary fetches a live account snapshot.
func (s *GatewaySession) AccountSummary(ctx context.Context) (domain.AccountSummary, error) {
	var out domain.AccountSummary
	if err := s.call(ctx, opAccountSummary, nil, &out); err != nil {
		return domain.AccountSummary{}, err
	}
	return out, nil
}

// Positions returns all current positions.
func (s *GatewaySession) Positions(ctx context.Context) ([]domain.Position, error) {
	var out positionsResult
	if err := s.call(ctx, opPositions, nil, &out); err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(out.Positions))
	for _, p := range out.Positions {
		positions = append(positions, domain.Position{
			Contract: domain.Contract{
				ConID:    p.ConID,
				Symbol:   p.Symbol,
				Exchange: p.Exchange,
				Currency: p.Currency,
			},
			Qty:     p.Qty,
			AvgCost: p.AvgCost,
		})
	}
	return positions, nil
}

// OpenOrders returns all working orders for this session.
func (s *GatewaySession) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var out openOrdersResult
	if err := s.call(ctx, opOpenOrders, nil, &out); err != nil {
		return nil, err
	}
	orders := make([]domain.OpenOrder, 0, len(out.Orders))
	for _, o := range out.Orders {
		orders = append(orders, domain.OpenOrder{
			OrderID:  o.OrderID,
			ClientID: s.clientID,
			PermID:   o.PermID,
			Action:   domain.OrderAction(o.Action),
			TotalQty: o.TotalQty,
			Type:     domain.OrderType(o.Type),
			LmtPrice: o.LmtPrice,
			AuxPrice: o.AuxPrice,
			TIF:      o.TIF,
			Symbol:   o.Symbol,
			Exchange: o.Exchange,
			Currency: o.Currency,
			Status:   o.Status,
		})
	}
	return orders, nil
}

// QualifyContract resolves a contract to its venue identifier.
func (s *GatewaySession) QualifyContract(ctx context.Context, c domain.Contract) (domain.Contract, error) {
	var out domain.Contract
	params := qualifyParams{Symbol: c.Symbol, Exchange: c.Exchange, Currency: c.Currency}
	if err := s.call(ctx, opQualify, params, &out); err != nil {
		return domain.Contract{}, err
	}
	return out, nil
}

// PlaceOrder submits one order against a qualified contract.
func (s *GatewaySession) PlaceOrder(ctx context.Context, c domain.Contract, t domain.OrderTicket) (domain.OpenOrder, error) {
	params := placeOrderParams{
		ConID:    c.ConID,
		Action:   string(t.Action),
		Qty:      t.Qty,
		Type:     string(t.Type),
		LmtPrice: t.LimitPrice,
		AuxPrice: t.StopPrice,
		TIF:      t.TIF,
	}

	var out placeOrderResult
	if err := s.call(ctx, opPlaceOrder, params, &out); err != nil {
		return domain.OpenOrder{}, err
	}

	return domain.OpenOrder{
		OrderID:  out.OrderID,
		ClientID: s.clientID,
		PermID:   out.PermID,
		Action:   t.Action,
		TotalQty: t.Qty,
		Type:     t.Type,
		LmtPrice: t.LimitPrice,
		AuxPrice: t.StopPrice,
		TIF:      t.TIF,
		Symbol:   c.Symbol,
		Exchange: c.Exchange,
		Currency: c.Currency,
		Status:   out.Status,
	}, nil
}

// CancelOrder requests cancellation of a working order.
func (s *GatewaySession) CancelOrder(ctx context.Context, orderID int64) error {
	return s.call(ctx, opCancelOrder, cancelOrderParams{OrderID: orderID}, nil)
}

// call sends one command and waits for its correlated response, bounded
// by CallTimeout and the caller's context. out may be nil when the
// result payload is not needed.
func (s *GatewaySession) call(ctx context.Context, op string, params, out any) error {
	s.mu.RLock()
	conn := s.conn
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	id := atomic.AddInt64(&s.cmdID, 1)
	respCh := make(chan response, 1)

	s.pendingMu.Lock()
	s.pending[id] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(command{ID: id, Op: op, Params: params})
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", op, err)
	}

	s.writeMu.Lock()
	if err = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err == nil {
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("sending %s command: %w", op, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.CallTimeout):
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case resp, ok := <-respCh:
		if !ok {
			return ErrNotConnected
		}
		if resp.Type == "error" {
			var em errorMsg
			if uerr := json.Unmarshal(resp.Msg, &em); uerr != nil {
				s.log.Warn("unparseable gateway error frame", "op", op, "error", uerr)
				return fmt.Errorf("%s: gateway error", op)
			}
			return fmt.Errorf("%s: %s: %s", op, em.Code, em.Message)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Msg, out); err != nil {
				return fmt.Errorf("decoding %s result: %w", op, err)
			}
		}
		return nil
	}
}

// readLoop reads response frames and routes them to waiting calls. On a
// read error the session is marked disconnected and all pending calls
// fail.
func (s *GatewaySession) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				s.log.Warn("gateway read error", "client_id", s.clientID, "error", err)
				s.teardown(conn)
			}
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			s.log.Warn("unparseable gateway frame", "error", err)
			continue
		}

		s.pendingMu.Lock()
		ch, ok := s.pending[resp.ID]
		if ok {
			delete(s.pending, resp.ID)
		}
		s.pendingMu.Unlock()

		if ok {
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// teardown marks the session disconnected, closes the socket, and fails
// every pending call.
func (s *GatewaySession) teardown(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		// A later Connect already replaced this socket.
		s.mu.Unlock()
		conn.Close()
		return
	}
	wasConnected := s.connected
	s.connected = false
	done := s.done
	s.mu.Unlock()

	if wasConnected && done != nil {
		close(done)
	}
	conn.Close()

	s.pendingMu.Lock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()
}
