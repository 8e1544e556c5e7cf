package broker

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ibgate/internal/domain"
)

// fakeGateway is a minimal in-process venue speaking the gateway wire
// protocol.
type fakeGateway struct {
	upgrader websocket.Upgrader

	// rejectLogin makes the handshake fail.
	rejectLogin bool

	// malformedError answers unknown ops with an error frame whose
	// payload is not an error object.
	malformedError bool
}

func (g *fakeGateway) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd struct {
			ID     int64           `json:"id"`
			Op     string          `json:"op"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}

		var resp response
		resp.ID = cmd.ID
		resp.Type = "result"

		switch cmd.Op {
		case opLogin:
			if g.rejectLogin {
				resp.Type = "error"
				resp.Msg, _ = json.Marshal(errorMsg{Code: "already_in_use", Message: "client id already in use"})
			} else {
				resp.Msg = json.RawMessage(`{}`)
			}
		case opAccountSummary:
			resp.Msg, _ = json.Marshal(domain.AccountSummary{
				AccountID:    "DU7654321",
				Currency:     "USD",
				NetLiquidity: 250000.50,
			})
		case opQualify:
			var p qualifyParams
			json.Unmarshal(cmd.Params, &p)
			resp.Msg, _ = json.Marshal(domain.Contract{ConID: 42, Symbol: p.Symbol, Exchange: p.Exchange, Currency: p.Currency})
		case opPlaceOrder:
			resp.Msg, _ = json.Marshal(placeOrderResult{OrderID: 11, PermID: 7011, Status: "Submitted"})
		case opPositions:
			resp.Msg, _ = json.Marshal(positionsResult{Positions: []positionRow{
				{ConID: 42, Symbol: "ES", Exchange: "GLOBEX", Currency: "USD", Qty: 2, AvgCost: 5000},
			}})
		case opOpenOrders:
			resp.Msg, _ = json.Marshal(openOrdersResult{})
		case opCancelOrder:
			resp.Msg = json.RawMessage(`{}`)
		default:
			resp.Type = "error"
			if g.malformedError {
				resp.Msg = json.RawMessage(`"boom"`)
			} else {
				resp.Msg, _ = json.Marshal(errorMsg{Code: "unknown_op", Message: cmd.Op})
			}
		}

		out, _ := json.Marshal(resp)
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

// startFakeGateway returns the host and port of a running fake venue.
func startFakeGateway(t *testing.T, g *fakeGateway) (string, int) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", g.handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("splitting listener addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing listener port: %v", err)
	}
	return host, port
}

func testGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ConnectTimeout: 2 * time.Second,
		CallTimeout:    2 * time.Second,
		WriteTimeout:   time.Second,
	}
}

func TestGatewayConnectAndQuery(t *testing.T) {
	host, port := startFakeGateway(t, &fakeGateway{})
	ctx := context.Background()

	s := NewGatewaySession(testGatewayConfig(), nil)
	if s.IsConnected() {
		t.Fatal("new session reports connected")
	}

	if err := s.Connect(ctx, host, port, 7); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("session not connected after Connect")
	}

	acct, err := s.AccountSummary(ctx)
	if err != nil {
		t.Fatalf("AccountSummary: %v", err)
	}
	if acct.AccountID != "DU7654321" {
		t.Errorf("AccountID = %q, want %q", acct.AccountID, "DU7654321")
	}
	if acct.NetLiquidity != 250000.50 {
		t.Errorf("NetLiquidity = %v, want %v", acct.NetLiquidity, 250000.50)
	}

	positions, err := s.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 || positions[0].Contract.Symbol != "ES" {
		t.Errorf("Positions = %+v, want one ES position", positions)
	}

	if err := s.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if s.IsConnected() {
		t.Fatal("session still connected after Disconnect")
	}
	if _, err := s.AccountSummary(ctx); err == nil {
		t.Error("AccountSummary after Disconnect should fail")
	}
}

func TestGatewayConnectRefusedDial(t *testing.T) {
	s := NewGatewaySession(testGatewayConfig(), nil)

	// Port 1 is never listening.
	err := s.Connect(context.Background(), "127.0.0.1", 1, 7)
	if err == nil {
		t.Fatal("Connect to dead port should fail")
	}
	if s.IsConnected() {
		t.Fatal("failed connect left session connected")
	}
}

func TestGatewayLoginRejected(t *testing.T) {
	host, port := startFakeGateway(t, &fakeGateway{rejectLogin: true})

	s := NewGatewaySession(testGatewayConfig(), nil)
	err := s.Connect(context.Background(), host, port, 7)
	if err == nil {
		t.Fatal("Connect with rejected login should fail")
	}
	if s.IsConnected() {
		t.Fatal("rejected login left session connected")
	}
}

func TestGatewayMalformedErrorFrame(t *testing.T) {
	host, port := startFakeGateway(t, &fakeGateway{malformedError: true})
	ctx := context.Background()

	s := NewGatewaySession(testGatewayConfig(), nil)
	if err := s.Connect(ctx, host, port, 7); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)

	// An error frame whose payload cannot be decoded must still surface
	// as an error, not as empty code/message fields.
	err := s.call(ctx, "bogus_op", nil, nil)
	if err == nil {
		t.Fatal("call with malformed error frame should fail")
	}
	if got, want := err.Error(), "bogus_op: gateway error"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestGatewayOrderRoundTrip(t *testing.T) {
	host, port := startFakeGateway(t, &fakeGateway{})
	ctx := context.Background()

	s := NewGatewaySession(testGatewayConfig(), nil)
	if err := s.Connect(ctx, host, port, 9); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect(ctx)

	c, err := s.QualifyContract(ctx, domain.Contract{Symbol: "ES", Exchange: "GLOBEX", Currency: "USD"})
	if err != nil {
		t.Fatalf("QualifyContract: %v", err)
	}
	if c.ConID != 42 {
		t.Errorf("ConID = %d, want %d", c.ConID, 42)
	}

	order, err := s.PlaceOrder(ctx, c, domain.OrderTicket{
		Action: domain.ActionBuy, Qty: 2, Type: domain.OrderTypeMarket, TIF: domain.TIFGoodTilCanceled,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.OrderID != 11 {
		t.Errorf("OrderID = %d, want %d", order.OrderID, 11)
	}
	if order.ClientID != 9 {
		t.Errorf("ClientID = %d, want %d", order.ClientID, 9)
	}

	if err := s.CancelOrder(ctx, order.OrderID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
}
