package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ibgate/internal/broker"
	"ibgate/internal/session"
	"ibgate/internal/trade"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := session.NewRegistry(func(int) broker.Session { return broker.NewSimulatorSession() })
	mgr := session.NewManager(registry, nil, nil)
	placer := trade.NewPlacer(mgr, nil, nil)
	ts := httptest.NewServer(NewServer(mgr, placer, nil, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, out any) {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
}

func connect(t *testing.T, ts *httptest.Server, clientID int) ConnectResponse {
	t.Helper()
	var resp ConnectResponse
	postJSON(t, ts.URL+"/api/connect", ConnectRequest{Host: "127.0.0.1", Port: 7497, ClientID: clientID}, &resp)
	return resp
}

func TestConnectAccountsDisconnectRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	conn := connect(t, ts, 7)
	if !conn.Status || conn.Data == nil {
		t.Fatalf("connect response = %+v, want status true with data", conn)
	}
	if conn.Data.ClientID != 7 || conn.Data.AccountID == "" {
		t.Fatalf("connect data = %+v", conn.Data)
	}

	var accts AccountsResponse
	getJSON(t, ts.URL+"/api/accounts?client_id=7", &accts)
	if !accts.Status || len(accts.Accounts) != 1 || accts.Accounts[0] != conn.Data.AccountID {
		t.Fatalf("accounts response = %+v, want account %q", accts, conn.Data.AccountID)
	}

	var disc StatusResponse
	getJSON(t, ts.URL+"/api/disconnect?client_id=7", &disc)
	if !disc.Status || disc.ClientID != 7 {
		t.Fatalf("disconnect response = %+v", disc)
	}

	getJSON(t, ts.URL+"/api/accounts?client_id=7", &accts)
	if accts.Status || accts.Code != string(session.CodeNoConnection) {
		t.Fatalf("accounts after disconnect = %+v, want code %q", accts, session.CodeNoConnection)
	}
	if accts.Accounts == nil {
		t.Error("failure response must keep accounts as an empty list")
	}
}

func TestConnectTwiceReuses(t *testing.T) {
	ts := newTestServer(t)

	first := connect(t, ts, 3)
	second := connect(t, ts, 3)
	if !second.Status {
		t.Fatalf("second connect = %+v", second)
	}
	if got, want := second.Message, "Already connected"; got != want {
		t.Errorf("second connect message = %q, want %q", got, want)
	}
	if second.Data.AccountID != first.Data.AccountID {
		t.Errorf("reused account = %q, want %q", second.Data.AccountID, first.Data.AccountID)
	}
}

func TestDisconnectUnknownClient(t *testing.T) {
	ts := newTestServer(t)

	var resp StatusResponse
	getJSON(t, ts.URL+"/api/disconnect?client_id=42", &resp)
	if resp.Status || resp.Code != string(session.CodeNoConnection) {
		t.Fatalf("response = %+v, want code %q", resp, session.CodeNoConnection)
	}
	if resp.ClientID != 42 {
		t.Errorf("clientId = %d, want 42", resp.ClientID)
	}
}

func TestClientIDParamValidation(t *testing.T) {
	ts := newTestServer(t)

	var resp StatusResponse
	getJSON(t, ts.URL+"/api/accounts?client_id=abc", &resp)
	if resp.Status || resp.Code != "bad_request" {
		t.Fatalf("response = %+v, want code bad_request", resp)
	}
}

func TestSendOrderAndOrders(t *testing.T) {
	ts := newTestServer(t)
	connect(t, ts, 7)

	var order OrderResponse
	postJSON(t, ts.URL+"/api/send-order", SendOrderRequest{
		ClientID: 7, Symbol: "AAPL", Exchange: "SMART", Currency: "USD",
		PositionQty: 100, StopPrice: 95, LimitPrice: 110, TIF: "GTC",
	}, &order)
	if !order.Status {
		t.Fatalf("send-order response = %+v", order)
	}
	if got, want := len(order.Steps), 4; got != want {
		t.Fatalf("steps = %d, want %d", got, want)
	}
	if order.Position == nil || order.Position.Qty != 100 {
		t.Errorf("position = %+v, want qty 100", order.Position)
	}

	var orders OrdersResponse
	getJSON(t, ts.URL+"/api/orders?client_id=7", &orders)
	if !orders.Status || len(orders.Orders) != 2 {
		t.Fatalf("orders response = %+v, want 2 working orders", orders)
	}
	for _, row := range orders.Orders {
		if row.Symbol != "AAPL" || row.Action != "SELL" {
			t.Errorf("order row = %+v, want SELL AAPL exit", row)
		}
	}

	var positions PositionsResponse
	getJSON(t, ts.URL+"/api/contracts-position?client_id=7", &positions)
	if !positions.Status || len(positions.Positions) != 1 {
		t.Fatalf("positions response = %+v, want one position", positions)
	}
}

func TestFlattenEndpoint(t *testing.T) {
	ts := newTestServer(t)
	connect(t, ts, 7)

	var order OrderResponse
	postJSON(t, ts.URL+"/api/send-order", SendOrderRequest{
		ClientID: 7, Symbol: "AAPL", Exchange: "SMART", Currency: "USD",
		PositionQty: 100, StopPrice: 95, LimitPrice: 110,
	}, &order)
	if !order.Status {
		t.Fatalf("send-order response = %+v", order)
	}

	var flat OrderResponse
	postJSON(t, ts.URL+"/api/flatten", FlattenRequest{
		ClientID: 7, Symbol: "AAPL", Exchange: "SMART", Currency: "USD",
	}, &flat)
	if !flat.Status {
		t.Fatalf("flatten response = %+v", flat)
	}

	var positions PositionsResponse
	getJSON(t, ts.URL+"/api/contracts-position?client_id=7", &positions)
	if len(positions.Positions) != 0 {
		t.Errorf("positions after flatten = %+v, want none", positions.Positions)
	}
	var orders OrdersResponse
	getJSON(t, ts.URL+"/api/orders?client_id=7", &orders)
	if len(orders.Orders) != 0 {
		t.Errorf("orders after flatten = %+v, want none", orders.Orders)
	}
}

func TestSendOrderWithoutConnection(t *testing.T) {
	ts := newTestServer(t)

	var order OrderResponse
	postJSON(t, ts.URL+"/api/send-order", SendOrderRequest{ClientID: 9, Symbol: "AAPL", PositionQty: 1}, &order)
	if order.Status || order.Code != string(session.CodeNoConnection) {
		t.Fatalf("response = %+v, want code %q", order, session.CodeNoConnection)
	}
}

func TestMalformedBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/connect", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Status || out.Code != "bad_request" {
		t.Fatalf("response = %+v, want code bad_request", out)
	}
}

func TestOrdersJSONFieldNames(t *testing.T) {
	ts := newTestServer(t)
	connect(t, ts, 7)

	var order OrderResponse
	postJSON(t, ts.URL+"/api/send-order", SendOrderRequest{
		ClientID: 7, Symbol: "AAPL", Exchange: "SMART", Currency: "USD",
		PositionQty: 10, StopPrice: 95, LimitPrice: 110,
	}, &order)
	if !order.Status {
		t.Fatalf("send-order response = %+v", order)
	}

	var raw struct {
		Orders []map[string]any `json:"orders"`
	}
	getJSON(t, ts.URL+"/api/orders?client_id=7", &raw)
	if len(raw.Orders) == 0 {
		t.Fatal("no orders returned")
	}
	for _, key := range []string{"orderId", "clientId", "permId", "action", "totalQuantity", "orderType", "lmtPrice", "auxPrice", "tif", "symbol", "exchange", "currency", "orderStatus"} {
		if _, ok := raw.Orders[0][key]; !ok {
			t.Errorf("order row missing field %q", key)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/accounts?client_id=1")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header not set")
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/accounts?client_id=1", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp2.Body.Close()
	if got, want := resp2.Header.Get("X-Request-Id"), "fixed-id"; got != want {
		t.Errorf("X-Request-Id = %q, want %q", got, want)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/api/connect", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
