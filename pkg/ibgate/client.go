// Package ibgate provides a Go SDK for the ibgate-server API.
package ibgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to an ibgate-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new ibgate API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a failure envelope returned by the server. The server
// answers 200 with status=false on business failures, so this is how
// SDK callers see them. Branch on Code, not Message.
type APIError struct {
	Code     string
	Message  string
	ClientID int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (client %d): %s", e.Code, e.ClientID, e.Message)
	}
	return fmt.Sprintf("client %d: %s", e.ClientID, e.Message)
}

// Stable error codes returned in APIError.Code.
const (
	CodeNoConnection      = "no_connection"
	CodeNotConnected      = "not_connected"
	CodeConnectionFailed  = "connection_failed"
	CodeOperationFailed   = "operation_failed"
	CodePartialCompletion = "partial_completion"
)

// ConnectData is the account snapshot returned by a successful connect.
type ConnectData struct {
	ClientID     int     `json:"clientId"`
	NetLiquidity float64 `json:"net_liquidity"`
	Currency     string  `json:"currency"`
	AccountID    string  `json:"account_id"`
}

// AccountValue is one raw tag/value row of an account detail response.
type AccountValue struct {
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// AccountDetail is the full account snapshot.
type AccountDetail struct {
	Accounts     []AccountValue `json:"accounts"`
	Currency     string         `json:"currency"`
	NetLiquidity float64        `json:"net_liquidity"`
	ClientID     int            `json:"clientId"`
}

// Contract identifies a tradable instrument.
type Contract struct {
	ConID    int64  `json:"con_id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// Position is one open holding.
type Position struct {
	Contract Contract `json:"contract"`
	Qty      float64  `json:"qty"`
	AvgCost  float64  `json:"avg_cost"`
}

// Step reports one stage of a multi-order workflow.
type Step struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	OrderID int64  `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

// OrderRequest is the payload for SendOrder. PositionQty's sign picks
// the entry side: positive buys, negative sells.
type OrderRequest struct {
	ClientID    int     `json:"client_id"`
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	Currency    string  `json:"currency"`
	PositionQty float64 `json:"position_qty"`
	StopPrice   float64 `json:"stop_price"`
	LimitPrice  float64 `json:"limit_price"`
	TIF         string  `json:"tif"`
}

// FlattenRequest is the payload for Flatten.
type FlattenRequest struct {
	ClientID int    `json:"client_id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	TIF      string `json:"tif"`
}

// OrderResult is returned by SendOrder and Flatten. On a partial
// failure Steps still lists the stages that completed at the venue.
type OrderResult struct {
	Message  string    `json:"message"`
	ClientID int       `json:"clientId"`
	Position *Position `json:"position,omitempty"`
	Steps    []Step    `json:"steps,omitempty"`
}

// OpenOrder is one working order.
type OpenOrder struct {
	OrderID     int64   `json:"orderId"`
	ClientID    int     `json:"clientId"`
	PermID      int64   `json:"permId"`
	Action      string  `json:"action"`
	TotalQty    float64 `json:"totalQuantity"`
	OrderType   string  `json:"orderType"`
	LmtPrice    float64 `json:"lmtPrice"`
	AuxPrice    float64 `json:"auxPrice"`
	TIF         string  `json:"tif"`
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	Currency    string  `json:"currency"`
	OrderStatus string  `json:"orderStatus"`
}

// envelope is the superset of every server response body.
type envelope struct {
	Status       bool            `json:"status"`
	Message      string          `json:"message"`
	Code         string          `json:"code"`
	ClientID     int             `json:"clientId"`
	Data         *ConnectData    `json:"data"`
	Accounts     json.RawMessage `json:"accounts"`
	Currency     string          `json:"currency"`
	NetLiquidity float64         `json:"net_liquidity"`
	Positions    []Position      `json:"positions"`
	Orders       []OpenOrder     `json:"orders"`
	Position     *Position       `json:"position"`
	Steps        []Step          `json:"steps"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out *envelope) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out *envelope) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out *envelope) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (e *envelope) err(clientID int) error {
	if e.Status {
		return nil
	}
	return &APIError{Code: e.Code, Message: e.Message, ClientID: clientID}
}

func clientIDQuery(clientID int) url.Values {
	return url.Values{"client_id": {strconv.Itoa(clientID)}}
}

// Connect establishes (or reuses) the session for clientID.
func (c *Client) Connect(ctx context.Context, host string, port, clientID int) (*ConnectData, error) {
	body := map[string]any{"host": host, "port": port, "client_id": clientID}
	var resp envelope
	if err := c.post(ctx, "/api/connect", body, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(clientID); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Disconnect tears down the session for clientID.
func (c *Client) Disconnect(ctx context.Context, clientID int) error {
	var resp envelope
	if err := c.get(ctx, "/api/disconnect", clientIDQuery(clientID), &resp); err != nil {
		return err
	}
	return resp.err(clientID)
}

// Accounts returns the account ids visible to clientID's session.
func (c *Client) Accounts(ctx context.Context, clientID int) ([]string, error) {
	var resp envelope
	if err := c.get(ctx, "/api/accounts", clientIDQuery(clientID), &resp); err != nil {
		return nil, err
	}
	if err := resp.err(clientID); err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(resp.Accounts, &accounts); err != nil {
		return nil, fmt.Errorf("decoding accounts: %w", err)
	}
	return accounts, nil
}

// AccountDetail returns the full account snapshot for clientID.
func (c *Client) AccountDetail(ctx context.Context, clientID int) (*AccountDetail, error) {
	var resp envelope
	if err := c.get(ctx, "/api/account-detail", clientIDQuery(clientID), &resp); err != nil {
		return nil, err
	}
	if err := resp.err(clientID); err != nil {
		return nil, err
	}
	var values []AccountValue
	if len(resp.Accounts) > 0 {
		if err := json.Unmarshal(resp.Accounts, &values); err != nil {
			return nil, fmt.Errorf("decoding account values: %w", err)
		}
	}
	return &AccountDetail{
		Accounts:     values,
		Currency:     resp.Currency,
		NetLiquidity: resp.NetLiquidity,
		ClientID:     resp.ClientID,
	}, nil
}

// SendOrder places a bracket order (entry plus stop and target exits).
// On a partial failure the returned result still carries the completed
// steps alongside the error.
func (c *Client) SendOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	var resp envelope
	if err := c.post(ctx, "/api/send-order", req, &resp); err != nil {
		return nil, err
	}
	result := &OrderResult{Message: resp.Message, ClientID: req.ClientID, Position: resp.Position, Steps: resp.Steps}
	return result, resp.err(req.ClientID)
}

// Flatten cancels the symbol's working orders and offsets its position.
func (c *Client) Flatten(ctx context.Context, req FlattenRequest) (*OrderResult, error) {
	var resp envelope
	if err := c.post(ctx, "/api/flatten", req, &resp); err != nil {
		return nil, err
	}
	result := &OrderResult{Message: resp.Message, ClientID: req.ClientID, Position: resp.Position, Steps: resp.Steps}
	return result, resp.err(req.ClientID)
}

// Positions returns clientID's open positions.
func (c *Client) Positions(ctx context.Context, clientID int) ([]Position, error) {
	var resp envelope
	if err := c.get(ctx, "/api/contracts-position", clientIDQuery(clientID), &resp); err != nil {
		return nil, err
	}
	if err := resp.err(clientID); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// Orders returns clientID's working orders.
func (c *Client) Orders(ctx context.Context, clientID int) ([]OpenOrder, error) {
	var resp envelope
	if err := c.get(ctx, "/api/orders", clientIDQuery(clientID), &resp); err != nil {
		return nil, err
	}
	if err := resp.err(clientID); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}
