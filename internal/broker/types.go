package broker

import (
	"encoding/json"
	"time"
)

// command is a request frame sent to the gateway.
type command struct {
	ID     int64  `json:"id"`
	Op     string `json:"op"`
	Params any    `json:"params,omitempty"`
}

// response is a reply frame from the gateway. Type is "result" or
// "error".
type response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	Msg  json.RawMessage `json:"msg"`
}

// errorMsg is the message content for an "error" response.
type errorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Gateway operation names.
const (
	opLogin          = "login"
	opAccountSummary = "account_summary"
	opPositions      = "positions"
	opOpenOrders     = "open_orders"
	opQualify        = "qualify"
	opPlaceOrder     = "place_order"
	opCancelOrder    = "cancel_order"
)

// loginParams carries the handshake credentials.
type loginParams struct {
	ClientID int `json:"client_id"`
}

// qualifyParams identifies the contract to resolve.
type qualifyParams struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// placeOrderParams carries one order submission.
type placeOrderParams struct {
	ConID    int64   `json:"con_id"`
	Action   string  `json:"action"`
	Qty      float64 `json:"qty"`
	Type     string  `json:"order_type"`
	LmtPrice float64 `json:"lmt_price,omitempty"`
	AuxPrice float64 `json:"aux_price,omitempty"`
	TIF      string  `json:"tif,omitempty"`
}

// placeOrderResult is the venue's acknowledgement of a submission.
type placeOrderResult struct {
	OrderID int64  `json:"order_id"`
	PermID  int64  `json:"perm_id"`
	Status  string `json:"status"`
}

// cancelOrderParams identifies the order to cancel.
type cancelOrderParams struct {
	OrderID int64 `json:"order_id"`
}

// positionsResult wraps the positions list.
type positionsResult struct {
	Positions []positionRow `json:"positions"`
}

type positionRow struct {
	ConID    int64   `json:"con_id"`
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Currency string  `json:"currency"`
	Qty      float64 `json:"qty"`
	AvgCost  float64 `json:"avg_cost"`
}

// openOrdersResult wraps the working-order list.
type openOrdersResult struct {
	Orders []openOrderRow `json:"orders"`
}

type openOrderRow struct {
	OrderID  int64   `json:"order_id"`
	PermID   int64   `json:"perm_id"`
	Action   string  `json:"action"`
	TotalQty float64 `json:"total_qty"`
	Type     string  `json:"order_type"`
	LmtPrice float64 `json:"lmt_price"`
	AuxPrice float64 `json:"aux_price"`
	TIF      string  `json:"tif"`
	Symbol   string  `json:"symbol"`
	Exchange string  `json:"exchange"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

// GatewayConfig tunes the native gateway session.
type GatewayConfig struct {
	ConnectTimeout time.Duration // handshake deadline
	CallTimeout    time.Duration // per-operation deadline
	WriteTimeout   time.Duration // write deadline for sends
}

// DefaultGatewayConfig returns sensible defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ConnectTimeout: 15 * time.Second,
		CallTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}
