package httpapi

import (
	"ibgate/internal/domain"
	"ibgate/internal/trade"
)

// Every response carries status plus the originating clientId, and
// failures add a stable machine-readable code so callers never have to
// branch on message text.

// ConnectRequest is the body of POST /api/connect.
type ConnectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	ClientID int    `json:"client_id"`
}

// ConnectData is the account snapshot returned on a successful connect.
type ConnectData struct {
	ClientID     int     `json:"clientId"`
	NetLiquidity float64 `json:"net_liquidity"`
	Currency     string  `json:"currency"`
	AccountID    string  `json:"account_id"`
}

// ConnectResponse is returned by POST /api/connect.
type ConnectResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    *ConnectData `json:"data,omitempty"`
	// Failure-only fields.
	ClientID *int   `json:"clientId,omitempty"`
	Code     string `json:"code,omitempty"`
}

// StatusResponse is the generic status/message/clientId envelope used
// by disconnect and by every failure path that has no richer payload.
type StatusResponse struct {
	Status   bool   `json:"status"`
	Message  string `json:"message,omitempty"`
	ClientID int    `json:"clientId"`
	Code     string `json:"code,omitempty"`
}

// AccountsResponse is returned by GET /api/accounts.
type AccountsResponse struct {
	Status   bool     `json:"status"`
	Accounts []string `json:"accounts"`
	ClientID int      `json:"clientId"`
	Message  string   `json:"message,omitempty"`
	Code     string   `json:"code,omitempty"`
}

// AccountDetailResponse is returned by GET /api/account-detail.
type AccountDetailResponse struct {
	Status       bool                  `json:"status"`
	Accounts     []domain.AccountValue `json:"accounts"`
	Currency     string                `json:"currency"`
	NetLiquidity float64               `json:"net_liquidity"`
	ClientID     int                   `json:"clientId"`
	Message      string                `json:"message,omitempty"`
	Code         string                `json:"code,omitempty"`
}

// SendOrderRequest is the body of POST /api/send-order. PositionQty's
// sign picks the entry side.
type SendOrderRequest struct {
	ClientID    int     `json:"client_id"`
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	Currency    string  `json:"currency"`
	PositionQty float64 `json:"position_qty"`
	StopPrice   float64 `json:"stop_price"`
	LimitPrice  float64 `json:"limit_price"`
	TIF         string  `json:"tif"`
}

// FlattenRequest is the body of POST /api/flatten.
type FlattenRequest struct {
	ClientID int    `json:"client_id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	TIF      string `json:"tif"`
}

// OrderResponse is returned by send-order and flatten. Steps reports
// each stage of the workflow, including the ones completed before a
// mid-sequence failure.
type OrderResponse struct {
	Status   bool             `json:"status"`
	Message  string           `json:"message"`
	ClientID int              `json:"clientId"`
	Position *domain.Position `json:"position,omitempty"`
	Steps    []trade.Step     `json:"steps,omitempty"`
	Code     string           `json:"code,omitempty"`
}

// PositionsResponse is returned by GET /api/contracts-position.
type PositionsResponse struct {
	Status    bool              `json:"status"`
	Positions []domain.Position `json:"positions"`
	ClientID  int               `json:"clientId"`
	Message   string            `json:"message,omitempty"`
	Code      string            `json:"code,omitempty"`
}

// OrderRow is one open order in GET /api/orders.
type OrderRow struct {
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

// OrdersResponse is returned by GET /api/orders.
type OrdersResponse struct {
	Status   bool       `json:"status"`
	ClientID int        `json:"clientId"`
	Orders   []OrderRow `json:"orders"`
	Message  string     `json:"message,omitempty"`
	Code     string     `json:"code,omitempty"`
}

func orderRow(o domain.OpenOrder) OrderRow {
	return OrderRow{
		OrderID:     o.OrderID,
		ClientID:    o.ClientID,
		PermID:      o.PermID,
		Action:      string(o.Action),
		TotalQty:    o.TotalQty,
		OrderType:   string(o.Type),
		LmtPrice:    o.LmtPrice,
		AuxPrice:    o.AuxPrice,
		TIF:         o.TIF,
		Symbol:      o.Symbol,
		Exchange:    o.Exchange,
		Currency:    o.Currency,
		OrderStatus: o.Status,
	}
}
