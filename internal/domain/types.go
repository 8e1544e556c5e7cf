// Package domain defines the value types shared across the gateway:
// account snapshots, contracts, positions, orders, and their enums.
package domain

// OrderAction is the side of an order.
type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

// Opposite returns the offsetting action.
func (a OrderAction) Opposite() OrderAction {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// OrderType identifies how an order prices itself.
type OrderType string

const (
	OrderTypeMarket OrderType = "MKT"
	OrderTypeLimit  OrderType = "LMT"
	OrderTypeStop   OrderType = "STP"
)

// Time-in-force values accepted by the venues.
const (
	TIFGoodTilCanceled = "GTC"
	TIFDay             = "DAY"
)

// AccountValue is one raw tag/value row of a venue account summary.
type AccountValue struct {
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// AccountSummary is a live snapshot of one account at the venue. It is
// always fetched on demand from the session, never cached.
type AccountSummary struct {
	AccountID    string         `json:"account_id"`
	Currency     string         `json:"currency"`
	NetLiquidity float64        `json:"net_liquidity"`
	Values       []AccountValue `json:"values,omitempty"`
}

// Contract identifies one tradable instrument. ConID is zero until the
// contract has been qualified at the venue.
type Contract struct {
	ConID    int64  `json:"con_id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// Key returns the cache key for a contract prior to qualification.
func (c Contract) Key() string {
	return c.Symbol + "/" + c.Exchange + "/" + c.Currency
}

// Position is a holding at the venue. Qty is negative for short
// positions.
type Position struct {
	Contract Contract `json:"contract"`
	Qty      float64  `json:"qty"`
	AvgCost  float64  `json:"avg_cost"`
}

// OrderTicket describes an order to be placed against a qualified
// contract.
type OrderTicket struct {
	Action     OrderAction
	Qty        float64
	Type       OrderType
	LimitPrice float64
	StopPrice  float64
	TIF        string
}

// OpenOrder is an order as reported by the venue.
type OpenOrder struct {
	OrderID  int64       `json:"order_id"`
	ClientID int         `json:"client_id"`
	PermID   int64       `json:"perm_id"`
	Action   OrderAction `json:"action"`
	TotalQty float64     `json:"total_qty"`
	Type     OrderType   `json:"order_type"`
	LmtPrice float64     `json:"lmt_price"`
	AuxPrice float64     `json:"aux_price"`
	TIF      string      `json:"tif"`
	Symbol   string      `json:"symbol"`
	Exchange string      `json:"exchange"`
	Currency string      `json:"currency"`
	Status   string      `json:"status"`
}
