package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"ibgate/internal/domain"
)

// Compile-time interface check.
var _ Session = (*AlpacaSession)(nil)

// AlpacaSession adapts the Alpaca trading API to the Session capability.
// Connect builds the REST client and verifies the credentials with an
// account probe; host/port are only used to derive the base URL when no
// explicit one is configured.
//
// Alpaca identifies orders with string ids; the adapter assigns stable
// local int64 ids and keeps the mapping for the session's lifetime.
type AlpacaSession struct {
	apiKey    string
	apiSecret string
	baseURL   string
	log       *slog.Logger

	mu        sync.Mutex
	client    *alpaca.Client
	connected bool
	clientID  int

	nextID    int64
	idToVenue map[int64]string
	venueToID map[string]int64
}

// NewAlpacaSession creates a disconnected Alpaca-backed session.
func NewAlpacaSession(apiKey, apiSecret, baseURL string, logger *slog.Logger) *AlpacaSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlpacaSession{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		log:       logger,
		nextID:    1,
		idToVenue: make(map[int64]string),
		venueToID: make(map[string]int64),
	}
}

// Connect builds the REST client and probes the account.
func (s *AlpacaSession) Connect(_ context.Context, host string, port int, clientID int) error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.mu.Unlock()

	baseURL := s.baseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s:%d", host, port)
	}

	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    s.apiKey,
		APISecret: s.apiSecret,
		BaseURL:   baseURL,
	})

	// Credential probe; a bad key or unreachable endpoint fails here
	// rather than on the first guarded operation.
	if _, err := client.GetAccount(); err != nil {
		return fmt.Errorf("alpaca account probe: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.clientID = clientID
	s.mu.Unlock()

	s.log.Debug("alpaca session connected", "base_url", baseURL, "client_id", clientID)
	return nil
}

// Disconnect drops the client. The REST API is stateless, so this is
// purely local.
func (s *AlpacaSession) Disconnect(_ context.Context) error {
	s.mu.Lock()
	s.connected = false
	s.client = nil
	s.mu.Unlock()
	return nil
}

// IsConnected reports whether Connect has succeeded.
func (s *AlpacaSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *AlpacaSession) live() (*alpaca.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.client == nil {
		return nil, ErrNotConnected
	}
	return s.client, nil
}

// localID returns the stable local id for a venue order id, assigning
// one on first sight.
func (s *AlpacaSession) localID(venueID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.venueToID[venueID]; ok {
		return id
	}
	id := s.nextID
	s.nextID++
	s.venueToID[venueID] = id
	s.idToVenue[id] = venueID
	return id
}

// AccountSummary fetches the live account snapshot.
func (s *AlpacaSession) AccountSummary(_ context.Context) (domain.AccountSummary, error) {
	client, err := s.live()
	if err != nil {
		return domain.AccountSummary{}, err
	}

	acct, err := client.GetAccount()
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("fetching alpaca account: %w", err)
	}

	netLiq := acct.PortfolioValue.InexactFloat64()
	return domain.AccountSummary{
		AccountID:    acct.AccountNumber,
		Currency:     acct.Currency,
		NetLiquidity: netLiq,
		Values: []domain.AccountValue{
			{Account: acct.AccountNumber, Tag: "NetLiquidation", Value: acct.PortfolioValue.String(), Currency: acct.Currency},
			{Account: acct.AccountNumber, Tag: "TotalCashValue", Value: acct.Cash.String(), Currency: acct.Currency},
			{Account: acct.AccountNumber, Tag: "BuyingPower", Value: acct.BuyingPower.String(), Currency: acct.Currency},
		},
	}, nil
}

// Positions returns all current positions. Short positions carry a
// negative quantity.
func (s *AlpacaSession) Positions(_ context.Context) ([]domain.Position, error) {
	client, err := s.live()
	if err != nil {
		return nil, err
	}

	alpacaPositions, err := client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching alpaca positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(alpacaPositions))
	for _, p := range alpacaPositions {
		qty := p.Qty.InexactFloat64()
		positions = append(positions, domain.Position{
			Contract: domain.Contract{
				Symbol:   p.Symbol,
				Exchange: p.Exchange,
				Currency: "USD",
			},
			Qty:     qty,
			AvgCost: p.AvgEntryPrice.InexactFloat64(),
		})
	}
	return positions, nil
}

// OpenOrders returns all working orders.
func (s *AlpacaSession) OpenOrders(_ context.Context) ([]domain.OpenOrder, error) {
	client, err := s.live()
	if err != nil {
		return nil, err
	}

	alpacaOrders, err := client.GetOrders(alpaca.GetOrdersRequest{Status: "open", Limit: 500})
	if err != nil {
		return nil, fmt.Errorf("fetching alpaca orders: %w", err)
	}

	orders := make([]domain.OpenOrder, 0, len(alpacaOrders))
	for i := range alpacaOrders {
		orders = append(orders, s.convertOrder(&alpacaOrders[i]))
	}
	return orders, nil
}

func (s *AlpacaSession) convertOrder(o *alpaca.Order) domain.OpenOrder {
	out := domain.OpenOrder{
		OrderID:  s.localID(o.ID),
		ClientID: s.clientID,
		Action:   domain.ActionBuy,
		Type:     domain.OrderTypeMarket,
		TIF:      string(o.TimeInForce),
		Symbol:   o.Symbol,
		Exchange: "SMART",
		Currency: "USD",
		Status:   string(o.Status),
	}
	if o.Side == alpaca.Sell {
		out.Action = domain.ActionSell
	}
	switch o.Type {
	case alpaca.Limit:
		out.Type = domain.OrderTypeLimit
	case alpaca.Stop:
		out.Type = domain.OrderTypeStop
	}
	if o.Qty != nil {
		out.TotalQty = o.Qty.InexactFloat64()
	}
	if o.LimitPrice != nil {
		out.LmtPrice = o.LimitPrice.InexactFloat64()
	}
	if o.StopPrice != nil {
		out.AuxPrice = o.StopPrice.InexactFloat64()
	}
	return out
}

// QualifyContract verifies the symbol is a tradable Alpaca asset.
func (s *AlpacaSession) QualifyContract(_ context.Context, c domain.Contract) (domain.Contract, error) {
	client, err := s.live()
	if err != nil {
		return domain.Contract{}, err
	}

	asset, err := client.GetAsset(c.Symbol)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("qualifying %s: %w", c.Symbol, err)
	}
	if !asset.Tradable {
		return domain.Contract{}, fmt.Errorf("qualifying %s: asset not tradable", c.Symbol)
	}

	c.ConID = s.localID("asset:" + asset.ID)
	if c.Exchange == "" {
		c.Exchange = asset.Exchange
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	return c, nil
}

// PlaceOrder submits one order.
func (s *AlpacaSession) PlaceOrder(_ context.Context, c domain.Contract, t domain.OrderTicket) (domain.OpenOrder, error) {
	client, err := s.live()
	if err != nil {
		return domain.OpenOrder{}, err
	}

	qty := decimal.NewFromFloat(t.Qty)
	req := alpaca.PlaceOrderRequest{
		Symbol:      c.Symbol,
		Qty:         &qty,
		Side:        alpaca.Buy,
		Type:        alpaca.Market,
		TimeInForce: alpaca.GTC,
	}
	if t.Action == domain.ActionSell {
		req.Side = alpaca.Sell
	}
	switch t.Type {
	case domain.OrderTypeLimit:
		req.Type = alpaca.Limit
		lmt := decimal.NewFromFloat(t.LimitPrice)
		req.LimitPrice = &lmt
	case domain.OrderTypeStop:
		req.Type = alpaca.Stop
		stp := decimal.NewFromFloat(t.StopPrice)
		req.StopPrice = &stp
	}
	if t.TIF == domain.TIFDay {
		req.TimeInForce = alpaca.Day
	}

	order, err := client.PlaceOrder(req)
	if err != nil {
		return domain.OpenOrder{}, fmt.Errorf("placing %s %s order: %w", t.Action, c.Symbol, err)
	}

	out := s.convertOrder(order)
	out.Exchange = c.Exchange
	out.Currency = c.Currency
	return out, nil
}

// CancelOrder cancels a working order by its local id.
func (s *AlpacaSession) CancelOrder(_ context.Context, orderID int64) error {
	client, err := s.live()
	if err != nil {
		return err
	}

	s.mu.Lock()
	venueID, ok := s.idToVenue[orderID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel order %d: unknown order", orderID)
	}

	if err := client.CancelOrder(venueID); err != nil {
		return fmt.Errorf("cancelling order %d: %w", orderID, err)
	}
	return nil
}
