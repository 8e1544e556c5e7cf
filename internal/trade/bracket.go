// Package trade implements the order workflows layered on a single
// session: bracket entry (entry + stop + target) and position flatten.
// Both are sagas: each broker call is one observable step, and a failure
// at step k leaves steps 1..k-1 applied at the venue with no rollback.
package trade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ibgate/internal/domain"
	"ibgate/internal/metrics"
	"ibgate/internal/session"
)

// Step is one completed or failed stage of a workflow.
type Step struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	OrderID int64  `json:"orderId,omitempty"`
	Message string `json:"message,omitempty"`
}

// BracketRequest describes an entry order with protective stop and
// profit target. Qty's sign picks the entry side: positive buys,
// negative sells.
type BracketRequest struct {
	ClientID   int
	Symbol     string
	Exchange   string
	Currency   string
	Qty        float64
	StopPrice  float64
	LimitPrice float64
	TIF        string
}

// BracketResult reports every step taken plus the resulting position,
// when one could be read back.
type BracketResult struct {
	ClientID int
	Steps    []Step
	Position *domain.Position
}

// FlattenRequest identifies the position to close out.
type FlattenRequest struct {
	ClientID int
	Symbol   string
	Exchange string
	Currency string
	TIF      string
}

// FlattenResult reports the cancellation and offset steps plus the
// position observed before flattening.
type FlattenResult struct {
	ClientID int
	Steps    []Step
	Position *domain.Position
}

// Placer runs order workflows against sessions obtained through the
// manager's guard. Qualified contracts are cached per symbol key, since
// qualification is immutable venue reference data.
type Placer struct {
	mgr       *session.Manager
	contracts *expirable.LRU[string, domain.Contract]
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewPlacer creates a Placer. metrics may be nil.
func NewPlacer(mgr *session.Manager, logger *slog.Logger, m *metrics.Metrics) *Placer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Placer{
		mgr:       mgr,
		contracts: expirable.NewLRU[string, domain.Contract](512, nil, time.Hour),
		log:       logger,
		metrics:   m,
	}
}

// qualify resolves a contract through the cache.
func (p *Placer) qualify(ctx context.Context, sess sessionIface, c domain.Contract) (domain.Contract, error) {
	if cached, ok := p.contracts.Get(c.Key()); ok {
		return cached, nil
	}
	qualified, err := sess.QualifyContract(ctx, c)
	if err != nil {
		return domain.Contract{}, err
	}
	p.contracts.Add(c.Key(), qualified)
	return qualified, nil
}

// sessionIface is the slice of broker.Session the workflows use.
type sessionIface interface {
	QualifyContract(ctx context.Context, c domain.Contract) (domain.Contract, error)
	PlaceOrder(ctx context.Context, c domain.Contract, t domain.OrderTicket) (domain.OpenOrder, error)
	CancelOrder(ctx context.Context, orderID int64) error
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)
	Positions(ctx context.Context) ([]domain.Position, error)
}

// PlaceBracket runs the entry/stop/target saga. On a mid-sequence
// failure the result carries the steps completed so far and the error
// code is partial_completion once any order has been placed.
func (p *Placer) PlaceBracket(ctx context.Context, req BracketRequest) (*BracketResult, *session.Error) {
	sess, gerr := p.mgr.Live(req.ClientID)
	if gerr != nil {
		return nil, gerr
	}

	if req.Qty == 0 {
		return nil, &session.Error{
			Code: session.CodeOperationFailed, ClientID: req.ClientID,
			Message: "position_qty must be non-zero",
		}
	}

	res := &BracketResult{ClientID: req.ClientID}
	tif := req.TIF
	if tif == "" {
		tif = domain.TIFGoodTilCanceled
	}

	entryAction := domain.ActionBuy
	qty := req.Qty
	if qty < 0 {
		entryAction = domain.ActionSell
		qty = -qty
	}
	exitAction := entryAction.Opposite()

	// Step 1: qualify.
	contract, err := p.qualify(ctx, sess, domain.Contract{
		Symbol: req.Symbol, Exchange: req.Exchange, Currency: req.Currency,
	})
	if err != nil {
		res.Steps = append(res.Steps, Step{Name: "qualify", Message: err.Error()})
		return res, &session.Error{
			Code: session.CodeOperationFailed, ClientID: req.ClientID,
			Message: fmt.Sprintf("qualify %s failed", req.Symbol), Err: err,
		}
	}
	res.Steps = append(res.Steps, Step{Name: "qualify", OK: true})

	// Steps 2-4: entry, stop, target. Each placed order is an applied
	// side effect whether or not later steps succeed.
	orders := []struct {
		name   string
		kind   string
		ticket domain.OrderTicket
	}{
		{"entry", "entry", domain.OrderTicket{Action: entryAction, Qty: qty, Type: domain.OrderTypeMarket, TIF: tif}},
		{"stop", "stop", domain.OrderTicket{Action: exitAction, Qty: qty, Type: domain.OrderTypeStop, StopPrice: req.StopPrice, TIF: tif}},
		{"target", "target", domain.OrderTicket{Action: exitAction, Qty: qty, Type: domain.OrderTypeLimit, LimitPrice: req.LimitPrice, TIF: tif}},
	}

	for i, o := range orders {
		placed, err := sess.PlaceOrder(ctx, contract, o.ticket)
		if err != nil {
			res.Steps = append(res.Steps, Step{Name: o.name, Message: err.Error()})
			p.log.Warn("bracket step failed",
				"client_id", req.ClientID, "symbol", req.Symbol, "step", o.name, "error", err)
			// A rejected entry leaves nothing live at the venue; only a
			// failure after a placed order is a partial completion.
			if i == 0 {
				return res, &session.Error{
					Code: session.CodeOperationFailed, ClientID: req.ClientID,
					Message: fmt.Sprintf("%s order failed", o.name), Err: err,
				}
			}
			return res, &session.Error{
				Code: session.CodePartialCompletion, ClientID: req.ClientID,
				Message: fmt.Sprintf("bracket stopped at %s; earlier orders remain at the venue", o.name),
				Err:     err,
			}
		}
		res.Steps = append(res.Steps, Step{Name: o.name, OK: true, OrderID: placed.OrderID})
		p.metrics.Order(o.kind)
	}

	// Best-effort position read-back; brackets are already in place.
	if positions, err := sess.Positions(ctx); err == nil {
		for i := range positions {
			if positions[i].Contract.Symbol == req.Symbol {
				res.Position = &positions[i]
				break
			}
		}
	}

	p.log.Info("bracket placed",
		"client_id", req.ClientID, "symbol", req.Symbol, "qty", req.Qty,
		"stop", req.StopPrice, "target", req.LimitPrice)
	return res, nil
}
