package trade

import (
	"context"
	"fmt"
	"math"

	"ibgate/internal/domain"
	"ibgate/internal/session"
)

// Flatten closes out req.Symbol for the client: cancel the symbol's
// open orders, read the position, then place an offsetting market
// order. A zero position after cancellation is a successful no-op.
func (p *Placer) Flatten(ctx context.Context, req FlattenRequest) (*FlattenResult, *session.Error) {
	sess, gerr := p.mgr.Live(req.ClientID)
	if gerr != nil {
		return nil, gerr
	}

	res := &FlattenResult{ClientID: req.ClientID}
	tif := req.TIF
	if tif == "" {
		tif = domain.TIFDay
	}

	// Step 1: cancel working orders on the symbol so a resting stop or
	// target cannot fill against the offset.
	open, err := sess.OpenOrders(ctx)
	if err != nil {
		res.Steps = append(res.Steps, Step{Name: "cancel", Message: err.Error()})
		return res, &session.Error{
			Code: session.CodeOperationFailed, ClientID: req.ClientID,
			Message: "open orders query failed", Err: err,
		}
	}
	canceled := 0
	for _, o := range open {
		if o.Symbol != req.Symbol {
			continue
		}
		if err := sess.CancelOrder(ctx, o.OrderID); err != nil {
			res.Steps = append(res.Steps, Step{Name: "cancel", OrderID: o.OrderID, Message: err.Error()})
			return res, &session.Error{
				Code: session.CodePartialCompletion, ClientID: req.ClientID,
				Message: fmt.Sprintf("cancel order %d failed; %d orders already canceled", o.OrderID, canceled),
				Err:     err,
			}
		}
		canceled++
	}
	res.Steps = append(res.Steps, Step{Name: "cancel", OK: true, Message: fmt.Sprintf("%d canceled", canceled)})

	// Step 2: read the position to offset.
	positions, err := sess.Positions(ctx)
	if err != nil {
		res.Steps = append(res.Steps, Step{Name: "position", Message: err.Error()})
		return res, &session.Error{
			Code: session.CodePartialCompletion, ClientID: req.ClientID,
			Message: "positions query failed after cancellation", Err: err,
		}
	}
	var pos *domain.Position
	for i := range positions {
		if positions[i].Contract.Symbol == req.Symbol {
			pos = &positions[i]
			break
		}
	}
	if pos == nil || pos.Qty == 0 {
		res.Steps = append(res.Steps, Step{Name: "position", OK: true, Message: "flat"})
		p.log.Info("flatten no-op, already flat", "client_id", req.ClientID, "symbol", req.Symbol)
		return res, nil
	}
	res.Position = pos
	res.Steps = append(res.Steps, Step{Name: "position", OK: true, Message: fmt.Sprintf("qty %v", pos.Qty)})

	// Step 3: offsetting market order.
	action := domain.ActionSell
	if pos.Qty < 0 {
		action = domain.ActionBuy
	}
	contract := pos.Contract
	if contract.Exchange == "" {
		contract.Exchange = req.Exchange
	}
	if contract.Currency == "" {
		contract.Currency = req.Currency
	}
	placed, err := sess.PlaceOrder(ctx, contract, domain.OrderTicket{
		Action: action, Qty: math.Abs(pos.Qty), Type: domain.OrderTypeMarket, TIF: tif,
	})
	if err != nil {
		res.Steps = append(res.Steps, Step{Name: "offset", Message: err.Error()})
		return res, &session.Error{
			Code: session.CodePartialCompletion, ClientID: req.ClientID,
			Message: "offset order failed; symbol orders already canceled", Err: err,
		}
	}
	res.Steps = append(res.Steps, Step{Name: "offset", OK: true, OrderID: placed.OrderID})
	p.metrics.Order("flatten")

	p.log.Info("flatten placed",
		"client_id", req.ClientID, "symbol", req.Symbol, "qty", pos.Qty, "action", action)
	return res, nil
}
