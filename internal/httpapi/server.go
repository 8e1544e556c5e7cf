// Package httpapi serves the gateway HTTP API. Handlers never panic
// outward and never return a non-JSON body: every session or venue
// failure is converted to the status/message/clientId envelope with a
// stable code.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ibgate/internal/domain"
	"ibgate/internal/session"
	"ibgate/internal/trade"
)

// Server serves the session lifecycle and order endpoints.
type Server struct {
	mgr      *session.Manager
	placer   *trade.Placer
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewServer creates the API server. gatherer may be nil to skip the
// /metrics endpoint.
func NewServer(mgr *session.Manager, placer *trade.Placer, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{mgr: mgr, placer: placer, gatherer: gatherer, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("GET /api/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	mux.HandleFunc("GET /api/account-detail", s.handleAccountDetail)
	mux.HandleFunc("POST /api/send-order", s.handleSendOrder)
	mux.HandleFunc("POST /api/flatten", s.handleFlatten)
	mux.HandleFunc("GET /api/contracts-position", s.handlePositions)
	mux.HandleFunc("GET /api/orders", s.handleOrders)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns an http.Handler with CORS, request-id and recovery
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(s.requestIDMiddleware(s.recoverMiddleware(mux)))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request with an id for log correlation,
// honoring an inbound X-Request-Id when the caller supplies one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		s.log.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware converts a handler panic into a JSON failure
// response instead of a dropped connection.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error("handler panic", "path", r.URL.Path, "panic", v)
				writeJSON(w, StatusResponse{Status: false, Message: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// clientIDParam reads the client_id query param. A missing or malformed
// value is reported in the standard failure envelope.
func clientIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("client_id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, StatusResponse{Status: false, Message: "client_id must be an integer", Code: "bad_request"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, StatusResponse{Status: false, Message: "malformed request body", Code: "bad_request"})
		return false
	}
	return true
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, serr := s.mgr.Connect(r.Context(), req.Host, req.Port, req.ClientID)
	if serr != nil {
		writeJSON(w, ConnectResponse{
			Status: false, Message: serr.Message,
			ClientID: &req.ClientID, Code: string(serr.Code),
		})
		return
	}

	msg := "Connected"
	if res.Reused {
		msg = "Already connected"
	}
	writeJSON(w, ConnectResponse{
		Status: true, Message: msg,
		Data: &ConnectData{
			ClientID:     res.ClientID,
			NetLiquidity: res.Account.NetLiquidity,
			Currency:     res.Account.Currency,
			AccountID:    res.Account.AccountID,
		},
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}

	res, serr := s.mgr.Disconnect(r.Context(), clientID)
	if serr != nil {
		writeJSON(w, StatusResponse{Status: false, Message: serr.Message, ClientID: clientID, Code: string(serr.Code)})
		return
	}

	msg := "Disconnected"
	if res.AlreadyDisconnected {
		msg = "Already disconnected"
	}
	writeJSON(w, StatusResponse{Status: true, Message: msg, ClientID: clientID})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}

	acct, serr := s.mgr.AccountSummary(r.Context(), clientID)
	if serr != nil {
		writeJSON(w, AccountsResponse{
			Status: false, Accounts: []string{}, ClientID: clientID,
			Message: serr.Message, Code: string(serr.Code),
		})
		return
	}

	writeJSON(w, AccountsResponse{Status: true, Accounts: []string{acct.AccountID}, ClientID: clientID})
}

func (s *Server) handleAccountDetail(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}

	acct, serr := s.mgr.AccountSummary(r.Context(), clientID)
	if serr != nil {
		writeJSON(w, AccountDetailResponse{
			Status: false, Accounts: []domain.AccountValue{}, ClientID: clientID,
			Message: serr.Message, Code: string(serr.Code),
		})
		return
	}

	values := acct.Values
	if values == nil {
		values = []domain.AccountValue{}
	}
	writeJSON(w, AccountDetailResponse{
		Status: true, Accounts: values,
		Currency: acct.Currency, NetLiquidity: acct.NetLiquidity,
		ClientID: clientID,
	})
}

func (s *Server) handleSendOrder(w http.ResponseWriter, r *http.Request) {
	var req SendOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, serr := s.placer.PlaceBracket(r.Context(), trade.BracketRequest{
		ClientID:   req.ClientID,
		Symbol:     req.Symbol,
		Exchange:   req.Exchange,
		Currency:   req.Currency,
		Qty:        req.PositionQty,
		StopPrice:  req.StopPrice,
		LimitPrice: req.LimitPrice,
		TIF:        req.TIF,
	})
	if serr != nil {
		resp := OrderResponse{Status: false, Message: serr.Message, ClientID: req.ClientID, Code: string(serr.Code)}
		if res != nil {
			resp.Steps = res.Steps
		}
		writeJSON(w, resp)
		return
	}

	writeJSON(w, OrderResponse{
		Status: true, Message: "Order placed", ClientID: req.ClientID,
		Position: res.Position, Steps: res.Steps,
	})
}

func (s *Server) handleFlatten(w http.ResponseWriter, r *http.Request) {
	var req FlattenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, serr := s.placer.Flatten(r.Context(), trade.FlattenRequest{
		ClientID: req.ClientID,
		Symbol:   req.Symbol,
		Exchange: req.Exchange,
		Currency: req.Currency,
		TIF:      req.TIF,
	})
	if serr != nil {
		resp := OrderResponse{Status: false, Message: serr.Message, ClientID: req.ClientID, Code: string(serr.Code)}
		if res != nil {
			resp.Steps = res.Steps
		}
		writeJSON(w, resp)
		return
	}

	writeJSON(w, OrderResponse{
		Status: true, Message: "Flattened", ClientID: req.ClientID,
		Position: res.Position, Steps: res.Steps,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}

	positions, serr := s.mgr.Positions(r.Context(), clientID)
	if serr != nil {
		writeJSON(w, PositionsResponse{
			Status: false, Positions: []domain.Position{}, ClientID: clientID,
			Message: serr.Message, Code: string(serr.Code),
		})
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, PositionsResponse{Status: true, Positions: positions, ClientID: clientID})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	clientID, ok := clientIDParam(w, r)
	if !ok {
		return
	}

	orders, serr := s.mgr.OpenOrders(r.Context(), clientID)
	if serr != nil {
		writeJSON(w, OrdersResponse{
			Status: false, Orders: []OrderRow{}, ClientID: clientID,
			Message: serr.Message, Code: string(serr.Code),
		})
		return
	}

	rows := make([]OrderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, orderRow(o))
	}
	writeJSON(w, OrdersResponse{Status: true, ClientID: clientID, Orders: rows})
}
