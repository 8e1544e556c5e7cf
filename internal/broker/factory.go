package broker

import (
	"log/slog"
	"time"

	"ibgate/internal/config"
)

// NewFactory returns a constructor for not-yet-connected sessions of the
// backend selected in cfg.Gateway.Broker. The returned function is what
// the session registry calls under its structural lock, so it must not
// perform any I/O. Every constructor here only allocates.
func NewFactory(cfg *config.Config, logger *slog.Logger) func(clientID int) Session {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Gateway.Broker {
	case "alpaca":
		return func(clientID int) Session {
			return NewAlpacaSession(
				cfg.Alpaca.APIKey,
				cfg.Alpaca.APISecret,
				cfg.Alpaca.BaseURL,
				logger.With("backend", "alpaca", "client_id", clientID),
			)
		}
	case "simulator":
		return func(clientID int) Session {
			return NewSimulatorSession()
		}
	default:
		gwCfg := GatewayConfig{
			ConnectTimeout: time.Duration(cfg.Gateway.ConnectTimeoutSec) * time.Second,
			CallTimeout:    time.Duration(cfg.Gateway.CallTimeoutSec) * time.Second,
			WriteTimeout:   5 * time.Second,
		}
		return func(clientID int) Session {
			return NewGatewaySession(gwCfg, logger.With("backend", "gateway", "client_id", clientID))
		}
	}
}
