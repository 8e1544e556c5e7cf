package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"ibgate/internal/broker"
	"ibgate/internal/config"
	"ibgate/internal/httpapi"
	"ibgate/internal/metrics"
	"ibgate/internal/session"
	"ibgate/internal/trade"
	"ibgate/internal/util"
)

func main() {
	cfgPath := "config/ibgate.yaml"
	if p := os.Getenv("IBGATE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if os.IsNotExist(err) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	registry := session.NewRegistry(broker.NewFactory(cfg, logger))

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg, registry.Len)

	mgr := session.NewManager(registry, logger, m)
	placer := trade.NewPlacer(mgr, logger, m)
	api := httpapi.NewServer(mgr, placer, promReg, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("ibgate server listening", "addr", httpServer.Addr, "broker", cfg.Gateway.Broker)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}

		// Tear down whatever sessions are still live so venue sockets
		// do not linger past process exit.
		for _, clientID := range registry.ClientIDs() {
			if _, serr := mgr.Disconnect(shutdownCtx, clientID); serr != nil {
				logger.Warn("disconnect on shutdown", "client_id", clientID, "error", serr)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
