package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lattice-pricer/internal/api"
	"lattice-pricer/internal/api/models"
	"lattice-pricer/internal/config"
	"lattice-pricer/internal/data"
	"lattice-pricer/internal/logging"
	"lattice-pricer/internal/market"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	log := logging.Setup()

	srv, err := config.ServerFromEnv()
	if err != nil {
		log.Error("server config", "error", err)
		os.Exit(1)
	}
	if srv.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := market.NewRegistry()
	if srv.MarketFile != "" {
		snap, err := config.LoadMarketFile(srv.MarketFile)
		if err != nil {
			log.Error("market file", "path", srv.MarketFile, "error", err)
			os.Exit(1)
		}
		tags, err := reg.Load(snap)
		if err != nil {
			log.Error("market file", "path", srv.MarketFile, "error", err)
			os.Exit(1)
		}
		log.Info("market loaded", "path", srv.MarketFile, "curves", len(tags), "as_of", snap.AsOf)
	}

	cache := data.NewResultCache[*models.PriceResponse](srv.ResultTTL, time.Minute)
	defer cache.Close()

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := api.NewRouter(api.Deps{
		Registry: reg,
		Cache:    cache,
		Server:   srv,
		Logger:   log,
		Metrics:  metrics,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", srv.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting API server", "addr", httpSrv.Addr, "env", srv.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}
