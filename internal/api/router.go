// Package api wires the HTTP surface of the pricer.
package api

import (
	"log/slog"
	"net/http"

	"lattice-pricer/internal/api/handlers"
	"lattice-pricer/internal/api/middleware"
	"lattice-pricer/internal/api/models"
	"lattice-pricer/internal/config"
	"lattice-pricer/internal/data"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the objects the router serves. The caller owns their lifetimes.
type Deps struct {
	Registry *market.Registry
	Cache    *data.ResultCache[*models.PriceResponse]
	Server   config.Server
	PDE      config.PDEConfig // server default solver settings
	Logger   *slog.Logger
	Metrics  *prometheus.Registry
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = prometheus.NewRegistry()
	}
	metrics := middleware.NewMetrics(d.Metrics)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(d.Server.AllowedOrigins...))
	router.Use(middleware.Logger(d.Logger))
	router.Use(metrics.Handler())

	marketHandler := handlers.NewMarketHandler(d.Registry)
	priceHandler := handlers.NewPriceHandler(pricing.NewService(d.Registry, d.Logger), d.Cache, handlers.PriceHandlerOptions{
		Defaults:    d.PDE,
		Concurrency: d.Server.BatchConcurrency,
		Metrics:     metrics,
		Logger:      d.Logger,
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", handlers.ListProducts)

		v1.POST("/curves", marketHandler.CreateCurve)
		v1.GET("/curves/:name", marketHandler.QueryCurve)
		v1.POST("/volatilities", marketHandler.CreateVolatility)
		v1.GET("/market", marketHandler.ListMarket)
		v1.DELETE("/market", marketHandler.ClearMarket)

		v1.POST("/price", priceHandler.Price)
		v1.POST("/price/batch", priceHandler.PriceBatch)
		v1.GET("/price/:id", priceHandler.GetResult)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "NOT_FOUND", Message: "no route " + c.Request.URL.Path},
		})
	})
	return router
}
