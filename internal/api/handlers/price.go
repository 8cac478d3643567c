package handlers

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"math"
	"net/http"
	"time"

	"lattice-pricer/internal/api/middleware"
	"lattice-pricer/internal/api/models"
	"lattice-pricer/internal/config"
	"lattice-pricer/internal/data"
	"lattice-pricer/internal/model"
	"lattice-pricer/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDecimals = 6
	maxDecimals     = 12
)

// PriceHandler serves pricing requests and keeps solved results for later
// retrieval by id.
type PriceHandler struct {
	svc         *pricing.Service
	cache       *data.ResultCache[*models.PriceResponse]
	defaults    config.PDEConfig
	concurrency int
	metrics     *middleware.Metrics
	log         *slog.Logger
}

type PriceHandlerOptions struct {
	Defaults    config.PDEConfig // server-wide solver settings, overlaid by each request
	Concurrency int              // batch solves in flight, default 4
	Metrics     *middleware.Metrics
	Logger      *slog.Logger
}

func NewPriceHandler(svc *pricing.Service, cache *data.ResultCache[*models.PriceResponse], opts PriceHandlerOptions) *PriceHandler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PriceHandler{
		svc:         svc,
		cache:       cache,
		defaults:    opts.Defaults,
		concurrency: opts.Concurrency,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
}

// Price handles POST /api/v1/price
func (h *PriceHandler) Price(c *gin.Context) {
	var req models.PriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortInvalidRequest(c, err)
		return
	}
	resp, err := h.price(req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, present(resp, req.Options.IncludeGrid))
}

// GetResult handles GET /api/v1/price/:id
func (h *PriceHandler) GetResult(c *gin.Context) {
	id := c.Param("id")
	resp, ok := h.cache.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "result " + id + " not found or expired",
			},
		})
		return
	}
	out := *resp
	out.ID = id
	c.JSON(http.StatusOK, &out)
}

// PriceBatch handles POST /api/v1/price/batch
func (h *PriceHandler) PriceBatch(c *gin.Context) {
	var req models.BatchPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortInvalidRequest(c, err)
		return
	}

	results := make([]models.BatchResult, len(req.Variations))
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.SetLimit(h.concurrency)
	for i, v := range req.Variations {
		i, v := i, v
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i].Name = v.Name
			resp, err := h.price(applyVariation(req.Base, v))
			if err != nil {
				d := middleware.Detail(err)
				results[i].Error = &d
				return nil
			}
			results[i].Result = present(resp, req.Base.Options.IncludeGrid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, models.ErrorResponse{
			Error: models.ErrorDetail{Code: "BATCH_ABORTED", Message: err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, models.BatchPriceResponse{Results: results})
}

// cacheKey identifies a request together with the versions of the curves
// it reads, so a replaced curve never serves a stale result.
type cacheKey struct {
	Request      models.PriceRequest
	CurveVersion uint64
	VolVersion   uint64
}

// price solves req, or returns the live cached result of an identical
// request. The returned response always carries the grid.
func (h *PriceHandler) price(req models.PriceRequest) (*models.PriceResponse, error) {
	decimals := int32(defaultDecimals)
	if d := req.Options.Decimals; d != nil {
		if *d < 0 || *d > maxDecimals {
			return nil, model.Invalidf("decimals must be in [0,%d]", maxDecimals)
		}
		decimals = *d
	}
	params, err := config.MergeParams(h.defaults, req.PDE).ToParams()
	if err != nil {
		return nil, err
	}

	reg := h.svc.Registry()
	key := cacheKey{Request: req}
	key.Request.Options.IncludeGrid = false
	key.CurveVersion, _ = reg.YieldCurves().Version(req.Pricing.DiscountCurve)
	if req.Pricing.VolCurve != "" {
		key.VolVersion, _ = reg.Volatilities().Version(req.Pricing.VolCurve)
	}
	k, err := data.RequestKey(key)
	if err != nil {
		h.log.Warn("request key", "error", err)
		k = ""
	}
	if k != "" {
		if id, resp, ok := h.cache.Find(k); ok {
			out := *resp
			out.ID, out.Cached = id, true
			return &out, nil
		}
	}

	start := time.Now()
	q, err := h.svc.Price(pricing.Request{
		Product: req.Product,
		Params:  req.Params,
		Inputs:  req.Pricing.ToModelInputs(),
		PDE:     params,
	})
	h.metrics.ObserveSolve(req.Product, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	resp := buildResponse(q, decimals)
	out := *resp
	out.ID = h.cache.Add(k, resp)
	return &out, nil
}

func applyVariation(base models.PriceRequest, v models.Variation) models.PriceRequest {
	out := base
	out.Params = make(map[string]any, len(base.Params)+len(v.Params))
	maps.Copy(out.Params, base.Params)
	maps.Copy(out.Params, v.Params)
	if v.Pricing != nil {
		out.Pricing = *v.Pricing
	}
	out.PDE = config.MergeParams(base.PDE, v.PDE)
	return out
}

func buildResponse(q *pricing.Quote, decimals int32) *models.PriceResponse {
	resp := &models.PriceResponse{
		Product:   q.Product,
		Price:     round(q.Price, decimals),
		Curve:     q.Curve.String(),
		ElapsedMS: float64(q.Elapsed.Microseconds()) / 1000,
	}
	if g := q.Reference; g != nil {
		resp.Reference = &models.Greeks{
			Price: round(g.Price, decimals),
			Delta: round(g.Delta, decimals),
			Gamma: round(g.Gamma, decimals),
			Theta: round(g.Theta, decimals),
			Vega:  round(g.Vega, decimals),
		}
	}
	if r := q.Results; r != nil && len(r.Spots) > 0 {
		resp.Grid = &models.Grid{
			Times:   r.Times,
			Spots:   r.Spots[0],
			Values:  r.Values,
			Actions: r.Actions,
		}
	}
	return resp
}

// present returns resp as sent to the client, without the grid unless asked.
func present(resp *models.PriceResponse, includeGrid bool) *models.PriceResponse {
	if includeGrid {
		return resp
	}
	out := *resp
	out.Grid = nil
	return &out
}

func round(v float64, decimals int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(decimals).InexactFloat64()
}
