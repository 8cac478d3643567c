package handlers

import (
	"fmt"
	"net/http"

	"lattice-pricer/internal/api/middleware"
	"lattice-pricer/internal/api/models"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/model"

	"github.com/gin-gonic/gin"
)

// MarketHandler manages the curves of the server's registry.
type MarketHandler struct {
	reg *market.Registry
}

func NewMarketHandler(reg *market.Registry) *MarketHandler {
	return &MarketHandler{reg: reg}
}

// CreateCurve handles POST /api/v1/curves
func (h *MarketHandler) CreateCurve(c *gin.Context) {
	var req models.CurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortInvalidRequest(c, err)
		return
	}
	it, err := market.ParseInputType(req.InputType)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	yc, err := market.NewYieldCurve(req.Times, req.Values, it)
	if err != nil {
		middleware.AbortWithError(c, fmt.Errorf("yield curve %q: %w", req.Name, err))
		return
	}
	tag, err := h.reg.YieldCurves().Set(req.Name, yc)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.CurveResponse{Name: tag.Name, Version: tag.Version})
}

// CreateVolatility handles POST /api/v1/volatilities
func (h *MarketHandler) CreateVolatility(c *gin.Context) {
	var req models.CurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortInvalidRequest(c, err)
		return
	}
	vt, err := market.ParseVolType(req.InputType)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	vc, err := market.NewVolatilityCurve(req.Times, req.Values, vt)
	if err != nil {
		middleware.AbortWithError(c, fmt.Errorf("volatility %q: %w", req.Name, err))
		return
	}
	tag, err := h.reg.Volatilities().Set(req.Name, vc)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.CurveResponse{Name: tag.Name, Version: tag.Version})
}

// ListMarket handles GET /api/v1/market
func (h *MarketHandler) ListMarket(c *gin.Context) {
	c.JSON(http.StatusOK, h.reg.List())
}

// ClearMarket handles DELETE /api/v1/market
func (h *MarketHandler) ClearMarket(c *gin.Context) {
	h.reg.Clear()
	c.Status(http.StatusNoContent)
}

// QueryCurve handles GET /api/v1/curves/:name?t=..&t2=..
func (h *MarketHandler) QueryCurve(c *gin.Context) {
	var q models.CurveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.AbortInvalidRequest(c, err)
		return
	}
	if q.T < 0 || (q.T2 != nil && *q.T2 <= q.T) {
		middleware.AbortWithError(c, model.Invalidf("need 0 <= t < t2"))
		return
	}
	yc, tag, err := h.reg.YieldCurves().Lookup(c.Param("name"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	resp := models.CurveQueryResponse{
		Name:     tag.Name,
		Version:  tag.Version,
		T:        q.T,
		Discount: yc.Discount(q.T),
		SpotRate: yc.SpotRate(q.T),
	}
	if q.T2 != nil {
		fd, fr := yc.FwdDiscount(q.T, *q.T2), yc.FwdRate(q.T, *q.T2)
		resp.T2, resp.FwdDiscount, resp.FwdRate = q.T2, &fd, &fr
	}
	c.JSON(http.StatusOK, resp)
}
