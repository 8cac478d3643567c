package models

import "lattice-pricer/internal/config"

// CurveRequest creates or replaces a named term structure.
type CurveRequest struct {
	Name      string    `json:"name" binding:"required"`
	Times     []float64 `json:"times" binding:"required"`
	Values    []float64 `json:"values" binding:"required"`
	InputType string    `json:"input_type,omitempty"` // "spot", "fwd", "zero" or a numeric code
}

// CurveQuery reads a yield curve at t, and forward quantities over [t, t2].
type CurveQuery struct {
	T  float64  `form:"t" binding:"required"`
	T2 *float64 `form:"t2"`
}

// PriceRequest prices one catalog product.
type PriceRequest struct {
	Product string               `json:"product" binding:"required"`
	Params  map[string]any       `json:"params,omitempty"`
	Pricing config.PricingConfig `json:"pricing"`
	PDE     config.PDEConfig     `json:"pde,omitempty"`
	Options PriceOptions         `json:"options,omitempty"`
}

type PriceOptions struct {
	IncludeGrid bool   `json:"include_grid,omitempty"` // default: false
	Decimals    *int32 `json:"decimals,omitempty"`     // default: 6
}

// BatchPriceRequest prices variations of one base request concurrently.
type BatchPriceRequest struct {
	Base       PriceRequest `json:"base"`
	Variations []Variation  `json:"variations" binding:"required,min=1,dive"`
}

// Variation overlays its fields on the batch base request. Params keys
// replace base keys; PDE fields merge like config.MergeParams.
type Variation struct {
	Name    string                `json:"name" binding:"required"`
	Params  map[string]any        `json:"params,omitempty"`
	Pricing *config.PricingConfig `json:"pricing,omitempty"`
	PDE     config.PDEConfig      `json:"pde,omitempty"`
}
