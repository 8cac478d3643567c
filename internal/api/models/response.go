package models

import "lattice-pricer/internal/model"

// PriceResponse is the outcome of one solve. Prices are rounded to the
// requested number of decimals.
type PriceResponse struct {
	ID        string  `json:"id,omitempty"`
	Product   string  `json:"product"`
	Price     float64 `json:"price"`
	Reference *Greeks `json:"reference,omitempty"` // closed form, when the product has one
	Curve     string  `json:"curve"`               // discount curve name@version
	ElapsedMS float64 `json:"elapsed_ms"`
	Cached    bool    `json:"cached,omitempty"`
	Grid      *Grid   `json:"grid,omitempty"`
}

type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Grid is the solved lattice. Values[i][j] is the value at Times[i], Spots[j].
type Grid struct {
	Times   []float64        `json:"times"`
	Spots   []float64        `json:"spots"`
	Values  [][]float64      `json:"values"`
	Actions [][]model.Action `json:"actions,omitempty"`
}

// BatchPriceResponse lists one result per variation, in request order.
type BatchPriceResponse struct {
	Results []BatchResult `json:"results"`
}

type BatchResult struct {
	Name   string         `json:"name"`
	Result *PriceResponse `json:"result,omitempty"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}

type CurveResponse struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
}

// CurveQueryResponse holds yield curve quantities at T, plus forwards over
// [T, T2] when T2 was given.
type CurveQueryResponse struct {
	Name        string   `json:"name"`
	Version     uint64   `json:"version"`
	T           float64  `json:"t"`
	Discount    float64  `json:"discount"`
	SpotRate    float64  `json:"spot_rate"`
	T2          *float64 `json:"t2,omitempty"`
	FwdDiscount *float64 `json:"fwd_discount,omitempty"`
	FwdRate     *float64 `json:"fwd_rate,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
