package model

// MarketSnapshot matches the JSON/YAML shape of a market data file.
//
// Example:
//
//	{
//	  "as_of": "2026-01-02",
//	  "yield_curves": [{"name": "USD", "times": [1, 2], "values": [0.04, 0.045], "input_type": "spot"}],
//	  "volatilities": [{"name": "SPX", "times": [1], "values": [0.2], "input_type": "spot"}]
//	}
type MarketSnapshot struct {
	AsOf         string       `json:"as_of,omitempty" yaml:"as_of"`
	YieldCurves  []CurveQuote `json:"yield_curves" yaml:"yield_curves"`
	Volatilities []CurveQuote `json:"volatilities" yaml:"volatilities"`
}

// CurveQuote is one named term structure as quoted on disk.
// InputType is a selector name ("spot", "fwd", "zero") or its numeric code.
type CurveQuote struct {
	Name      string    `json:"name" yaml:"name"`
	Times     []float64 `json:"times" yaml:"times"`
	Values    []float64 `json:"values" yaml:"values"`
	InputType string    `json:"input_type,omitempty" yaml:"input_type"`
}
