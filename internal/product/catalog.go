package product

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"lattice-pricer/internal/model"
)

// ParamInfo describes one product parameter.
type ParamInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "float", "int", "string", "[]float"
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Info describes a product type and which evaluators it supports.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Lattice     bool        `json:"lattice"`
	Path        bool        `json:"path"`
	Parameters  []ParamInfo `json:"parameters"`
}

var optionParams = []ParamInfo{
	{Name: "payoff_type", Type: "string", Description: "call or put (1 or -1)", Default: "call"},
	{Name: "strike", Type: "float", Description: "Strike price", Required: true},
	{Name: "maturity", Type: "float", Description: "Time to expiry in years", Required: true},
}

var catalog = []Info{
	{
		Name:        "european",
		Description: "European call/put paying max(phi*(S-K), 0) at expiry.",
		Lattice:     true,
		Path:        true,
		Parameters:  optionParams,
	},
	{
		Name:        "digital",
		Description: "Cash-or-nothing digital call/put paying 1 at expiry when in the money.",
		Lattice:     true,
		Path:        true,
		Parameters:  optionParams,
	},
	{
		Name:        "american",
		Description: "American call/put exercisable at every schedule point.",
		Lattice:     true,
		Parameters: append(append([]ParamInfo{}, optionParams...), ParamInfo{
			Name: "points_per_year", Type: "int", Description: "Exercise schedule density", Default: model.DaysPerYear,
		}),
	},
	{
		Name:        "convertible",
		Description: "Zero-coupon convertible bond with holder conversion and issuer call windows.",
		Lattice:     true,
		Parameters: []ParamInfo{
			{Name: "face_value", Type: "float", Description: "Redemption amount at maturity", Default: 100.0},
			{Name: "maturity", Type: "float", Description: "Time to maturity in years", Required: true},
			{Name: "conversion_ratio", Type: "float", Description: "Shares per bond on conversion", Required: true},
			{Name: "conv_start", Type: "float", Description: "Conversion window start (years)", Default: 0.0},
			{Name: "conv_end", Type: "float", Description: "Conversion window end (years), defaults to maturity"},
			{Name: "call_strike", Type: "float", Description: "Issuer call price, 0 disables the call", Default: 0.0},
			{Name: "call_start", Type: "float", Description: "Call window start (years)", Default: 0.0},
			{Name: "call_end", Type: "float", Description: "Call window end (years), defaults to maturity"},
			{Name: "points_per_year", Type: "int", Description: "Schedule density", Default: model.DaysPerYear},
		},
	},
	{
		Name:        "asian_basket",
		Description: "Arithmetic-average basket call/put over fixing times.",
		Path:        true,
		Parameters: []ParamInfo{
			{Name: "payoff_type", Type: "string", Description: "call or put (1 or -1)", Default: "call"},
			{Name: "strike", Type: "float", Description: "Strike on the averaged basket", Required: true},
			{Name: "fix_times", Type: "[]float", Description: "Fixing times in years", Required: true},
			{Name: "quantities", Type: "[]float", Description: "Basket quantity per asset", Required: true},
		},
	},
}

// Catalog lists the product types Build understands.
func Catalog() []Info {
	out := make([]Info, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the known product type names, sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// Build constructs a product from a loosely typed parameter map, as decoded
// from YAML or JSON.
func Build(name string, params map[string]any) (Product, error) {
	r := paramReader{m: params}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "european":
		pt, k, T := r.payoffType(), r.required("strike"), r.maturity()
		if r.err != nil {
			return nil, r.err
		}
		return built(NewEuropeanCallPut(pt, k, T))
	case "digital":
		pt, k, T := r.payoffType(), r.required("strike"), r.maturity()
		if r.err != nil {
			return nil, r.err
		}
		return built(NewDigitalCallPut(pt, k, T))
	case "american":
		pt, k, T := r.payoffType(), r.required("strike"), r.maturity()
		ppy := r.integer("points_per_year", model.DaysPerYear)
		if r.err != nil {
			return nil, r.err
		}
		return built(NewAmericanCallPut(pt, k, T, ppy))
	case "convertible":
		T := r.maturity()
		p := ConvertibleBondParams{
			FaceValue:       r.num("face_value", 100),
			Maturity:        T,
			ConversionRatio: r.required("conversion_ratio"),
			Conversion:      model.Window{Start: r.num("conv_start", 0), End: r.num("conv_end", T)},
			CallStrike:      r.num("call_strike", 0),
			Call:            model.Window{Start: r.num("call_start", 0), End: r.num("call_end", T)},
			PointsPerYear:   r.integer("points_per_year", model.DaysPerYear),
		}
		if r.err != nil {
			return nil, r.err
		}
		return built(NewConvertibleBond(p))
	case "asian_basket":
		pt, k := r.payoffType(), r.required("strike")
		fix, qs := r.floats("fix_times"), r.floats("quantities")
		if r.err != nil {
			return nil, r.err
		}
		return built(NewAsianBasketCallPut(pt, k, fix, qs))
	default:
		return nil, fmt.Errorf("product %q (known: %s): %w", name, strings.Join(Names(), ", "), model.ErrUnknownInputType)
	}
}

// built keeps a failed constructor's typed nil out of the Product interface.
func built[P Product](p P, err error) (Product, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// paramReader collects the first decode error so Build can read all
// parameters before checking.
type paramReader struct {
	m   map[string]any
	err error
}

func (r *paramReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *paramReader) lookup(key string) (any, bool) {
	v, ok := r.m[key]
	return v, ok && v != nil
}

func (r *paramReader) num(key string, def float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	x, err := toFloat(v)
	if err != nil {
		r.fail(model.Invalidf("%s: %v", key, err))
		return def
	}
	return x
}

// integer reads a whole number that fits in an int32.
func (r *paramReader) integer(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	x, err := toFloat(v)
	if err != nil {
		r.fail(model.Invalidf("%s: %v", key, err))
		return def
	}
	if x != math.Trunc(x) || math.Abs(x) > math.MaxInt32 {
		r.fail(model.Invalidf("%s: %v is not an integer", key, v))
		return def
	}
	return int(x)
}

func (r *paramReader) required(key string) float64 {
	if _, ok := r.lookup(key); !ok {
		r.fail(model.Invalidf("%s is required", key))
		return 0
	}
	return r.num(key, 0)
}

func (r *paramReader) maturity() float64 {
	if _, ok := r.lookup("maturity"); !ok {
		if _, ok := r.lookup("time_to_exp"); ok {
			return r.num("time_to_exp", 0)
		}
	}
	return r.required("maturity")
}

func (r *paramReader) payoffType() model.PayoffType {
	v, ok := r.lookup("payoff_type")
	if !ok {
		return model.Call
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	default:
		f, err := toFloat(x)
		if err != nil {
			r.fail(model.Invalidf("payoff_type: %v", err))
			return model.Call
		}
		s = strconv.Itoa(int(f))
	}
	pt, err := model.ParsePayoffType(s)
	if err != nil {
		r.fail(err)
	}
	return pt
}

func (r *paramReader) floats(key string) []float64 {
	v, ok := r.lookup(key)
	if !ok {
		r.fail(model.Invalidf("%s is required", key))
		return nil
	}
	switch xs := v.(type) {
	case []float64:
		return xs
	case []any:
		out := make([]float64, 0, len(xs))
		for i, x := range xs {
			f, err := toFloat(x)
			if err != nil {
				r.fail(model.Invalidf("%s[%d]: %v", key, i, err))
				return nil
			}
			out = append(out, f)
		}
		return out
	default:
		r.fail(model.Invalidf("%s must be a list of numbers", key))
		return nil
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}
