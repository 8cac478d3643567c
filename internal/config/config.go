package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lattice-pricer/internal/data"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/model"
	"lattice-pricer/internal/pde"
	"lattice-pricer/internal/product"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk run configuration shape (YAML).
type Config struct {
	// Optional: load curves from a separate YAML or JSON file. Curves in
	// Market override file curves of the same name.
	MarketFile string               `yaml:"market_file"`
	Market     model.MarketSnapshot `yaml:"market"`
	Pricing    PricingConfig        `yaml:"pricing"`
	PDE        PDEConfig            `yaml:"pde"`
	Instrument InstrumentConfig     `yaml:"instrument"`
}

type PricingConfig struct {
	Spot          float64 `yaml:"spot" json:"spot"`
	DiscountCurve string  `yaml:"discount_curve" json:"discount_curve"`
	DivYield      float64 `yaml:"div_yield" json:"div_yield"`
	Volatility    float64 `yaml:"volatility" json:"volatility"`
	VolCurve      string  `yaml:"vol_curve" json:"vol_curve,omitempty"`
}

// PDEConfig mirrors pde.Params. Zero fields take the solver defaults; Theta
// is a pointer because 0 (explicit) is a meaningful value.
type PDEConfig struct {
	NTimeSteps      int      `yaml:"n_time_steps" json:"n_time_steps,omitempty"`
	NSpotNodes      int      `yaml:"n_spot_nodes" json:"n_spot_nodes,omitempty"`
	NStdDevs        float64  `yaml:"n_std_devs" json:"n_std_devs,omitempty"`
	Theta           *float64 `yaml:"theta" json:"theta,omitempty"`
	Scheme          string   `yaml:"scheme" json:"scheme,omitempty"`
	FullHistory     bool     `yaml:"full_history" json:"full_history,omitempty"`
	Boundary        string   `yaml:"boundary" json:"boundary,omitempty"`
	TailProbability float64  `yaml:"tail_probability" json:"tail_probability,omitempty"`
	SmoothingSteps  int      `yaml:"smoothing_steps" json:"smoothing_steps,omitempty"`
	Workers         int      `yaml:"workers" json:"workers,omitempty"`
}

type InstrumentConfig struct {
	Type   string         `yaml:"type" json:"type"`
	Params map[string]any `yaml:"params" json:"params"`
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	// With a single yield curve the discount curve may be left implicit.
	if c.Pricing.DiscountCurve == "" && len(c.Market.YieldCurves) == 1 {
		c.Pricing.DiscountCurve = c.Market.YieldCurves[0].Name
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.MarketFile != "" {
		marketPath := ResolvePath(filepath.Dir(path), c.MarketFile)
		loaded, err := LoadMarketFile(marketPath)
		if err != nil {
			return nil, err
		}
		c.Market = *data.MergeMarket(loaded, &c.Market)
	}
	return &c, nil
}

// ResolvePath interprets a relative path against dir, falling back to the
// path as given (relative to cwd) if nothing exists there.
func ResolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	cand := filepath.Join(dir, p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}

type marketFileWrapper struct {
	Market model.MarketSnapshot `yaml:"market"`
}

// LoadMarketFile reads a market snapshot. .json files use the JSON shape;
// anything else is YAML with a top-level "market" key.
func LoadMarketFile(path string) (*model.MarketSnapshot, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return data.LoadMarketJSON(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var w marketFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &w.Market, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Instrument.Type == "" {
		return model.Invalidf("instrument.type is required")
	}
	if _, err := product.Build(c.Instrument.Type, c.Instrument.Params); err != nil {
		return fmt.Errorf("instrument config invalid: %w", err)
	}
	if err := c.Pricing.ToModelInputs().Validate(); err != nil {
		return fmt.Errorf("pricing config invalid: %w", err)
	}
	if _, err := c.PDE.ToParams(); err != nil {
		return fmt.Errorf("pde config invalid: %w", err)
	}
	// Build every curve once so bad quotes fail here rather than mid-run.
	reg := market.NewRegistry()
	if _, err := reg.Load(&c.Market); err != nil {
		return fmt.Errorf("market config invalid: %w", err)
	}
	if _, err := reg.YieldCurves().Get(c.Pricing.DiscountCurve); err != nil {
		return fmt.Errorf("pricing.discount_curve: %w", err)
	}
	if c.Pricing.VolCurve != "" {
		if _, err := reg.Volatilities().Get(c.Pricing.VolCurve); err != nil {
			return fmt.Errorf("pricing.vol_curve: %w", err)
		}
	}
	return nil
}

func (p PricingConfig) ToModelInputs() model.PricingInputs {
	return model.PricingInputs{
		Spot:          p.Spot,
		DiscountCurve: p.DiscountCurve,
		DivYield:      p.DivYield,
		Volatility:    p.Volatility,
		VolCurve:      p.VolCurve,
	}
}

// ToParams overlays the set fields onto pde.DefaultParams and validates.
// An explicit theta wins over scheme.
func (p PDEConfig) ToParams() (pde.Params, error) {
	out := pde.DefaultParams()
	if p.NTimeSteps != 0 {
		out.NTimeSteps = p.NTimeSteps
	}
	if p.NSpotNodes != 0 {
		out.NSpotNodes = p.NSpotNodes
	}
	if p.NStdDevs != 0 {
		out.NStdDevs = p.NStdDevs
	}
	switch {
	case p.Theta != nil:
		out.Theta = *p.Theta
	case p.Scheme != "":
		theta, err := pde.ThetaForScheme(p.Scheme)
		if err != nil {
			return pde.Params{}, err
		}
		out.Theta = theta
	}
	out.FullHistory = p.FullHistory
	if p.Boundary != "" {
		out.Boundary = pde.Boundary(strings.ToLower(p.Boundary))
	}
	if p.TailProbability != 0 {
		out.TailProbability = p.TailProbability
	}
	if p.SmoothingSteps != 0 {
		out.SmoothingSteps = p.SmoothingSteps
	}
	if p.Workers != 0 {
		out.Workers = p.Workers
	}
	if err := out.Validate(); err != nil {
		return pde.Params{}, err
	}
	return out, nil
}

// MergeParams overlays non-zero fields from override onto base.
// This is used to apply per-request solver overrides to a server default.
func MergeParams(base, override PDEConfig) PDEConfig {
	out := base
	if override.NTimeSteps != 0 {
		out.NTimeSteps = override.NTimeSteps
	}
	if override.NSpotNodes != 0 {
		out.NSpotNodes = override.NSpotNodes
	}
	if override.NStdDevs != 0 {
		out.NStdDevs = override.NStdDevs
	}
	if override.Theta != nil {
		out.Theta = override.Theta
		out.Scheme = ""
	} else if override.Scheme != "" {
		out.Scheme = override.Scheme
		out.Theta = nil
	}
	if override.FullHistory {
		out.FullHistory = true
	}
	if override.Boundary != "" {
		out.Boundary = override.Boundary
	}
	if override.TailProbability != 0 {
		out.TailProbability = override.TailProbability
	}
	if override.SmoothingSteps != 0 {
		out.SmoothingSteps = override.SmoothingSteps
	}
	if override.Workers != 0 {
		out.Workers = override.Workers
	}
	return out
}
