// Package pricing resolves market handles from a registry, builds products
// and runs the PDE solver for them.
package pricing

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"lattice-pricer/internal/analytic"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/model"
	"lattice-pricer/internal/pde"
	"lattice-pricer/internal/product"
)

// Request prices one instrument from the product catalog.
type Request struct {
	Product string
	Params  map[string]any
	Inputs  model.PricingInputs
	PDE     pde.Params
}

// Quote is the outcome of one pricing request.
type Quote struct {
	Product   string
	Price     float64
	Reference *analytic.Greeks // closed form, when the product has one
	Curve     market.Tag
	Results   *pde.Results
	Elapsed   time.Duration
}

// Handles are the market objects one solve reads.
type Handles struct {
	Curve    *market.YieldCurve
	CurveTag market.Tag
	Vol      *market.VolatilityCurve
}

// Service prices against the curves of one registry. Safe for concurrent
// use; every request builds its own product and solver.
type Service struct {
	reg *market.Registry
	log *slog.Logger
}

func NewService(reg *market.Registry, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{reg: reg, log: log}
}

func (s *Service) Registry() *market.Registry { return s.reg }

// Resolve looks up the discount curve and volatility named by in. A named
// vol curve wins over the flat Volatility.
func (s *Service) Resolve(in model.PricingInputs) (Handles, error) {
	if err := in.Validate(); err != nil {
		return Handles{}, err
	}
	yc, tag, err := s.reg.YieldCurves().Lookup(in.DiscountCurve)
	if err != nil {
		return Handles{}, err
	}
	h := Handles{Curve: yc, CurveTag: tag}
	if in.VolCurve != "" {
		h.Vol, err = s.reg.Volatilities().Get(in.VolCurve)
	} else {
		h.Vol, err = market.FlatVolatility(in.Volatility)
	}
	if err != nil {
		return Handles{}, err
	}
	return h, nil
}

// Price builds req.Product from the catalog and solves it.
func (s *Service) Price(req Request) (*Quote, error) {
	prod, err := product.Build(req.Product, req.Params)
	if err != nil {
		return nil, err
	}
	return s.PriceProduct(prod, req.Inputs, req.PDE)
}

// PriceProduct solves an already built product.
func (s *Service) PriceProduct(prod product.Product, in model.PricingInputs, p pde.Params) (*Quote, error) {
	start := time.Now()
	h, err := s.Resolve(in)
	if err != nil {
		return nil, err
	}
	mkt := pde.Market{Spot: in.Spot, DivYield: in.DivYield, Discount: h.Curve, Vol: h.Vol}
	solver, err := pde.NewSolver(prod, mkt, p, pde.WithLogger(s.log))
	if err != nil {
		return nil, err
	}
	res, err := solver.Solve()
	if err != nil {
		return nil, err
	}
	q := &Quote{
		Product: prod.Name(),
		Price:   res.Price(),
		Curve:   h.CurveTag,
		Results: res,
		Elapsed: time.Since(start),
	}
	if ref, ok := reference(prod, in, h); ok {
		q.Reference = &ref
	}
	s.log.Info("priced",
		"product", q.Product,
		"curve", q.Curve.String(),
		"price", q.Price,
		"elapsed", q.Elapsed,
	)
	return q, nil
}

// reference prices European and digital payoffs in closed form. With
// deterministic term structures the spot rate and term vol to expiry are
// exact inputs.
func reference(prod product.Product, in model.PricingInputs, h Handles) (analytic.Greeks, bool) {
	var (
		pt     model.PayoffType
		strike float64
		price  func(model.PayoffType, analytic.Inputs) (analytic.Greeks, error)
	)
	switch p := prod.(type) {
	case *product.EuropeanCallPut:
		pt, strike, price = p.PayoffType(), p.Strike(), analytic.EuroBS
	case *product.DigitalCallPut:
		pt, strike, price = p.PayoffType(), p.Strike(), analytic.DigiBS
	default:
		return analytic.Greeks{}, false
	}
	T := prod.Schedule().Maturity()
	g, err := price(pt, analytic.Inputs{
		Spot:      in.Spot,
		Strike:    strike,
		TimeToExp: T,
		IntRate:   h.Curve.SpotRate(T),
		DivYield:  in.DivYield,
		Vol:       h.Vol.SpotVol(T),
	})
	if err != nil {
		return analytic.Greeks{}, false
	}
	return g, true
}

// EuroBSPDE prices a European call or put on the named discount curve with
// a flat volatility.
func (s *Service) EuroBSPDE(pt model.PayoffType, strike, timeToExp, spot float64, curve string, divYield, vol float64, p pde.Params) (*pde.Results, error) {
	prod, err := product.NewEuropeanCallPut(pt, strike, timeToExp)
	if err != nil {
		return nil, err
	}
	return s.solveFlat(prod, spot, curve, divYield, vol, p)
}

// AmerBSPDE prices an American call or put exercisable daily.
func (s *Service) AmerBSPDE(pt model.PayoffType, strike, timeToExp, spot float64, curve string, divYield, vol float64, p pde.Params) (*pde.Results, error) {
	prod, err := product.NewAmericanCallPut(pt, strike, timeToExp, 0)
	if err != nil {
		return nil, err
	}
	return s.solveFlat(prod, spot, curve, divYield, vol, p)
}

// CbBSPDE prices a convertible bond.
func (s *Service) CbBSPDE(cb product.ConvertibleBondParams, spot float64, curve string, divYield, vol float64, p pde.Params) (*pde.Results, error) {
	prod, err := product.NewConvertibleBond(cb)
	if err != nil {
		return nil, err
	}
	return s.solveFlat(prod, spot, curve, divYield, vol, p)
}

func (s *Service) solveFlat(prod product.Product, spot float64, curve string, divYield, vol float64, p pde.Params) (*pde.Results, error) {
	q, err := s.PriceProduct(prod, model.PricingInputs{
		Spot:          spot,
		DiscountCurve: curve,
		DivYield:      divYield,
		Volatility:    vol,
	}, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", prod.Name(), err)
	}
	return q.Results, nil
}
