package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"lattice-pricer/internal/analytic"
	"lattice-pricer/internal/logging"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/model"
	"lattice-pricer/internal/pde"
	"lattice-pricer/internal/pricing"
	"lattice-pricer/internal/product"
)

// Demo:
// - Register a flat discount curve
// - Price a European call with the explicit, implicit and Crank-Nicolson schemes against Black-Scholes
// - Price American and European puts side by side
// - Price a callable convertible bond
func main() {
	rate := flag.Float64("rate", 0.05, "Flat continuously compounded rate")
	vol := flag.Float64("vol", 0.2, "Flat volatility")
	spot := flag.Float64("spot", 100, "Spot price")
	outCSV := flag.String("out", "", "Optional path to write the convertible bond grid CSV")
	flag.Parse()

	log := logging.Setup()

	reg := market.NewRegistry()
	yc, err := market.FlatYieldCurve(*rate)
	if err != nil {
		fatal(err)
	}
	if _, err := reg.YieldCurves().Set("FLAT", yc); err != nil {
		fatal(err)
	}
	svc := pricing.NewService(reg, log)

	const strike, maturity, divYield = 100.0, 1.0, 0.0

	bs, err := analytic.EuroBS(model.Call, analytic.Inputs{
		Spot: *spot, Strike: strike, TimeToExp: maturity, IntRate: *rate, DivYield: divYield, Vol: *vol,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Printf("European call S=%.2f K=%.2f T=%.2f r=%.3f vol=%.3f\n", *spot, strike, maturity, *rate, *vol)
	fmt.Printf("  %-16s %10.6f\n", "black-scholes", bs.Price)

	schemes := []struct {
		name   string
		theta  float64
		steps  int
		nodes  int
		smooth int
	}{
		{"explicit", pde.ThetaExplicit, 2000, 101, 0},
		{"implicit", pde.ThetaImplicit, 200, 201, 0},
		{"crank-nicolson", pde.ThetaCrankNicolson, 200, 201, 2},
	}
	for _, sc := range schemes {
		p := pde.DefaultParams()
		p.Theta, p.NTimeSteps, p.NSpotNodes, p.SmoothingSteps = sc.theta, sc.steps, sc.nodes, sc.smooth
		res, err := svc.EuroBSPDE(model.Call, strike, maturity, *spot, "FLAT", divYield, *vol, p)
		if err != nil {
			fmt.Printf("  %-16s failed: %v\n", sc.name, err)
			continue
		}
		fmt.Printf("  %-16s %10.6f  (%dx%d, diff %+.2e)\n", sc.name, res.Price(), sc.steps, sc.nodes, res.Price()-bs.Price)
	}

	// Daily exercise needs at least one time step per schedule interval.
	p := pde.DefaultParams()
	p.NTimeSteps, p.NSpotNodes, p.SmoothingSteps = 504, 201, 2
	euro, err := svc.EuroBSPDE(model.Put, strike, maturity, *spot, "FLAT", divYield, *vol, p)
	if err != nil {
		fatal(err)
	}
	amer, err := svc.AmerBSPDE(model.Put, strike, maturity, *spot, "FLAT", divYield, *vol, p)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("\nPuts K=%.2f T=%.2f\n", strike, maturity)
	fmt.Printf("  %-16s %10.6f\n", "european", euro.Price())
	fmt.Printf("  %-16s %10.6f  (early exercise premium %.6f)\n", "american", amer.Price(), amer.Price()-euro.Price())

	cb := product.ConvertibleBondParams{
		FaceValue:       100,
		Maturity:        5,
		ConversionRatio: 1,
		Conversion:      model.Window{Start: 0, End: 5},
		CallStrike:      130,
		Call:            model.Window{Start: 2, End: 5},
		PointsPerYear:   52,
	}
	p = pde.DefaultParams()
	p.NTimeSteps, p.NSpotNodes, p.SmoothingSteps = 520, 201, 2
	p.FullHistory = *outCSV != ""
	res, err := svc.CbBSPDE(cb, *spot, "FLAT", 0.01, 0.3, p)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("\nConvertible face=%.0f T=%.0f ratio=%.1f call=%.0f from t=%.0f\n",
		cb.FaceValue, cb.Maturity, cb.ConversionRatio, cb.CallStrike, cb.Call.Start)
	fmt.Printf("  %-16s %10.6f  (bond floor %.6f, parity %.6f)\n", "price", res.Price(),
		cb.FaceValue*yc.Discount(cb.Maturity), cb.ConversionRatio*(*spot))

	if *outCSV != "" {
		if err := res.WriteCSV(*outCSV); err != nil {
			fatal(err)
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}
}

func fatal(err error) {
	slog.Error("demo", "error", err)
	os.Exit(1)
}
