package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"lattice-pricer/internal/analysis"
	"lattice-pricer/internal/config"
	"lattice-pricer/internal/logging"
	"lattice-pricer/internal/market"
	"lattice-pricer/internal/pde"
	"lattice-pricer/internal/pricing"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	logging.Setup()

	switch os.Args[1] {
	case "price":
		cmdPrice(os.Args[2:])
	case "converge":
		cmdConverge(os.Args[2:])
	case "schemes":
		cmdSchemes(os.Args[2:])
	case "curve":
		cmdCurve(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli price --config examples/european.yaml [--out results/grid.csv]")
	fmt.Println("  cli converge --config examples/european.yaml --levels 4")
	fmt.Println("  cli schemes --config examples/european.yaml")
	fmt.Println("  cli curve --config examples/european.yaml --name USD --t 2 [--t2 3]")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - price writes every retained time slice to CSV with the node action")
	fmt.Println("  - converge and schemes compare against the closed form, or --ref when there is none")
}

// session is one loaded config with its market registry.
type session struct {
	cfg    *config.Config
	reg    *market.Registry
	svc    *pricing.Service
	params pde.Params
}

func load(path string, overrides config.PDEConfig) *session {
	cfg, err := config.Load(path)
	fatal(err)
	reg := market.NewRegistry()
	_, err = reg.Load(&cfg.Market)
	fatal(err)
	params, err := config.MergeParams(cfg.PDE, overrides).ToParams()
	fatal(err)
	return &session{cfg: cfg, reg: reg, svc: pricing.NewService(reg, slog.Default()), params: params}
}

func (s *session) quote(p pde.Params) (*pricing.Quote, error) {
	return s.svc.Price(pricing.Request{
		Product: s.cfg.Instrument.Type,
		Params:  s.cfg.Instrument.Params,
		Inputs:  s.cfg.Pricing.ToModelInputs(),
		PDE:     p,
	})
}

func (s *session) price(p pde.Params) (float64, error) {
	q, err := s.quote(p)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// reference is the closed-form price when the instrument has one, else ref.
func (s *session) reference(ref float64) float64 {
	if !math.IsNaN(ref) {
		return ref
	}
	q, err := s.quote(s.params)
	fatal(err)
	if q.Reference == nil {
		fatal(fmt.Errorf("%s has no closed form, pass --ref", q.Product))
	}
	return q.Reference.Price
}

func pdeFlags(fs *flag.FlagSet) *config.PDEConfig {
	var o config.PDEConfig
	fs.IntVar(&o.NTimeSteps, "steps", 0, "Override pde.n_time_steps")
	fs.IntVar(&o.NSpotNodes, "nodes", 0, "Override pde.n_spot_nodes")
	fs.StringVar(&o.Scheme, "scheme", "", "Override pde.scheme (explicit, implicit, crank-nicolson)")
	fs.IntVar(&o.Workers, "workers", 0, "Override pde.workers")
	return &o
}

func cmdPrice(args []string) {
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	outPath := fs.String("out", "", "Optional CSV path for the solved grid")
	overrides := pdeFlags(fs)
	_ = fs.Parse(args)
	requireConfig(*cfgPath)

	if *outPath != "" {
		overrides.FullHistory = true
	}
	s := load(*cfgPath, *overrides)
	q, err := s.quote(s.params)
	fatal(err)

	fmt.Printf("%s price=%.6f curve=%s elapsed=%s\n", q.Product, q.Price, q.Curve, q.Elapsed)
	if g := q.Reference; g != nil {
		fmt.Printf("closed form price=%.6f delta=%.6f gamma=%.6f theta=%.6f vega=%.6f (diff %.2e)\n",
			g.Price, g.Delta, g.Gamma, g.Theta, g.Vega, q.Price-g.Price)
	}
	if *outPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fatal(err)
	}
	fatal(q.Results.WriteCSV(*outPath))
	fmt.Printf("Wrote %d time slices x %d nodes to %s\n", len(q.Results.Values), len(q.Results.Spots[0]), *outPath)
}

func cmdConverge(args []string) {
	fs := flag.NewFlagSet("converge", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	levels := fs.Int("levels", 4, "Number of refinement levels")
	ref := fs.Float64("ref", math.NaN(), "Reference price when there is no closed form")
	overrides := pdeFlags(fs)
	_ = fs.Parse(args)
	requireConfig(*cfgPath)

	s := load(*cfgPath, *overrides)
	study, err := analysis.Converge(s.params, *levels, s.reference(*ref), s.price)
	fatal(err)

	fmt.Printf("reference=%.6f\n", study.Reference)
	fmt.Printf("%-6s %-6s %-12s %-12s %-12s %-8s %-10s\n", "steps", "nodes", "price", "error", "diff", "ratio", "elapsed")
	for _, l := range study.Levels {
		fmt.Printf("%-6d %-6d %-12.6f %-12.2e %-12.2e %-8.3f %-10s\n",
			l.NTimeSteps, l.NSpotNodes, l.Price, l.Error, l.Diff, l.Ratio, l.Elapsed.Round(time.Millisecond))
	}
	fmt.Printf("monotone=%t observed order=%.2f\n", study.Monotone, study.Order)
}

func cmdSchemes(args []string) {
	fs := flag.NewFlagSet("schemes", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	ref := fs.Float64("ref", math.NaN(), "Reference price when there is no closed form")
	overrides := pdeFlags(fs)
	_ = fs.Parse(args)
	requireConfig(*cfgPath)

	s := load(*cfgPath, *overrides)
	ranked := analysis.RankSchemes(s.params, s.reference(*ref), analysis.DefaultSchemes, s.price)

	fmt.Printf("%-4s %-16s %-6s %-12s %-12s\n", "rank", "scheme", "theta", "price", "abs error")
	for i, r := range ranked {
		if r.Err != nil {
			fmt.Printf("%-4d %-16s %-6.2f failed: %v\n", i+1, r.Name, r.Theta, r.Err)
			continue
		}
		fmt.Printf("%-4d %-16s %-6.2f %-12.6f %-12.2e\n", i+1, r.Name, r.Theta, r.Price, r.AbsError)
	}
}

func cmdCurve(args []string) {
	fs := flag.NewFlagSet("curve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	name := fs.String("name", "", "Yield curve name (default: the pricing discount curve)")
	t := fs.Float64("t", 1, "Maturity in years")
	t2 := fs.Float64("t2", 0, "Optional forward end, > t")
	_ = fs.Parse(args)
	requireConfig(*cfgPath)

	s := load(*cfgPath, config.PDEConfig{})
	if *name == "" {
		*name = s.cfg.Pricing.DiscountCurve
	}
	yc, tag, err := s.reg.YieldCurves().Lookup(*name)
	fatal(err)

	fmt.Printf("%s t=%g discount=%.8f spot_rate=%.6f\n", tag, *t, yc.Discount(*t), yc.SpotRate(*t))
	if *t2 > *t {
		fmt.Printf("%s [%g,%g] fwd_discount=%.8f fwd_rate=%.6f\n", tag, *t, *t2, yc.FwdDiscount(*t, *t2), yc.FwdRate(*t, *t2))
	}
}

func requireConfig(path string) {
	if path == "" {
		fmt.Println("--config is required")
		os.Exit(2)
	}
}

func fatal(err error) {
	if err == nil {
		return
	}
	slog.Error("cli", "error", err)
	os.Exit(1)
}
