// Package analytic holds closed-form Black-Scholes prices used as reference
// values for the lattice pricers.
package analytic

import (
	"fmt"
	"math"

	"lattice-pricer/internal/model"

	"gonum.org/v1/gonum/stat/distuv"
)

// Greeks is a price with its first sensitivities. Theta is the derivative
// with respect to calendar time, per year.
type Greeks struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// Vector returns [price, delta, gamma, theta, vega].
func (g Greeks) Vector() []float64 {
	return []float64{g.Price, g.Delta, g.Gamma, g.Theta, g.Vega}
}

// Inputs are the flat-parameter Black-Scholes market and contract terms.
type Inputs struct {
	Spot      float64
	Strike    float64
	TimeToExp float64
	IntRate   float64
	DivYield  float64
	Vol       float64
}

func (in Inputs) validate() error {
	if !(in.Spot > 0) {
		return model.Invalidf("spot must be > 0")
	}
	if !(in.Strike > 0) {
		return model.Invalidf("strike must be > 0")
	}
	if !(in.TimeToExp > 0) {
		return fmt.Errorf("time to expiry %g: %w", in.TimeToExp, model.ErrNonPositiveMaturity)
	}
	if !(in.Vol > 0) {
		return fmt.Errorf("volatility %g: %w", in.Vol, model.ErrDegenerateVariance)
	}
	for _, v := range []float64{in.Spot, in.Strike, in.TimeToExp, in.IntRate, in.DivYield, in.Vol} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Invalidf("inputs must be finite")
		}
	}
	return nil
}

// d returns d1, d2 and sigma*sqrt(T).
func (in Inputs) d() (d1, d2, sdt float64) {
	sdt = in.Vol * math.Sqrt(in.TimeToExp)
	d1 = (math.Log(in.Spot/in.Strike) + (in.IntRate-in.DivYield+0.5*in.Vol*in.Vol)*in.TimeToExp) / sdt
	return d1, d1 - sdt, sdt
}

// FwdPrice is the forward price of an asset paying a continuous yield.
func FwdPrice(spot, timeToExp, intRate, divYield float64) (float64, error) {
	if !(spot > 0) {
		return 0, model.Invalidf("spot must be > 0")
	}
	if timeToExp < 0 {
		return 0, fmt.Errorf("time to expiry %g: %w", timeToExp, model.ErrNonPositiveMaturity)
	}
	return spot * math.Exp((intRate-divYield)*timeToExp), nil
}

// QuantoFwdPrice adjusts FwdPrice for an asset settled in another currency,
// with correl the correlation between the asset and the exchange rate.
func QuantoFwdPrice(spot, timeToExp, intRate, divYield, assetVol, fxVol, correl float64) (float64, error) {
	if correl < -1 || correl > 1 {
		return 0, model.Invalidf("correlation %g outside [-1, 1]", correl)
	}
	if assetVol < 0 || fxVol < 0 {
		return 0, model.Invalidf("volatilities must be >= 0")
	}
	return FwdPrice(spot, timeToExp, intRate, divYield+correl*assetVol*fxVol)
}

// EuroBS prices a European call or put.
func EuroBS(pt model.PayoffType, in Inputs) (Greeks, error) {
	if err := pt.Validate(); err != nil {
		return Greeks{}, err
	}
	if err := in.validate(); err != nil {
		return Greeks{}, err
	}
	w := pt.Sign()
	d1, d2, sdt := in.d()
	T := in.TimeToExp
	dq := math.Exp(-in.DivYield * T)
	dr := math.Exp(-in.IntRate * T)
	nd1 := distuv.UnitNormal.Prob(d1)
	Nw1 := distuv.UnitNormal.CDF(w * d1)
	Nw2 := distuv.UnitNormal.CDF(w * d2)

	return Greeks{
		Price: w * (in.Spot*dq*Nw1 - in.Strike*dr*Nw2),
		Delta: w * dq * Nw1,
		Gamma: dq * nd1 / (in.Spot * sdt),
		Theta: -in.Spot*dq*nd1*in.Vol/(2*math.Sqrt(T)) -
			w*in.IntRate*in.Strike*dr*Nw2 +
			w*in.DivYield*in.Spot*dq*Nw1,
		Vega: in.Spot * dq * nd1 * math.Sqrt(T),
	}, nil
}

// DigiBS prices a cash-or-nothing digital paying 1 at expiry.
func DigiBS(pt model.PayoffType, in Inputs) (Greeks, error) {
	if err := pt.Validate(); err != nil {
		return Greeks{}, err
	}
	if err := in.validate(); err != nil {
		return Greeks{}, err
	}
	w := pt.Sign()
	d1, d2, sdt := in.d()
	T := in.TimeToExp
	dr := math.Exp(-in.IntRate * T)
	nd2 := distuv.UnitNormal.Prob(d2)
	price := dr * distuv.UnitNormal.CDF(w*d2)
	dd2dT := (in.IntRate-in.DivYield)/sdt - d1/(2*T)

	return Greeks{
		Price: price,
		Delta: w * dr * nd2 / (in.Spot * sdt),
		Gamma: -w * dr * nd2 * d1 / (in.Spot * in.Spot * sdt * sdt),
		Theta: in.IntRate*price - w*dr*nd2*dd2dT,
		Vega:  -w * dr * nd2 * d1 / in.Vol,
	}, nil
}
