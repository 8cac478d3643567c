package data

import (
	"encoding/json"
	"os"
	"strings"

	"lattice-pricer/internal/model"
)

func LoadMarketJSON(path string) (*model.MarketSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeMarketJSON(raw)
}

func DecodeMarketJSON(raw []byte) (*model.MarketSnapshot, error) {
	var snap model.MarketSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, model.Invalidf("market json: %v", err)
	}
	return &snap, nil
}

// MergeMarket overlays override onto base. Quotes are matched by
// case-insensitive name; override wins and new names are appended.
func MergeMarket(base, override *model.MarketSnapshot) *model.MarketSnapshot {
	out := &model.MarketSnapshot{}
	if base != nil {
		out.AsOf = base.AsOf
		out.YieldCurves = append(out.YieldCurves, base.YieldCurves...)
		out.Volatilities = append(out.Volatilities, base.Volatilities...)
	}
	if override == nil {
		return out
	}
	if override.AsOf != "" {
		out.AsOf = override.AsOf
	}
	out.YieldCurves = mergeQuotes(out.YieldCurves, override.YieldCurves)
	out.Volatilities = mergeQuotes(out.Volatilities, override.Volatilities)
	return out
}

func mergeQuotes(base, override []model.CurveQuote) []model.CurveQuote {
	idx := make(map[string]int, len(base))
	for i, q := range base {
		idx[quoteKey(q.Name)] = i
	}
	for _, q := range override {
		if i, ok := idx[quoteKey(q.Name)]; ok {
			base[i] = q
			continue
		}
		idx[quoteKey(q.Name)] = len(base)
		base = append(base, q)
	}
	return base
}

func quoteKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
