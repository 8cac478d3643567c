package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lattice-pricer/internal/api/models"
	"lattice-pricer/internal/config"
	"lattice-pricer/internal/data"
	"lattice-pricer/internal/market"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type RouterSuite struct {
	suite.Suite
	reg    *market.Registry
	cache  *data.ResultCache[*models.PriceResponse]
	router *gin.Engine
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *RouterSuite) SetupTest() {
	s.reg = market.NewRegistry()
	s.cache = data.NewResultCache[*models.PriceResponse](time.Hour, 0)
	s.router = NewRouter(Deps{
		Registry: s.reg,
		Cache:    s.cache,
		Server:   config.Server{BatchConcurrency: 2},
		PDE:      config.PDEConfig{NTimeSteps: 200, NSpotNodes: 201, SmoothingSteps: 2},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  prometheus.NewRegistry(),
	})
}

func (s *RouterSuite) TearDownTest() {
	s.cache.Close()
}

func (s *RouterSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			r = bytes.NewBufferString(raw)
		} else {
			b, err := json.Marshal(body)
			s.Require().NoError(err)
			r = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) decode(w *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (s *RouterSuite) errorCode(w *httptest.ResponseRecorder) string {
	var e models.ErrorResponse
	s.decode(w, &e)
	return e.Error.Code
}

func (s *RouterSuite) addUSD() {
	w := s.do(http.MethodPost, "/api/v1/curves", models.CurveRequest{
		Name: "USD", Times: []float64{1}, Values: []float64{0.05},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
}

func europeanCall(strike float64) models.PriceRequest {
	return models.PriceRequest{
		Product: "european",
		Params:  map[string]any{"payoff_type": "call", "strike": strike, "maturity": 1},
		Pricing: config.PricingConfig{Spot: 100, DiscountCurve: "USD", Volatility: 0.2},
	}
}

func (s *RouterSuite) TestHealthAndProducts() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/api/v1/products", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"name":"convertible"`)

	w = s.do(http.MethodGet, "/api/v1/nope", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestCurveLifecycle() {
	s.addUSD()
	w := s.do(http.MethodPost, "/api/v1/curves", models.CurveRequest{
		Name: "usd", Times: []float64{1, 2}, Values: []float64{0.05, 0.05},
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	var created models.CurveResponse
	s.decode(w, &created)
	s.Equal(models.CurveResponse{Name: "USD", Version: 2}, created)

	w = s.do(http.MethodPost, "/api/v1/curves", models.CurveRequest{
		Name: "EUR", Times: []float64{1, 2}, Values: []float64{0.05},
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("CONFIGURATION_ERROR", s.errorCode(w))

	w = s.do(http.MethodPost, "/api/v1/curves", models.CurveRequest{
		Name: "EUR", Times: []float64{1}, Values: []float64{0.05}, InputType: "par",
	})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/volatilities", models.CurveRequest{
		Name: "SPX", Times: []float64{1}, Values: []float64{0.2},
	})
	s.Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/v1/curves/usd?t=1&t2=2", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var q models.CurveQueryResponse
	s.decode(w, &q)
	s.Equal(uint64(2), q.Version)
	s.InDelta(math.Exp(-0.05), q.Discount, 1e-12)
	s.InDelta(0.05, q.SpotRate, 1e-12)
	s.Require().NotNil(q.FwdRate)
	s.InDelta(0.05, *q.FwdRate, 1e-12)

	w = s.do(http.MethodGet, "/api/v1/curves/usd?t=2&t2=1", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/v1/curves/gbp?t=1", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/v1/market", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var contents market.Contents
	s.decode(w, &contents)
	s.Equal([]string{"USD"}, contents.YieldCurves)
	s.Equal([]string{"SPX"}, contents.Volatilities)

	w = s.do(http.MethodDelete, "/api/v1/market", nil)
	s.Equal(http.StatusNoContent, w.Code)
	w = s.do(http.MethodGet, "/api/v1/curves/usd?t=1", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RouterSuite) TestPriceAndRetrieve() {
	s.addUSD()

	w := s.do(http.MethodPost, "/api/v1/price", europeanCall(100))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var first models.PriceResponse
	s.decode(w, &first)
	s.NotEmpty(first.ID)
	s.Equal("USD@1", first.Curve)
	s.Nil(first.Grid)
	s.Require().NotNil(first.Reference)
	s.InDelta(10.4506, first.Reference.Price, 1e-4)
	s.InDelta(first.Reference.Price, first.Price, 0.05)

	w = s.do(http.MethodGet, "/api/v1/price/"+first.ID, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var stored models.PriceResponse
	s.decode(w, &stored)
	s.Equal(first.ID, stored.ID)
	s.Require().NotNil(stored.Grid)
	s.Len(stored.Grid.Spots, 201)
	s.Equal([]float64{0}, stored.Grid.Times)

	w = s.do(http.MethodPost, "/api/v1/price", europeanCall(100))
	s.Require().Equal(http.StatusOK, w.Code)
	var again models.PriceResponse
	s.decode(w, &again)
	s.True(again.Cached)
	s.Equal(first.ID, again.ID)
	s.Equal(first.Price, again.Price)

	// A new curve version is a different market, so the cache is bypassed.
	s.addUSD()
	w = s.do(http.MethodPost, "/api/v1/price", europeanCall(100))
	s.Require().Equal(http.StatusOK, w.Code)
	var fresh models.PriceResponse
	s.decode(w, &fresh)
	s.False(fresh.Cached)
	s.Equal("USD@2", fresh.Curve)

	w = s.do(http.MethodGet, "/api/v1/price/not-an-id", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `lattice_pde_solves_total{outcome="ok",product="european"} 2`)
}

func (s *RouterSuite) TestPriceErrorStatuses() {
	s.addUSD()
	tooMany := int32(20)

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"malformed body", `{"product": `, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing product", models.PriceRequest{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown product", func() models.PriceRequest {
			r := europeanCall(100)
			r.Product = "cliquet"
			return r
		}(), http.StatusBadRequest, "CONFIGURATION_ERROR"},
		{"bad decimals", func() models.PriceRequest {
			r := europeanCall(100)
			r.Options.Decimals = &tooMany
			return r
		}(), http.StatusBadRequest, "CONFIGURATION_ERROR"},
		{"missing curve", func() models.PriceRequest {
			r := europeanCall(100)
			r.Pricing.DiscountCurve = "JPY"
			return r
		}(), http.StatusNotFound, "NOT_FOUND"},
		{"path only product", models.PriceRequest{
			Product: "asian_basket",
			Params:  map[string]any{"strike": 100, "fix_times": []float64{0.5, 1}, "quantities": []float64{1, 1}},
			Pricing: config.PricingConfig{Spot: 100, DiscountCurve: "USD", Volatility: 0.2},
		}, http.StatusUnprocessableEntity, "UNSUPPORTED_OPERATION"},
		{"coarse time steps", func() models.PriceRequest {
			r := europeanCall(100)
			r.Product = "american"
			r.PDE.NTimeSteps = 10
			return r
		}(), http.StatusUnprocessableEntity, "NUMERICAL_ERROR"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w := s.do(http.MethodPost, "/api/v1/price", tc.body)
			s.Equal(tc.status, w.Code, w.Body.String())
			s.Equal(tc.code, s.errorCode(w))
		})
	}
}

func (s *RouterSuite) TestBatch() {
	s.addUSD()

	w := s.do(http.MethodPost, "/api/v1/price/batch", models.BatchPriceRequest{
		Base: europeanCall(100),
		Variations: []models.Variation{
			{Name: "k90", Params: map[string]any{"strike": 90}},
			{Name: "adi", PDE: config.PDEConfig{Scheme: "adi"}},
			{Name: "k110", Params: map[string]any{"strike": 110}},
		},
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var out models.BatchPriceResponse
	s.decode(w, &out)
	s.Require().Len(out.Results, 3)

	s.Equal("k90", out.Results[0].Name)
	s.Equal("adi", out.Results[1].Name)
	s.Equal("k110", out.Results[2].Name)
	s.Require().NotNil(out.Results[0].Result)
	s.Require().NotNil(out.Results[2].Result)
	s.Greater(out.Results[0].Result.Price, out.Results[2].Result.Price)
	s.Nil(out.Results[1].Result)
	s.Require().NotNil(out.Results[1].Error)
	s.Equal("CONFIGURATION_ERROR", out.Results[1].Error.Code)

	w = s.do(http.MethodPost, "/api/v1/price/batch", models.BatchPriceRequest{Base: europeanCall(100)})
	s.Equal(http.StatusBadRequest, w.Code)
}
