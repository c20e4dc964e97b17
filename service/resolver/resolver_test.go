package resolver

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kylycht/ratebot/metrics"
	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

type stubFiat struct {
	rates map[model.Symbol]map[model.Symbol]float64
	calls int32
}

func (s *stubFiat) FiatRate(_ context.Context, from, to model.Symbol) (float64, error) {
	atomic.AddInt32(&s.calls, 1)
	if rate, ok := s.rates[from][to]; ok {
		return rate, nil
	}
	return 0, errUpstream
}

type stubCrypto struct {
	prices map[model.Symbol]map[model.Symbol]float64
	calls  int32
	delay  time.Duration
}

func (s *stubCrypto) CryptoRate(ctx context.Context, crypto, fiat model.Symbol) (float64, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if price, ok := s.prices[crypto][fiat]; ok {
		return price, nil
	}
	return 0, service.ErrRateNotFound
}

type mapCache struct {
	mu    sync.Mutex
	store map[string]float64
}

func newMapCache() *mapCache {
	return &mapCache{store: map[string]float64{}}
}

func (c *mapCache) Get(_ context.Context, key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, rate float64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = rate
	return nil
}

func newStubs() (*stubFiat, *stubCrypto) {
	fiat := &stubFiat{rates: map[model.Symbol]map[model.Symbol]float64{
		"USD": {"RUB": 90, "EUR": 0.9, "UAH": 41},
		"EUR": {"RUB": 100, "UAH": 45},
		"UAH": {"RUB": 2.2},
	}}
	crypto := &stubCrypto{prices: map[model.Symbol]map[model.Symbol]float64{
		"BTC":  {"USD": 60000, "RUB": 5400000},
		"TON":  {"USD": 3, "RUB": 270},
		"ETH":  {"USD": 3000, "UAH": -3000},
		"USDT": {"USD": 1, "UAH": 41},
		"TRX":  {"USD": 0},
	}}
	return fiat, crypto
}

func newTestResolver(t *testing.T, opts ...Option) (*Resolver, *stubFiat, *stubCrypto) {
	t.Helper()

	fiat, crypto := newStubs()
	r, err := New(model.MustCatalog(model.DefaultCurrencies), fiat, crypto, opts...)
	require.NoError(t, err)

	return r, fiat, crypto
}

func TestResolve_Identity(t *testing.T) {
	r, fiat, crypto := newTestResolver(t)

	for _, s := range r.Catalog().Symbols() {
		rate, err := r.Resolve(context.Background(), s, s)
		require.NoError(t, err, s)
		assert.Equal(t, 1.0, rate.Rate, s)
		assert.Equal(t, model.RouteIdentity, rate.Route, s)
	}

	assert.Zero(t, atomic.LoadInt32(&fiat.calls))
	assert.Zero(t, atomic.LoadInt32(&crypto.calls))
}

func TestResolve_Unsupported(t *testing.T) {
	r, fiat, crypto := newTestResolver(t)

	for _, pair := range [][2]model.Symbol{{"XYZ", "USD"}, {"USD", "XYZ"}, {"XYZ", "XYZ"}, {"GBP", "BTC"}} {
		_, err := r.Resolve(context.Background(), pair[0], pair[1])
		assert.ErrorIs(t, err, service.ErrUnsupportedCurrency, pair)
	}

	assert.Zero(t, atomic.LoadInt32(&fiat.calls))
	assert.Zero(t, atomic.LoadInt32(&crypto.calls))
}

func TestResolve_Routes(t *testing.T) {
	tests := []struct {
		from, to model.Symbol
		rate     float64
		route    model.Route
	}{
		{"USD", "RUB", 90, model.RouteFiat},
		{"EUR", "UAH", 45, model.RouteFiat},
		{"BTC", "USD", 60000, model.RouteCryptoToFiat},
		{"TON", "RUB", 270, model.RouteCryptoToFiat},
		{"USD", "BTC", 1.0 / 60000, model.RouteFiatToCrypto},
		{"UAH", "USDT", 1.0 / 41, model.RouteFiatToCrypto},
		{"BTC", "TON", 20000, model.RouteCross},
		{"TON", "ETH", 0.001, model.RouteCross},
	}

	r, _, _ := newTestResolver(t)

	for _, tc := range tests {
		t.Run(string(tc.from+"_"+tc.to), func(t *testing.T) {
			rate, err := r.Resolve(context.Background(), tc.from, tc.to)
			require.NoError(t, err)
			assert.InDelta(t, tc.rate, rate.Rate, tc.rate*1e-12)
			assert.Equal(t, tc.route, rate.Route)
			assert.Equal(t, tc.from, rate.Base)
			assert.Equal(t, tc.to, rate.Target)
		})
	}
}

func TestResolve_Unavailable(t *testing.T) {
	tests := []struct {
		name     string
		from, to model.Symbol
		leg      string
	}{
		{"fiat missing", "RUB", "EUR", service.LegFiat},
		{"crypto missing", "ETH", "RUB", service.LegCryptoToFiat},
		{"zero price reciprocal", "USD", "TRX", service.LegFiatToCrypto},
		{"zero price direct", "TRX", "USD", service.LegCryptoToFiat},
		{"cross first leg", "TRX", "BTC", service.LegCrossFrom},
		{"cross second leg", "BTC", "TRX", service.LegCrossTo},
	}

	r, _, _ := newTestResolver(t)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tc.from, tc.to)
			require.ErrorIs(t, err, service.ErrRateUnavailable)

			var rerr *service.RateError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tc.leg, rerr.Leg)
			assert.Equal(t, tc.from, rerr.From)
			assert.Equal(t, tc.to, rerr.To)
		})
	}
}

func TestResolve_NonFiniteQuote(t *testing.T) {
	fiat := &stubFiat{rates: map[model.Symbol]map[model.Symbol]float64{
		"USD": {"EUR": math.Inf(1), "RUB": math.NaN(), "UAH": -1},
	}}
	_, crypto := newStubs()

	r, err := New(model.MustCatalog(model.DefaultCurrencies), fiat, crypto)
	require.NoError(t, err)

	for _, to := range []model.Symbol{"EUR", "RUB", "UAH"} {
		_, err := r.Resolve(context.Background(), "USD", to)
		assert.ErrorIs(t, err, service.ErrRateUnavailable, to)
	}
}

func TestConvert(t *testing.T) {
	r, _, _ := newTestResolver(t)

	res, err := r.Convert(context.Background(), 100, "USD", "RUB")
	require.NoError(t, err)
	assert.Equal(t, model.ConversionResult{From: "USD", To: "RUB", Amount: 100, Converted: 9000, Rate: 90}, res)

	res, err = r.Convert(context.Background(), 0.5, "BTC", "TON")
	require.NoError(t, err)
	assert.InDelta(t, 10000, res.Converted, 1e-6)
}

func TestConvert_InvalidAmount(t *testing.T) {
	r, fiat, crypto := newTestResolver(t)

	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := r.Convert(context.Background(), amount, "USD", "RUB")
		assert.ErrorIs(t, err, service.ErrInvalidAmount, amount)
	}

	assert.Zero(t, atomic.LoadInt32(&fiat.calls))
	assert.Zero(t, atomic.LoadInt32(&crypto.calls))
}

func TestConvert_PropagatesKind(t *testing.T) {
	r, _, _ := newTestResolver(t)

	_, err := r.Convert(context.Background(), 10, "USD", "GBP")
	assert.ErrorIs(t, err, service.ErrUnsupportedCurrency)

	_, err = r.Convert(context.Background(), 10, "RUB", "EUR")
	assert.ErrorIs(t, err, service.ErrRateUnavailable)
}

func TestPopularRates(t *testing.T) {
	r, _, crypto := newTestResolver(t, WithParallelism(2))
	crypto.delay = 10 * time.Millisecond

	quotes := r.PopularRates(context.Background())

	// ETH and TRX have no RUB price
	assert.Equal(t, []model.Quote{
		{Symbol: "USD", Rate: 90},
		{Symbol: "EUR", Rate: 100},
		{Symbol: "UAH", Rate: 2.2},
		{Symbol: "BTC", Rate: 5400000},
		{Symbol: "TON", Rate: 270},
	}, quotes)
	assert.Equal(t, model.Symbol("RUB"), r.PopularTarget())
}

func TestPopularRates_AllFail(t *testing.T) {
	fiat := &stubFiat{}
	crypto := &stubCrypto{}

	r, err := New(model.MustCatalog(model.DefaultCurrencies), fiat, crypto)
	require.NoError(t, err)

	quotes := r.PopularRates(context.Background())
	assert.NotNil(t, quotes)
	assert.Empty(t, quotes)
}

func TestPopularRates_Custom(t *testing.T) {
	r, _, _ := newTestResolver(t, WithPopular([]model.Symbol{"BTC", "USDT"}, "USD"))

	assert.Equal(t, []model.Quote{
		{Symbol: "BTC", Rate: 60000},
		{Symbol: "USDT", Rate: 1},
	}, r.PopularRates(context.Background()))
}

func TestNew_Validation(t *testing.T) {
	fiat, crypto := newStubs()
	catalog := model.MustCatalog(model.DefaultCurrencies)

	_, err := New(nil, fiat, crypto)
	assert.Error(t, err)

	_, err = New(catalog, fiat, crypto, WithPopular(nil, "GBP"))
	assert.Error(t, err)

	_, err = New(catalog, fiat, crypto, WithPopular([]model.Symbol{"USD", "DOGE"}, ""))
	assert.Error(t, err)
}

func TestResolve_Cache(t *testing.T) {
	c := newMapCache()
	r, fiat, crypto := newTestResolver(t, WithCache(c, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), "USD", "RUB")
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), "USD", "BTC")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&fiat.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&crypto.calls))

	// only raw upstream quotes are stored, never derived reciprocals
	assert.Equal(t, map[string]float64{
		"fiat:USD:RUB":   90,
		"crypto:BTC:USD": 60000,
	}, c.store)
}

func TestResolve_CacheSkipsFailures(t *testing.T) {
	c := newMapCache()
	r, _, crypto := newTestResolver(t, WithCache(c, time.Minute))

	_, err := r.Resolve(context.Background(), "USD", "TRX")
	require.Error(t, err)
	_, err = r.Resolve(context.Background(), "USD", "TRX")
	require.Error(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&crypto.calls))
	assert.Empty(t, c.store)
}

func TestResolve_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r, _, _ := newTestResolver(t, WithMetrics(m))

	_, _ = r.Resolve(context.Background(), "BTC", "TON")
	_, _ = r.Resolve(context.Background(), "USD", "XYZ")
	_, _ = r.Convert(context.Background(), 1, "USD", "RUB")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("cross", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("none", "unsupported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversionsTotal.WithLabelValues("ok")))
}

func TestCryptoToFiat(t *testing.T) {
	r, _, _ := newTestResolver(t)

	rate, err := r.CryptoToFiat(context.Background(), "BTC", "USD")
	require.NoError(t, err)
	assert.Equal(t, model.ExchangeRate{Base: "BTC", Target: "USD", Rate: 60000, Route: model.RouteCryptoToFiat}, rate)

	_, err = r.CryptoToFiat(context.Background(), "ETH", "RUB")
	assert.ErrorIs(t, err, service.ErrRateUnavailable)
	assert.Equal(t, service.LegCryptoToFiat, legOf(err))
}

func TestFiatToCrypto(t *testing.T) {
	r, _, _ := newTestResolver(t)

	rate, err := r.FiatToCrypto(context.Background(), "USD", "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1.0/60000, rate.Rate)
	assert.Equal(t, model.RouteFiatToCrypto, rate.Route)

	// zero price never becomes +Inf
	_, err = r.FiatToCrypto(context.Background(), "USD", "TRX")
	assert.ErrorIs(t, err, service.ErrRateUnavailable)
}

func TestLeg_WrongKinds(t *testing.T) {
	r, fiat, crypto := newTestResolver(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"fiat as crypto", func() error { _, err := r.CryptoToFiat(context.Background(), "USD", "RUB"); return err }},
		{"crypto as fiat", func() error { _, err := r.CryptoToFiat(context.Background(), "BTC", "TON"); return err }},
		{"unknown crypto", func() error { _, err := r.FiatToCrypto(context.Background(), "USD", "DOGE"); return err }},
		{"unknown fiat", func() error { _, err := r.FiatToCrypto(context.Background(), "XYZ", "BTC"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), service.ErrUnsupportedCurrency)
		})
	}

	assert.Zero(t, atomic.LoadInt32(&fiat.calls))
	assert.Zero(t, atomic.LoadInt32(&crypto.calls))
}

func TestFiatToCrypto_NegativePrice(t *testing.T) {
	r, _, _ := newTestResolver(t)

	rate, err := r.FiatToCrypto(context.Background(), "UAH", "ETH")
	assert.ErrorIs(t, err, service.ErrRateUnavailable)
	assert.Zero(t, rate.Rate)

	resolved, err := r.Resolve(context.Background(), "UAH", "ETH")
	require.ErrorIs(t, err, service.ErrRateUnavailable)
	assert.Equal(t, service.LegFiatToCrypto, legOf(err))
	assert.Zero(t, resolved.Rate)

	direct, err := r.CryptoToFiat(context.Background(), "ETH", "UAH")
	assert.ErrorIs(t, err, service.ErrRateUnavailable)
	assert.Zero(t, direct.Rate)
}
