package resolver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kylycht/ratebot/metrics"
	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/kylycht/ratebot/storage"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	defaultParallelism int64        = 4
	defaultTarget      model.Symbol = "RUB"
)

// DefaultPopular is the popular rates list used when none is configured
var DefaultPopular = []model.Symbol{"USD", "EUR", "UAH", "BTC", "ETH", "TRX", "TON"}

// errBadRate is returned when upstream quote is zero, negative, NaN or infinite
var errBadRate = errors.New("upstream quote is not a positive finite number")

// Resolver routes a currency pair to the fiat or crypto
// provider and derives reciprocal and cross rates
type Resolver struct {
	catalog       *model.Catalog      // supported currencies
	fiat          service.FiatRates   // fiat rate table provider
	crypto        service.CryptoRates // crypto spot price provider
	cache         storage.Cache       // optional quote cache
	cacheTTL      time.Duration       // lifetime of cached quotes
	metrics       *metrics.Metrics    // optional metrics
	popular       []model.Symbol      // symbols of the rates snapshot
	popularTarget model.Symbol        // target of the rates snapshot
	parallelism   int64               // max concurrent snapshot resolutions
	group         singleflight.Group  // collapses concurrent identical fetches
}

type Option func(*Resolver)

// WithCache enables caching of upstream quotes for ttl
func WithCache(c storage.Cache, ttl time.Duration) Option {
	return func(r *Resolver) {
		if c != nil && ttl > 0 {
			r.cache = c
			r.cacheTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithPopular overrides popular rates list and its target
func WithPopular(symbols []model.Symbol, target model.Symbol) Option {
	return func(r *Resolver) {
		if len(symbols) > 0 {
			r.popular = append([]model.Symbol(nil), symbols...)
		}
		if target != "" {
			r.popularTarget = target
		}
	}
}

func WithParallelism(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.parallelism = int64(n)
		}
	}
}

func New(catalog *model.Catalog, fiat service.FiatRates, crypto service.CryptoRates, opts ...Option) (*Resolver, error) {
	if catalog == nil || fiat == nil || crypto == nil {
		return nil, errors.New("resolver requires catalog, fiat and crypto providers")
	}

	r := &Resolver{
		catalog:       catalog,
		fiat:          fiat,
		crypto:        crypto,
		popular:       append([]model.Symbol(nil), DefaultPopular...),
		popularTarget: defaultTarget,
		parallelism:   defaultParallelism,
	}

	for _, opt := range opts {
		opt(r)
	}

	if !catalog.Supported(r.popularTarget) {
		return nil, fmt.Errorf("popular rates target %s is not supported", r.popularTarget)
	}
	for _, s := range r.popular {
		if !catalog.Supported(s) {
			return nil, fmt.Errorf("popular rates symbol %s is not supported", s)
		}
	}

	return r, nil
}

var _ service.Exchange = (*Resolver)(nil)

func (r *Resolver) Catalog() *model.Catalog {
	return r.catalog
}

func (r *Resolver) PopularTarget() model.Symbol {
	return r.popularTarget
}

// Resolve implements service.Exchange.
func (r *Resolver) Resolve(ctx context.Context, from, to model.Symbol) (model.ExchangeRate, error) {
	rate, err := r.resolve(ctx, from, to)
	if err != nil {
		log.Error().Err(err).Str("from", from.String()).Str("to", to.String()).Str("leg", legOf(err)).Msg("unable to resolve rate")
		return model.ExchangeRate{}, err
	}

	return rate, nil
}

// Convert implements service.Exchange.
func (r *Resolver) Convert(ctx context.Context, amount float64, from, to model.Symbol) (model.ConversionResult, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		r.metrics.ObserveConversion("invalid_amount")
		return model.ConversionResult{}, &service.RateError{
			Kind: service.ErrInvalidAmount,
			From: from,
			To:   to,
			Err:  fmt.Errorf("amount %v must be a positive finite number", amount),
		}
	}

	rate, err := r.resolve(ctx, from, to)
	if err != nil {
		r.metrics.ObserveConversion("error")
		log.Error().Err(err).Float64("amount", amount).Str("from", from.String()).Str("to", to.String()).Str("leg", legOf(err)).Msg("unable to convert")
		return model.ConversionResult{}, err
	}

	r.metrics.ObserveConversion("ok")

	return model.ConversionResult{
		From:      from,
		To:        to,
		Amount:    amount,
		Converted: amount * rate.Rate,
		Rate:      rate.Rate,
	}, nil
}

// PopularRates implements service.Exchange.
func (r *Resolver) PopularRates(ctx context.Context) []model.Quote {
	var (
		slots = make([]*model.Quote, len(r.popular))
		sem   = semaphore.NewWeighted(r.parallelism)
		wg    = sync.WaitGroup{}
	)

	for i, sym := range r.popular {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("unable to acquire semaphore")
			break
		}

		wg.Add(1)
		go func(i int, sym model.Symbol) {
			defer wg.Done()
			defer sem.Release(1)

			rate, err := r.resolve(ctx, sym, r.popularTarget)
			if err != nil {
				log.Warn().Err(err).Str("symbol", sym.String()).Str("target", r.popularTarget.String()).Msg("omitting symbol from popular rates")
				return
			}

			slots[i] = &model.Quote{Symbol: sym, Rate: rate.Rate}
		}(i, sym)
	}

	wg.Wait()

	quotes := make([]model.Quote, 0, len(slots))
	for _, q := range slots {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}

	return quotes
}

// CryptoToFiat quotes one unit of crypto in fiat
func (r *Resolver) CryptoToFiat(ctx context.Context, crypto, fiat model.Symbol) (model.ExchangeRate, error) {
	if err := r.checkLeg(crypto, fiat); err != nil {
		return model.ExchangeRate{}, err
	}

	rate, err := r.cryptoRate(ctx, crypto, fiat)
	if err != nil {
		return model.ExchangeRate{}, r.legError(err, crypto, fiat, service.LegCryptoToFiat)
	}

	return model.ExchangeRate{Base: crypto, Target: fiat, Rate: rate, Route: model.RouteCryptoToFiat}, nil
}

// FiatToCrypto quotes one unit of fiat in crypto,
// the strict reciprocal of CryptoToFiat
func (r *Resolver) FiatToCrypto(ctx context.Context, fiat, crypto model.Symbol) (model.ExchangeRate, error) {
	if err := r.checkLeg(crypto, fiat); err != nil {
		return model.ExchangeRate{}, err
	}

	rate, err := r.fiatToCrypto(ctx, fiat, crypto)
	if err != nil {
		return model.ExchangeRate{}, r.legError(err, fiat, crypto, service.LegFiatToCrypto)
	}

	return model.ExchangeRate{Base: fiat, Target: crypto, Rate: rate, Route: model.RouteFiatToCrypto}, nil
}

func (r *Resolver) checkLeg(crypto, fiat model.Symbol) error {
	switch {
	case !r.catalog.Supported(crypto) || !r.catalog.IsCrypto(crypto):
		return &service.RateError{
			Kind: service.ErrUnsupportedCurrency,
			From: crypto,
			To:   fiat,
			Err:  fmt.Errorf("%q is not a catalog crypto currency", crypto),
		}
	case !r.catalog.Supported(fiat) || r.catalog.IsCrypto(fiat):
		return &service.RateError{
			Kind: service.ErrUnsupportedCurrency,
			From: crypto,
			To:   fiat,
			Err:  fmt.Errorf("%q is not a catalog fiat currency", fiat),
		}
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context, from, to model.Symbol) (model.ExchangeRate, error) {
	route, rate, err := r.route(ctx, from, to)

	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
	}
	label := string(route)
	if label == "" {
		label = "none"
	}
	r.metrics.ObserveResolution(label, outcome)

	if err != nil {
		return model.ExchangeRate{}, err
	}

	return model.ExchangeRate{Base: from, Target: to, Rate: rate, Route: route}, nil
}

func (r *Resolver) route(ctx context.Context, from, to model.Symbol) (model.Route, float64, error) {
	for _, s := range []model.Symbol{from, to} {
		if !r.catalog.Supported(s) {
			return "", 0, &service.RateError{
				Kind: service.ErrUnsupportedCurrency,
				From: from,
				To:   to,
				Err:  fmt.Errorf("%q is not in the catalog", s),
			}
		}
	}

	if from == to {
		return model.RouteIdentity, 1.0, nil
	}

	fromCrypto := r.catalog.IsCrypto(from)
	toCrypto := r.catalog.IsCrypto(to)

	switch {
	case fromCrypto && !toCrypto:
		rate, err := r.cryptoRate(ctx, from, to)
		return model.RouteCryptoToFiat, rate, r.legError(err, from, to, service.LegCryptoToFiat)

	case !fromCrypto && toCrypto:
		rate, err := r.fiatToCrypto(ctx, from, to)
		return model.RouteFiatToCrypto, rate, r.legError(err, from, to, service.LegFiatToCrypto)

	case fromCrypto && toCrypto:
		// two independent quotes through USD, the result is an approximation
		fromUSD, err := r.cryptoRate(ctx, from, model.USD)
		if err != nil {
			return model.RouteCross, 0, r.legError(err, from, to, service.LegCrossFrom)
		}

		usdTo, err := r.fiatToCrypto(ctx, model.USD, to)
		if err != nil {
			return model.RouteCross, 0, r.legError(err, from, to, service.LegCrossTo)
		}

		rate := fromUSD * usdTo
		if err := validate(rate); err != nil {
			return model.RouteCross, 0, r.legError(err, from, to, service.LegCrossTo)
		}

		return model.RouteCross, rate, nil

	default:
		rate, err := r.fiatRate(ctx, from, to)
		return model.RouteFiat, rate, r.legError(err, from, to, service.LegFiat)
	}
}

func (r *Resolver) legError(err error, from, to model.Symbol, leg string) error {
	if err == nil {
		return nil
	}

	return &service.RateError{
		Kind: service.ErrRateUnavailable,
		From: from,
		To:   to,
		Leg:  leg,
		Err:  err,
	}
}

func (r *Resolver) fiatRate(ctx context.Context, from, to model.Symbol) (float64, error) {
	return r.quote(ctx, "fiat:"+from.String()+":"+to.String(), func(ctx context.Context) (float64, error) {
		return r.fiat.FiatRate(ctx, from, to)
	})
}

func (r *Resolver) cryptoRate(ctx context.Context, crypto, fiat model.Symbol) (float64, error) {
	return r.quote(ctx, "crypto:"+crypto.String()+":"+fiat.String(), func(ctx context.Context) (float64, error) {
		return r.crypto.CryptoRate(ctx, crypto, fiat)
	})
}

// fiatToCrypto returns how much crypto one unit of fiat buys
func (r *Resolver) fiatToCrypto(ctx context.Context, fiat, crypto model.Symbol) (float64, error) {
	price, err := r.cryptoRate(ctx, crypto, fiat)
	if err != nil {
		return 0, err
	}

	rate := 1.0 / price
	if err := validate(rate); err != nil {
		return 0, err
	}

	return rate, nil
}

// quote fetches upstream quote through cache,
// only valid quotes are cached
func (r *Resolver) quote(ctx context.Context, key string, fetch func(context.Context) (float64, error)) (float64, error) {
	if r.cache != nil {
		if rate, ok := r.cache.Get(ctx, key); ok && validate(rate) == nil {
			return rate, nil
		}
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		rate, err := fetch(ctx)
		if err != nil {
			return 0.0, err
		}

		if err := validate(rate); err != nil {
			return 0.0, fmt.Errorf("%s=%v: %w", key, rate, err)
		}

		if r.cache != nil {
			if err := r.cache.Set(ctx, key, rate, r.cacheTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("unable to cache quote")
			}
		}

		return rate, nil
	})
	if err != nil {
		return 0, err
	}

	return v.(float64), nil
}

func validate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return errBadRate
	}
	return nil
}

func legOf(err error) string {
	var rerr *service.RateError
	if errors.As(err, &rerr) {
		return rerr.Leg
	}
	return ""
}

func outcomeOf(err error) string {
	switch service.KindOf(err) {
	case service.ErrUnsupportedCurrency:
		return "unsupported"
	case service.ErrInvalidAmount:
		return "invalid_amount"
	default:
		return "unavailable"
	}
}
