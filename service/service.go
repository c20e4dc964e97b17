package service

import (
	"context"

	"github.com/kylycht/ratebot/model"
)

// FiatRates describes an upstream
// fiat to fiat rate table provider
type FiatRates interface {
	// FiatRate returns how many units of `to`
	// one unit of `from` buys
	FiatRate(ctx context.Context, from, to model.Symbol) (float64, error)
}

// CryptoRates describes an upstream
// crypto spot price provider
type CryptoRates interface {
	// CryptoRate returns price of one unit
	// of crypto denominated in fiat
	CryptoRate(ctx context.Context, crypto, fiat model.Symbol) (float64, error)
}

// Exchange interface describes
// the operations consumed by presentation layers
type Exchange interface {
	// Resolve returns exchange rate
	// for specified pair
	Resolve(ctx context.Context, from, to model.Symbol) (model.ExchangeRate, error)

	// Convert applies resolved rate to amount
	Convert(ctx context.Context, amount float64, from, to model.Symbol) (model.ConversionResult, error)

	// PopularRates returns snapshot of configured symbols
	// against configured target, failed symbols omitted
	PopularRates(ctx context.Context) []model.Quote

	// PopularTarget returns the snapshot target currency
	PopularTarget() model.Symbol

	// Catalog returns supported currencies
	Catalog() *model.Catalog
}
