package model

import "fmt"

// Route tells how a rate was obtained
type Route string

const (
	RouteIdentity     Route = "identity"       // same currency, no lookup
	RouteFiat         Route = "fiat"           // fiat rate table
	RouteCryptoToFiat Route = "crypto-to-fiat" // spot price
	RouteFiatToCrypto Route = "fiat-to-crypto" // reciprocal of spot price
	RouteCross        Route = "cross"          // crypto -> USD -> crypto
)

// ExchangeRate holds information
// for given exchange rate
type ExchangeRate struct {
	Base   Symbol  `json:"base"`   // Base currency
	Target Symbol  `json:"target"` // Target currency
	Rate   float64 `json:"rate"`   // 1 Base equals Rate Target
	Route  Route   `json:"route"`  // How the rate was resolved
}

func (r ExchangeRate) String() string {
	return fmt.Sprintf("%s/%s=%g (%s)", r.Base, r.Target, r.Rate, r.Route)
}

// ConversionResult is an amount converted with a single rate
type ConversionResult struct {
	From      Symbol  `json:"from"`
	To        Symbol  `json:"to"`
	Amount    float64 `json:"amount"`
	Converted float64 `json:"result"`
	Rate      float64 `json:"rate"`
}

// Quote is a single entry of a rates snapshot
type Quote struct {
	Symbol Symbol  `json:"symbol"`
	Rate   float64 `json:"rate"`
}
