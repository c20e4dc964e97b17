package service

import (
	"errors"
	"fmt"

	"github.com/kylycht/ratebot/model"
)

// Failure kinds reported by the exchange.
// Use errors.Is to test for them.
var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrRateUnavailable     = errors.New("rate unavailable")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// ErrRateNotFound is returned by providers when
// the upstream answered but did not quote the pair
var ErrRateNotFound = errors.New("rate not found in upstream response")

// Legs of a resolution, used for diagnostics
const (
	LegFiat         = "fiat"
	LegCryptoToFiat = "crypto-to-fiat"
	LegFiatToCrypto = "fiat-to-crypto"
	LegCrossFrom    = "cross:from-usd"
	LegCrossTo      = "cross:usd-to"
)

// RateError carries failure kind together with
// the pair and the leg that failed
type RateError struct {
	Kind error        // one of ErrUnsupportedCurrency, ErrRateUnavailable, ErrInvalidAmount
	From model.Symbol // requested base
	To   model.Symbol // requested target
	Leg  string       // failed leg, empty when no upstream was involved
	Err  error        // underlying cause, may be nil
}

func (e *RateError) Error() string {
	msg := fmt.Sprintf("%s/%s: %v", e.From, e.To, e.Kind)
	if e.Leg != "" {
		msg += " (leg " + e.Leg + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns failure kind of err,
// ErrRateUnavailable for anything unclassified
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnsupportedCurrency):
		return ErrUnsupportedCurrency
	case errors.Is(err, ErrInvalidAmount):
		return ErrInvalidAmount
	default:
		return ErrRateUnavailable
	}
}
