package forex

import (
	"context"
	"fmt"

	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/kylycht/ratebot/service/transport"
	"github.com/rs/zerolog/log"
)

const (
	Name    string = "forex"                                      // provider name in logs and metrics
	BaseURL string = "https://api.exchangerate-api.com/v4/latest" // base URL of fiat rate API
)

// Response of GET {base}/{FROM}
type Response struct {
	Base    string             `json:"base"`
	Date    string             `json:"date"`
	Updated int64              `json:"time_last_updated"`
	Rates   map[string]float64 `json:"rates"`
}

type client struct {
	api *transport.Client // JSON transport bound to BaseURL
}

// New returns fiat rates provider backed by api.
// Nil api means default transport pointed to BaseURL.
func New(api *transport.Client) (service.FiatRates, error) {
	if api == nil {
		var err error
		if api, err = transport.New(Name, BaseURL); err != nil {
			return nil, err
		}
	}

	return &client{api: api}, nil
}

// FiatRate implements service.FiatRates.
// GET /{FROM}
func (f *client) FiatRate(ctx context.Context, from, to model.Symbol) (float64, error) {
	r := &Response{}

	err := f.api.Get(ctx, from.String(), nil, r)
	if err != nil {
		log.Error().Err(err).Str("from", from.String()).Str("to", to.String()).Msg("unable to fetch fiat rates")
		return 0, err
	}

	rate, ok := r.Rates[to.String()]
	if !ok {
		return 0, fmt.Errorf("%s has no %s quote for base %s: %w", Name, to, from, service.ErrRateNotFound)
	}

	return rate, nil
}
