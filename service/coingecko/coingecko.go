package coingecko

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/kylycht/ratebot/service/transport"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

const (
	Name         string = "coingecko"                        // provider name in logs and metrics
	BaseURL      string = "https://api.coingecko.com/api/v3" // base URL of crypto price API
	APIKeyHeader string = "x-cg-demo-api-key"                // header carrying optional demo key
)

type client struct {
	api     *transport.Client // JSON transport bound to BaseURL
	catalog *model.Catalog    // maps symbols to provider ids
}

// New returns crypto price provider backed by api.
// Nil api means default transport pointed to BaseURL.
func New(api *transport.Client, catalog *model.Catalog) (service.CryptoRates, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%s: catalog is required", Name)
	}

	if api == nil {
		var err error
		if api, err = transport.New(Name, BaseURL); err != nil {
			return nil, err
		}
	}

	return &client{api: api, catalog: catalog}, nil
}

// CryptoRate implements service.CryptoRates.
// GET /simple/price?ids=bitcoin&vs_currencies=usd
func (c *client) CryptoRate(ctx context.Context, crypto, fiat model.Symbol) (float64, error) {
	id, ok := c.catalog.ProviderID(crypto)
	if !ok {
		return 0, fmt.Errorf("%s: no provider id for %s: %w", Name, crypto, service.ErrUnsupportedCurrency)
	}

	vs := strings.ToLower(fiat.String())

	query := url.Values{}
	query.Set("ids", id)
	query.Set("vs_currencies", vs)

	var body strings.Builder

	err := c.api.Get(ctx, "simple/price", query, &body)
	if err != nil {
		log.Error().Err(err).Str("crypto", crypto.String()).Str("fiat", fiat.String()).Msg("unable to fetch crypto price")
		return 0, err
	}

	// {"bitcoin":{"usd":60000}}
	price := gjson.Get(body.String(), gjson.Escape(id)+"."+gjson.Escape(vs))
	if !price.Exists() || price.Type != gjson.Number {
		return 0, fmt.Errorf("%s has no %s price for %s: %w", Name, vs, id, service.ErrRateNotFound)
	}

	return price.Float(), nil
}
