package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// unexported type to disable any new kinds
type kind string

const (
	Fiat   kind = kind("FIAT")   // Fiat represents government issued currency
	Crypto kind = kind("CRYPTO") // Crypto represents crypto currency
)

// ParseKind converts stored kind value
// into one of the known kinds
func ParseKind(s string) (kind, error) {
	switch kind(strings.ToUpper(s)) {
	case Fiat:
		return Fiat, nil
	case Crypto:
		return Crypto, nil
	}
	return "", fmt.Errorf("unknown currency kind: %q", s)
}

// Symbol is an uppercase currency code, e.g. USD or USDT
type Symbol string

// USD is the anchor used for crypto to crypto cross rates
const USD Symbol = "USD"

var symbolRe = regexp.MustCompile(`^[A-Z]{3,4}$`)

// ParseSymbol normalizes user input into a Symbol.
// It does not check catalog membership.
func ParseSymbol(s string) (Symbol, error) {
	sym := Symbol(strings.ToUpper(strings.TrimSpace(s)))
	if !symbolRe.MatchString(string(sym)) {
		return "", fmt.Errorf("malformed currency symbol: %q", s)
	}
	return sym, nil
}

func (s Symbol) String() string {
	return string(s)
}

// Currency holds information
// on the operating currency
type Currency struct {
	Name       string // Display name of the currency
	Symbol     Symbol // Symbol of the currency
	Kind       kind   // Currency kind
	ProviderID string // Identifier at the crypto price provider, empty for fiat
}

// Catalog is the closed set of supported currencies.
// It is read-only after construction.
type Catalog struct {
	order []Symbol
	index map[Symbol]Currency
}

// NewCatalog validates currencies and builds a catalog
// preserving the given order
func NewCatalog(currencies []Currency) (*Catalog, error) {
	if len(currencies) == 0 {
		return nil, errors.New("catalog is empty")
	}

	c := &Catalog{
		order: make([]Symbol, 0, len(currencies)),
		index: make(map[Symbol]Currency, len(currencies)),
	}

	hasCrypto := false
	for _, cur := range currencies {
		if !symbolRe.MatchString(string(cur.Symbol)) {
			return nil, fmt.Errorf("malformed currency symbol: %q", cur.Symbol)
		}
		if _, dup := c.index[cur.Symbol]; dup {
			return nil, fmt.Errorf("duplicate currency symbol: %s", cur.Symbol)
		}
		switch cur.Kind {
		case Crypto:
			if cur.ProviderID == "" {
				return nil, fmt.Errorf("crypto currency %s has no provider id", cur.Symbol)
			}
			hasCrypto = true
		case Fiat:
		default:
			return nil, fmt.Errorf("currency %s has unknown kind %q", cur.Symbol, cur.Kind)
		}
		if cur.Name == "" {
			cur.Name = string(cur.Symbol)
		}

		c.order = append(c.order, cur.Symbol)
		c.index[cur.Symbol] = cur
	}

	// crypto/crypto pairs are quoted through USD
	if usd, ok := c.index[USD]; hasCrypto && (!ok || usd.Kind != Fiat) {
		return nil, errors.New("catalog with crypto currencies must contain USD as fiat")
	}

	return c, nil
}

// MustCatalog is NewCatalog that panics on error
func MustCatalog(currencies []Currency) *Catalog {
	c, err := NewCatalog(currencies)
	if err != nil {
		panic(err)
	}
	return c
}

// Supported reports whether symbol is part of the catalog
func (c *Catalog) Supported(s Symbol) bool {
	_, ok := c.index[s]
	return ok
}

// IsCrypto reports whether symbol is a known crypto currency.
// Unknown symbols are treated as fiat.
func (c *Catalog) IsCrypto(s Symbol) bool {
	cur, ok := c.index[s]
	return ok && cur.Kind == Crypto
}

// ProviderID returns crypto provider identifier for symbol
func (c *Catalog) ProviderID(s Symbol) (string, bool) {
	cur, ok := c.index[s]
	if !ok || cur.Kind != Crypto {
		return "", false
	}
	return cur.ProviderID, true
}

// Lookup returns catalog entry for symbol
func (c *Catalog) Lookup(s Symbol) (Currency, bool) {
	cur, ok := c.index[s]
	return cur, ok
}

// Name returns display name, falling back to the symbol itself
func (c *Catalog) Name(s Symbol) string {
	if cur, ok := c.index[s]; ok {
		return cur.Name
	}
	return string(s)
}

// Symbols returns all symbols in catalog order
func (c *Catalog) Symbols() []Symbol {
	out := make([]Symbol, len(c.order))
	copy(out, c.order)
	return out
}

// Currencies returns all entries in catalog order
func (c *Catalog) Currencies() []Currency {
	out := make([]Currency, 0, len(c.order))
	for _, s := range c.order {
		out = append(out, c.index[s])
	}
	return out
}

// DefaultCurrencies is the built-in catalog
var DefaultCurrencies = []Currency{
	{Symbol: "USD", Name: "🇺🇸 US Dollar", Kind: Fiat},
	{Symbol: "EUR", Name: "🇪🇺 Euro", Kind: Fiat},
	{Symbol: "RUB", Name: "🇷🇺 Russian Ruble", Kind: Fiat},
	{Symbol: "UAH", Name: "🇺🇦 Ukrainian Hryvnia", Kind: Fiat},
	{Symbol: "BTC", Name: "₿ Bitcoin", Kind: Crypto, ProviderID: "bitcoin"},
	{Symbol: "ETH", Name: "⟠ Ethereum", Kind: Crypto, ProviderID: "ethereum"},
	{Symbol: "USDT", Name: "₮ Tether", Kind: Crypto, ProviderID: "tether"},
	{Symbol: "TRX", Name: "🔺 Tron", Kind: Crypto, ProviderID: "tron"},
	{Symbol: "TON", Name: "💎 Toncoin", Kind: Crypto, ProviderID: "the-open-network"},
}
