package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := NewCatalog(DefaultCurrencies)
	require.NoError(t, err)

	assert.Equal(t, []Symbol{"USD", "EUR", "RUB", "UAH", "BTC", "ETH", "USDT", "TRX", "TON"}, c.Symbols())

	for _, s := range []Symbol{"BTC", "ETH", "USDT", "TRX", "TON"} {
		assert.True(t, c.IsCrypto(s), s)
	}
	for _, s := range []Symbol{"USD", "EUR", "RUB", "UAH"} {
		assert.False(t, c.IsCrypto(s), s)
	}

	id, ok := c.ProviderID("TON")
	assert.True(t, ok)
	assert.Equal(t, "the-open-network", id)

	_, ok = c.ProviderID("USD")
	assert.False(t, ok)
}

func TestCatalog_UnknownSymbolIsFiat(t *testing.T) {
	c := MustCatalog(DefaultCurrencies)

	assert.False(t, c.Supported("XYZ"))
	assert.False(t, c.IsCrypto("XYZ"))
	assert.Equal(t, "XYZ", c.Name("XYZ"))
}

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name       string
		currencies []Currency
	}{
		{"empty", nil},
		{"lowercase", []Currency{{Symbol: "usd", Kind: Fiat}}},
		{"too long", []Currency{{Symbol: "DOLLAR", Kind: Fiat}}},
		{"duplicate", []Currency{{Symbol: "USD", Kind: Fiat}, {Symbol: "USD", Kind: Fiat}}},
		{"crypto without id", []Currency{{Symbol: "USD", Kind: Fiat}, {Symbol: "BTC", Kind: Crypto}}},
		{"crypto without usd", []Currency{{Symbol: "EUR", Kind: Fiat}, {Symbol: "BTC", Kind: Crypto, ProviderID: "bitcoin"}}},
		{"unknown kind", []Currency{{Symbol: "USD", Kind: kind("METAL")}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.currencies)
			assert.Error(t, err)
		})
	}
}

func TestNewCatalog_NameDefaultsToSymbol(t *testing.T) {
	c := MustCatalog([]Currency{{Symbol: "GBP", Kind: Fiat}})
	assert.Equal(t, "GBP", c.Name("GBP"))
}

func TestParseSymbol(t *testing.T) {
	s, err := ParseSymbol(" usdt ")
	require.NoError(t, err)
	assert.Equal(t, Symbol("USDT"), s)

	for _, in := range []string{"", "US", "DOLLAR", "U5D"} {
		_, err := ParseSymbol(in)
		assert.Error(t, err, in)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("crypto")
	require.NoError(t, err)
	assert.Equal(t, Crypto, k)

	_, err = ParseKind("stock")
	assert.Error(t, err)
}
