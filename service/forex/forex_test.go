package forex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kylycht/ratebot/service"
	"github.com/kylycht/ratebot/service/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) service.FiatRates {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	api, err := transport.New(Name, srv.URL+"/v4/latest")
	require.NoError(t, err)

	c, err := New(api)
	require.NoError(t, err)

	return c
}

func TestFiatRate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/latest/USD", r.URL.Path)
		w.Write([]byte(`{"base":"USD","date":"2024-06-01","rates":{"USD":1,"RUB":90.5,"EUR":0.92}}`))
	})

	rate, err := c.FiatRate(context.Background(), "USD", "RUB")
	require.NoError(t, err)
	assert.Equal(t, 90.5, rate)
}

func TestFiatRate_MissingTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"EUR":0.92}}`))
	})

	_, err := c.FiatRate(context.Background(), "USD", "UAH")
	assert.ErrorIs(t, err, service.ErrRateNotFound)
}

func TestFiatRate_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.FiatRate(context.Background(), "XYZ", "USD")
	var serr *transport.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusNotFound, serr.Code)
}

func TestFiatRate_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":`))
	})

	_, err := c.FiatRate(context.Background(), "USD", "EUR")
	assert.Error(t, err)
}
