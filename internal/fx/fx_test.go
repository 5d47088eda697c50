package fx

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUSD(t *testing.T) {
	table := NewTable("")

	usd, ok := table.ToUSD(100, "USD")
	require.True(t, ok)
	assert.Equal(t, 100.0, usd)

	rate, ok := table.Rate("TRY")
	require.True(t, ok)
	converted, ok := table.ToUSD(1299.90, "TRY")
	require.True(t, ok)
	assert.InDelta(t, 1299.90/rate, converted, 1e-9)

	// Unknown currency passes the amount through.
	same, ok := table.ToUSD(42, "XXX")
	require.True(t, ok)
	assert.Equal(t, 42.0, same)

	_, ok = table.ToUSD(math.NaN(), "USD")
	assert.False(t, ok)
	_, ok = table.ToUSD(math.Inf(1), "EUR")
	assert.False(t, ok)
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"USD":1,"EUR":0.5,"TRY":40.5,"BAD":-3}}`))
	}))
	defer srv.Close()

	table := NewTable(srv.URL)
	require.NoError(t, table.Refresh(context.Background()))

	eur, ok := table.Rate("EUR")
	require.True(t, ok)
	assert.Equal(t, 0.5, eur)

	try, ok := table.Rate("TRY")
	require.True(t, ok)
	assert.Equal(t, 40.5, try)

	// Negative rates are ignored.
	_, ok = table.Rate("BAD")
	assert.False(t, ok)

	usd, ok := table.Rate("USD")
	require.True(t, ok)
	assert.Equal(t, 1.0, usd)
}

func TestRefreshKeepsPreviousOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	table := NewTable(srv.URL)
	before, ok := table.Rate("EUR")
	require.True(t, ok)

	require.Error(t, table.Refresh(context.Background()))

	after, ok := table.Rate("EUR")
	require.True(t, ok)
	assert.Equal(t, before, after)
}
