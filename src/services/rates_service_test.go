package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jotbill/jotbill-server/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshFetchesAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"CNY","rates":{"CNY":1,"USD":0.14,"EUR":0.13}}`))
	}))
	defer server.Close()

	st := newTestStore(t)
	svc := NewRatesService(st, server.URL, "CNY", time.Second)
	ctx := context.Background()

	data, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, data.Rates["USD"].Equal(decimal.RequireFromString("0.14")))
	assert.Greater(t, data.LastUpdated, int64(0))

	persisted := st.RatesCache(ctx)
	require.NotNil(t, persisted, "last good table saved for later fallback")
	assert.True(t, persisted.Rates["EUR"].Equal(decimal.RequireFromString("0.13")))
}

func TestRefreshFallsBackToPersistedThenDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	ctx := context.Background()

	// No persisted copy: the built-in table answers.
	st := newTestStore(t)
	svc := NewRatesService(st, server.URL, "CNY", time.Second)
	data, err := svc.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, data.Rates["JPY"].Equal(decimal.RequireFromString("20.8")))
	assert.EqualValues(t, 0, data.LastUpdated, "defaults are marked as never fetched")

	// With a persisted copy, it wins over the defaults.
	st2 := newTestStore(t)
	require.NoError(t, st2.SaveRatesCache(ctx, models.ExchangeRatesData{
		Rates:       map[string]decimal.Decimal{"CNY": decimal.NewFromInt(1), "USD": decimal.RequireFromString("0.15")},
		LastUpdated: 1700000000000,
	}))
	svc2 := NewRatesService(st2, server.URL, "CNY", time.Second)
	data2, err := svc2.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, data2.Rates["USD"].Equal(decimal.RequireFromString("0.15")))
	assert.EqualValues(t, 1700000000000, data2.LastUpdated)
}

func TestRateMath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"CNY","rates":{"CNY":1,"USD":0.14,"HKD":1.08}}`))
	}))
	defer server.Close()

	svc := NewRatesService(newTestStore(t), server.URL, "CNY", time.Second)
	ctx := context.Background()

	// Identity is exactly 1, never computed.
	rate, err := svc.Rate(ctx, "USD", "USD")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	rate, err = svc.Rate(ctx, "USD", "CNY")
	require.NoError(t, err)
	assert.True(t, rate.Round(6).Equal(decimal.RequireFromString("7.142857")))

	rate, err = svc.Rate(ctx, "USD", "HKD")
	require.NoError(t, err)
	assert.True(t, rate.Round(6).Equal(decimal.RequireFromString("7.714286")))

	_, err = svc.Rate(ctx, "XXX", "CNY")
	require.Error(t, err)

	converted, usedRate, err := svc.Convert(ctx, decimal.RequireFromString("10"), "USD", "CNY")
	require.NoError(t, err)
	assert.True(t, converted.Equal(decimal.RequireFromString("10").Mul(usedRate)), "unrounded")
}

func TestCurrentServesCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"result":"success","base_code":"CNY","rates":{"CNY":1,"USD":0.14}}`))
	}))
	defer server.Close()

	svc := NewRatesService(newTestStore(t), server.URL, "CNY", time.Second)
	ctx := context.Background()

	first := svc.Current(ctx)
	second := svc.Current(ctx)
	assert.Equal(t, 1, calls, "second read comes from the in-process cache")
	assert.True(t, first.Rates["USD"].Equal(second.Rates["USD"]))
}

func TestFetchRejectsWrongBase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1}}`))
	}))
	defer server.Close()

	svc := NewRatesService(newTestStore(t), server.URL, "CNY", time.Second)
	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
}
