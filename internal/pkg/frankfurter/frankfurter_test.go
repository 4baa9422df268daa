// Copyright 2026 Peter Edge
//
// All rights reserved.

package frankfurter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/taxctl/taxctl/internal/standard/xtime"
)

func TestGetRates(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2021-03-01..2021-03-05", r.URL.Path)
		require.Equal(t, "USD", r.URL.Query().Get("base"))
		require.Equal(t, "ILS", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{
			"base": "USD",
			"start_date": "2021-03-01",
			"end_date": "2021-03-05",
			"rates": {
				"2021-03-01": {"ILS": 3.3164},
				"2021-03-02": {"ILS": 3.3096},
				"2021-03-05": {"ILS": 3.3327}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(ClientWithBaseURL(server.URL))
	rates, err := client.GetRates(
		context.Background(),
		"USD",
		"ILS",
		xtime.Date{Year: 2021, Month: time.March, Day: 1},
		xtime.Date{Year: 2021, Month: time.March, Day: 5},
	)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	rate, ok := rates[xtime.Date{Year: 2021, Month: time.March, Day: 2}]
	require.True(t, ok)
	require.True(t, rate.Equal(decimal.RequireFromString("3.3096")), "rate = %s", rate)
}

func TestGetRatesRetriesServerErrors(t *testing.T) {
	t.Parallel()
	var requestCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestCount.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"rates": {"2021-03-01": {"ILS": 3.3}}}`))
	}))
	defer server.Close()

	client := NewClient(ClientWithBaseURL(server.URL))
	rates, err := client.GetRates(
		context.Background(),
		"USD",
		"ILS",
		xtime.Date{Year: 2021, Month: time.March, Day: 1},
		xtime.Date{Year: 2021, Month: time.March, Day: 1},
	)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, int64(3), requestCount.Load())
}

func TestGetRatesDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()
	var requestCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "not found"}`))
	}))
	defer server.Close()

	client := NewClient(ClientWithBaseURL(server.URL))
	_, err := client.GetRates(
		context.Background(),
		"USD",
		"ILS",
		xtime.Date{Year: 2021, Month: time.March, Day: 1},
		xtime.Date{Year: 2021, Month: time.March, Day: 1},
	)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Equal(t, int64(1), requestCount.Load())
}
