// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package frankfurter provides a client for fetching exchange rates from frankfurter.dev.
//
// The frankfurter.dev API serves the European Central Bank reference rates.
// It is free and does not require an API key or authentication.
// See https://frankfurter.dev for usage details and rate limits.
package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/taxctl/taxctl/internal/pkg/backoff"
	"github.com/taxctl/taxctl/internal/standard/xtime"
)

// baseURL is the frankfurter.dev API base URL.
const baseURL = "https://api.frankfurter.dev/v1"

// Client is the interface for fetching exchange rates.
type Client interface {
	// GetRates fetches daily exchange rates for a date range.
	//
	// The returned map contains one entry per date the ECB published a rate
	// for the pair. Weekends and holidays have no entries.
	GetRates(ctx context.Context, baseCurrency string, quoteCurrency string, startDate xtime.Date, endDate xtime.Date) (map[xtime.Date]decimal.Decimal, error)
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*client)

// ClientWithHTTPClient sets the HTTP client to use for requests.
func ClientWithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// ClientWithLogger sets the logger for the client.
func ClientWithLogger(logger *slog.Logger) ClientOption {
	return func(c *client) {
		c.logger = logger
	}
}

// ClientWithBaseURL sets the API base URL. Used by tests to point at a local server.
func ClientWithBaseURL(url string) ClientOption {
	return func(c *client) {
		c.baseURL = url
	}
}

// NewClient creates a new exchange rate client with the given options.
func NewClient(options ...ClientOption) Client {
	c := &client{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		baseURL:    baseURL,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

func (c *client) GetRates(
	ctx context.Context,
	baseCurrency string,
	quoteCurrency string,
	startDate xtime.Date,
	endDate xtime.Date,
) (map[xtime.Date]decimal.Decimal, error) {
	// Build the request URL for the time series endpoint.
	reqURL := fmt.Sprintf("%s/%s..%s?base=%s&symbols=%s", c.baseURL, startDate, endDate, baseCurrency, quoteCurrency)
	c.logger.Debug("fetching exchange rates", "url", reqURL)
	// Retry transient failures (network errors, 5xx responses).
	body, err := backoff.Retry(ctx, backoff.DefaultPolicy, func(ctx context.Context, attempt int) ([]byte, bool, error) {
		return c.getOnce(ctx, reqURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching rates %s/%s: %w", baseCurrency, quoteCurrency, err)
	}
	var frankfurterResp frankfurterResponse
	if err := json.Unmarshal(body, &frankfurterResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	// Convert the nested map to a flat date->rate map.
	result := make(map[xtime.Date]decimal.Decimal, len(frankfurterResp.Rates))
	for dateString, rates := range frankfurterResp.Rates {
		rate, ok := rates[quoteCurrency]
		if !ok {
			continue
		}
		date, err := xtime.ParseDate(dateString)
		if err != nil {
			return nil, fmt.Errorf("parsing rate date %q: %w", dateString, err)
		}
		rateDecimal, err := decimal.NewFromString(rate.String())
		if err != nil {
			return nil, fmt.Errorf("parsing rate %q for %s: %w", rate.String(), dateString, err)
		}
		result[date] = rateDecimal
	}
	return result, nil
}

// getOnce performs a single GET request, reporting whether a failure is retryable.
func (c *client) getOnce(ctx context.Context, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are retryable.
		return nil, true, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		// Server errors are retryable, client errors are not.
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return body, false, nil
}

// *** PRIVATE ***

// frankfurterResponse is the JSON response from the frankfurter.dev API for time series.
// Rates are decoded as json.Number to avoid float64 round-tripping.
type frankfurterResponse struct {
	Rates map[string]map[string]json.Number `json:"rates"`
}
