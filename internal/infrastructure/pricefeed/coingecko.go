// Package pricefeed reads SUI exchange rates from the CoinGecko simple price
// API.
package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/infrastructure/httpclient"
)

const coinID = "sui"

// Client implements ports.PriceFeed.
type Client struct {
	http *httpclient.Client
}

// New returns a feed client. apiKey is optional; when set it is sent as the
// demo API key header.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	c := httpclient.New(baseURL, timeout)
	if apiKey != "" {
		c.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &Client{http: c}
}

// Rate returns how many units of currency one SUI is worth.
func (c *Client) Rate(ctx context.Context, currency string) (float64, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"ids": coinID, "vs_currencies": currency}).
		Get("/simple/price")
	if err := httpclient.CheckResponse("price feed", resp, err); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrConversionUnavailable, err)
	}

	v := gjson.GetBytes(resp.Body(), coinID+"."+currency)
	if !v.Exists() || v.Type != gjson.Number || v.Float() <= 0 {
		return 0, fmt.Errorf("%w: no %s rate in feed response", domain.ErrConversionUnavailable, currency)
	}
	return v.Float(), nil
}
