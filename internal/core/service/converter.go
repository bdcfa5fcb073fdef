package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/suiichiba/marketplace/internal/api/metrics"
	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

type cachedRate struct {
	rate    float64
	fetched time.Time
}

// RateConverter prices amounts in SUI using the price feed. Concurrent lookups
// for one currency share a single feed request and the result is cached for
// ttl.
type RateConverter struct {
	feed  ports.PriceFeed
	ttl   time.Duration
	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedRate
	log   zerolog.Logger
	now   func() time.Time
}

// NewRateConverter returns a converter over feed. A ttl of zero disables the
// cache.
func NewRateConverter(feed ports.PriceFeed, ttl time.Duration, log zerolog.Logger) *RateConverter {
	return &RateConverter{
		feed:  feed,
		ttl:   ttl,
		cache: make(map[string]cachedRate),
		log:   log,
		now:   time.Now,
	}
}

// ConvertToSui returns amount / rate(currency). SUI converts 1:1.
func (c *RateConverter) ConvertToSui(ctx context.Context, amount float64, currency string) (*ports.Conversion, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", domain.ErrValidation)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrValidation)
	}
	if strings.EqualFold(currency, domain.CurrencySUI) {
		return &ports.Conversion{Amount: amount, Currency: domain.CurrencySUI, Rate: 1, AmountSui: amount}, nil
	}

	rate, err := c.rate(ctx, currency)
	if err != nil {
		metrics.ConversionErrorsTotal.WithLabelValues(currency).Inc()
		return nil, err
	}
	return &ports.Conversion{
		Amount:    amount,
		Currency:  strings.ToUpper(currency),
		Rate:      rate,
		AmountSui: amount / rate,
	}, nil
}

func (c *RateConverter) rate(ctx context.Context, currency string) (float64, error) {
	if r, ok := c.cached(currency); ok {
		return r, nil
	}

	v, err, _ := c.group.Do(currency, func() (any, error) {
		r, err := c.feed.Rate(ctx, currency)
		if err != nil {
			return 0.0, err
		}
		if r <= 0 {
			return 0.0, fmt.Errorf("non-positive rate %v for %s", r, currency)
		}
		if c.ttl > 0 {
			c.mu.Lock()
			c.cache[currency] = cachedRate{rate: r, fetched: c.now()}
			c.mu.Unlock()
		}
		return r, nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("currency", currency).Msg("rate lookup failed")
		if errors.Is(err, domain.ErrConversionUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrConversionUnavailable, err)
	}
	return v.(float64), nil
}

func (c *RateConverter) cached(currency string) (float64, bool) {
	if c.ttl <= 0 {
		return 0, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[currency]
	if !ok || c.now().Sub(e.fetched) > c.ttl {
		return 0, false
	}
	return e.rate, true
}
