package cache

import (
	"github.com/shopspring/decimal"
)

// DefaultExchangeRate is the loans pallet's initial lend token exchange rate,
// returned when no sample is known yet
var DefaultExchangeRate = decimal.RequireFromString("0.02")

type RateSample struct {
	Height uint64
	Rate   decimal.Decimal
}

// RateCache is an append-only per-symbol log of exchange rate samples
type RateCache struct {
	samples map[string][]RateSample
}

func NewRateCache() *RateCache {
	return &RateCache{samples: make(map[string][]RateSample)}
}

// Append records a sample. Events arrive in block order; a second sample at the same
// height replaces the first, an older one is inserted in place
func (c *RateCache) Append(height uint64, symbol string, rate decimal.Decimal) {
	log := c.samples[symbol]
	n := len(log)

	switch {
	case n == 0 || log[n-1].Height < height:
		c.samples[symbol] = append(log, RateSample{Height: height, Rate: rate})
	case log[n-1].Height == height:
		log[n-1].Rate = rate
	default:
		i := n - 1
		for i >= 0 && log[i].Height > height {
			i--
		}
		if i >= 0 && log[i].Height == height {
			log[i].Rate = rate
			return
		}
		log = append(log, RateSample{})
		copy(log[i+2:], log[i+1:])
		log[i+1] = RateSample{Height: height, Rate: rate}
		c.samples[symbol] = log
	}
}

// RateAt returns the last rate sampled at or before height. Without one it returns
// DefaultExchangeRate and false
func (c *RateCache) RateAt(height uint64, symbol string) (decimal.Decimal, bool) {
	log := c.samples[symbol]
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Height <= height {
			return log[i].Rate, true
		}
	}
	return DefaultExchangeRate, false
}

func (c *RateCache) Reset() {
	c.samples = make(map[string][]RateSample)
}
