package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/exchange"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/registry"
)

const (
	// Volumes are expressed with 8 fractional digits, fiat amounts with 2.
	VolumeDigits = 8
	FiatDigits   = 2
)

// PriceFeed is an optional live last-price cache consulted before falling
// back to the REST ticker.
type PriceFeed interface {
	Price(wsname string) (decimal.Decimal, bool)
}

// Resolver turns user input into concrete order volumes and checks them
// against the venue minimums.
type Resolver struct {
	exchange exchange.Exchange
	registry *registry.Registry
	feed     PriceFeed
	log      *logrus.Entry
}

func New(ex exchange.Exchange, reg *registry.Registry, feed PriceFeed, log *logrus.Logger) *Resolver {
	return &Resolver{
		exchange: ex,
		registry: reg,
		feed:     feed,
		log:      log.WithField("component", "resolver"),
	}
}

// ParseVolume parses user-entered text as a positive volume, normalized to
// 8 fractional digits.
func ParseVolume(text string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", strings.TrimSpace(text))
	}
	if value.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("volume must be positive")
	}
	return value.Round(VolumeDigits), nil
}

// VolumeFromQuote converts an amount of quote currency into base volume at
// the given price.
func VolumeFromQuote(spend, price decimal.Decimal) (decimal.Decimal, error) {
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("price must be positive")
	}
	return spend.Div(price).Round(VolumeDigits), nil
}

// Total is the order total in quote currency, rounded to fiat precision.
func Total(price, volume decimal.Decimal) decimal.Decimal {
	return price.Mul(volume).Round(FiatDigits)
}

// FormatTotal renders an order total. Market order totals are estimates
// based on the last trade price and carry the approximation marker.
func FormatTotal(total decimal.Decimal, quote string, estimated bool) string {
	prefix := ""
	if estimated {
		prefix = "≈"
	}
	return fmt.Sprintf("%s%s %s", prefix, total.StringFixed(FiatDigits), quote)
}

// CheckMinimum validates a volume against the pair minimum. An unknown
// minimum is an error of its own so the caller can abort rather than guess.
func CheckMinimum(pair core.Pair, volume decimal.Decimal) error {
	if pair.MinVolume == nil {
		return fmt.Errorf("%s: %w", pair.AltCode, core.ErrUnknownMinimum)
	}
	if volume.LessThan(*pair.MinVolume) {
		return fmt.Errorf("%s needs at least %s: %w", pair.AltCode, pair.MinVolume.String(), core.ErrBelowMinimum)
	}
	return nil
}

// MarketPrice returns the current last trade price for a pair, preferring
// the live feed when it has seen an update.
func (r *Resolver) MarketPrice(ctx context.Context, pair core.Pair) (decimal.Decimal, error) {
	if r.feed != nil && pair.WSName != "" {
		if price, ok := r.feed.Price(pair.WSName); ok {
			return price, nil
		}
	}
	prices, err := r.exchange.Ticker(ctx, []string{pair.Code})
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := prices[pair.Code]
	if !ok {
		return decimal.Zero, fmt.Errorf("no ticker price for %s", pair.Code)
	}
	return price, nil
}

// LastPrices returns the last trade price per pair code. Pairs the live feed
// has seen are served from its cache; the rest are fetched in a single
// ticker call.
func (r *Resolver) LastPrices(ctx context.Context, pairs []core.Pair) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(pairs))
	var missing []string
	for _, pair := range pairs {
		if r.feed != nil && pair.WSName != "" {
			if price, ok := r.feed.Price(pair.WSName); ok {
				prices[pair.Code] = price
				continue
			}
		}
		missing = append(missing, pair.Code)
	}
	if len(missing) > 0 {
		fetched, err := r.exchange.Ticker(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, code := range missing {
			if price, ok := fetched[code]; ok {
				prices[code] = price
			}
		}
	}
	return prices, nil
}

// Available computes how much can still be traded. Selling: the base asset
// balance minus volume already committed to open sell orders on the pair.
// Buying: the quote balance minus the totals reserved by open buy orders
// sharing the quote currency.
func (r *Resolver) Available(ctx context.Context, side core.Side, pair core.Pair) (decimal.Decimal, error) {
	balances, err := r.exchange.Balance(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	orders, err := r.exchange.OpenOrders(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if side == core.Sell {
		available := balances[pair.Base]
		for _, order := range orders {
			if order.Side == core.Sell && order.Pair == pair.AltCode {
				available = available.Sub(order.Volume)
			}
		}
		if available.Sign() < 0 {
			available = decimal.Zero
		}
		return available.Round(VolumeDigits), nil
	}

	available := balances[pair.Quote]
	for _, order := range orders {
		if order.Side != core.Buy {
			continue
		}
		orderPair, ok := r.registry.PairByAltCode(order.Pair)
		if !ok || orderPair.Quote != pair.Quote {
			continue
		}
		available = available.Sub(order.Volume.Mul(order.Price))
	}
	if available.Sign() < 0 {
		available = decimal.Zero
	}
	return available.Round(FiatDigits), nil
}

// SellAllVolume resolves the full sellable position for a pair. A zero
// result means nothing is available once open orders are accounted for.
func (r *Resolver) SellAllVolume(ctx context.Context, pair core.Pair) (decimal.Decimal, error) {
	return r.Available(ctx, core.Sell, pair)
}

// BuyAllVolume resolves the volume purchasable with the entire free quote
// balance at the given price.
func (r *Resolver) BuyAllVolume(ctx context.Context, pair core.Pair, price decimal.Decimal) (decimal.Decimal, error) {
	available, err := r.Available(ctx, core.Buy, pair)
	if err != nil {
		return decimal.Zero, err
	}
	if available.Sign() == 0 {
		return decimal.Zero, nil
	}
	return VolumeFromQuote(available, price)
}
