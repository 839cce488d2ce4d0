package resolver

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/registry"
)

type fakeExchange struct {
	assets   map[string]core.Asset
	pairs    map[string]core.Pair
	balances map[string]decimal.Decimal
	orders   []core.OpenOrder
	ticker   map[string]decimal.Decimal
}

func (f *fakeExchange) Assets(ctx context.Context) (map[string]core.Asset, error) {
	return f.assets, nil
}

func (f *fakeExchange) AssetPairs(ctx context.Context) (map[string]core.Pair, error) {
	return f.pairs, nil
}

func (f *fakeExchange) Ticker(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	return f.ticker, nil
}

func (f *fakeExchange) Balance(ctx context.Context) (map[string]decimal.Decimal, error) {
	return f.balances, nil
}

func (f *fakeExchange) TradeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context) ([]core.OpenOrder, error) {
	return f.orders, nil
}

func (f *fakeExchange) AddOrder(ctx context.Context, req core.OrderRequest) (string, string, error) {
	return "", "", nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, txid string) error {
	return nil
}

func (f *fakeExchange) QueryOrder(ctx context.Context, txid string) (core.OrderInfo, error) {
	return core.OrderInfo{}, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newResolver(t *testing.T, venue *fakeExchange) *Resolver {
	t.Helper()
	minBTC := dec("0.0001")
	venue.assets = map[string]core.Asset{
		"XXBT": {Code: "XXBT", AltName: "XBT", Class: core.Crypto},
		"ZEUR": {Code: "ZEUR", AltName: "EUR", Class: core.Fiat},
	}
	venue.pairs = map[string]core.Pair{
		"XXBTZEUR": {Base: "XXBT", Quote: "ZEUR", Code: "XXBTZEUR", AltCode: "XBTEUR", WSName: "XBT/EUR", MinVolume: &minBTC},
	}
	reg := registry.New(venue, nil, map[string]string{"XBT": "EUR"}, testLogger())
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return New(venue, reg, nil, testLogger())
}

func btcPair(t *testing.T, r *Resolver) core.Pair {
	t.Helper()
	pair, ok := r.registry.Pair("XBT")
	if !ok {
		t.Fatal("XBT pair missing")
	}
	return pair
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0.1", want: "0.1"},
		{in: " 2.000000004 ", want: "2"},
		{in: "0.123456789", want: "0.12345679"},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseVolume(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVolume(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVolume(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(dec(tt.want)) {
			t.Errorf("ParseVolume(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestVolumeFromQuote(t *testing.T) {
	got, err := VolumeFromQuote(dec("100"), dec("30000"))
	if err != nil {
		t.Fatalf("VolumeFromQuote: %v", err)
	}
	if got.Exponent() < -8 {
		t.Fatalf("volume %s has more than 8 fractional digits", got)
	}
	if !got.Equal(dec("0.00333333")) {
		t.Fatalf("VolumeFromQuote = %s, want 0.00333333", got)
	}
	if _, err := VolumeFromQuote(dec("100"), decimal.Zero); err == nil {
		t.Fatal("expected error for zero price")
	}
}

func TestTotalRoundsToFiatDigits(t *testing.T) {
	total := Total(dec("19999.99"), dec("0.10000001"))
	if !total.Equal(dec("2000.00")) {
		t.Fatalf("Total = %s, want 2000.00", total)
	}
}

func TestFormatTotalMarker(t *testing.T) {
	if got := FormatTotal(dec("2000"), "EUR", true); got != "≈2000.00 EUR" {
		t.Fatalf("estimated total = %q", got)
	}
	if got := FormatTotal(dec("2000"), "EUR", false); got != "2000.00 EUR" {
		t.Fatalf("exact total = %q", got)
	}
}

func TestCheckMinimum(t *testing.T) {
	min := dec("0.0001")
	pair := core.Pair{AltCode: "XBTEUR", MinVolume: &min}
	if err := CheckMinimum(pair, dec("0.0001")); err != nil {
		t.Fatalf("volume at minimum rejected: %v", err)
	}
	if err := CheckMinimum(pair, dec("0.00009")); !errors.Is(err, core.ErrBelowMinimum) {
		t.Fatalf("err = %v, want ErrBelowMinimum", err)
	}
	if err := CheckMinimum(core.Pair{AltCode: "ETHEUR"}, dec("1")); !errors.Is(err, core.ErrUnknownMinimum) {
		t.Fatalf("err = %v, want ErrUnknownMinimum", err)
	}
}

func TestSellAllSubtractsOpenSellOrders(t *testing.T) {
	venue := &fakeExchange{
		balances: map[string]decimal.Decimal{"XXBT": dec("1.50000000")},
		orders: []core.OpenOrder{
			{TxID: "OAAAAA-BBBBB-CCCCCC", Pair: "XBTEUR", Side: core.Sell, Kind: core.Limit, Price: dec("40000"), Volume: dec("0.50000000")},
			{TxID: "ODDDDD-EEEEE-FFFFFF", Pair: "XBTEUR", Side: core.Buy, Kind: core.Limit, Price: dec("10000"), Volume: dec("0.30000000")},
		},
	}
	r := newResolver(t, venue)

	got, err := r.SellAllVolume(context.Background(), btcPair(t, r))
	if err != nil {
		t.Fatalf("SellAllVolume: %v", err)
	}
	if !got.Equal(dec("1.00000000")) {
		t.Fatalf("SellAllVolume = %s, want 1.00000000", got)
	}
}

func TestSellAllZeroWhenFullyCommitted(t *testing.T) {
	venue := &fakeExchange{
		balances: map[string]decimal.Decimal{"XXBT": dec("0.5")},
		orders: []core.OpenOrder{
			{TxID: "OAAAAA-BBBBB-CCCCCC", Pair: "XBTEUR", Side: core.Sell, Kind: core.Limit, Price: dec("40000"), Volume: dec("0.5")},
		},
	}
	r := newResolver(t, venue)

	got, err := r.SellAllVolume(context.Background(), btcPair(t, r))
	if err != nil {
		t.Fatalf("SellAllVolume: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("SellAllVolume = %s, want 0", got)
	}
}

func TestBuyAvailableSubtractsReservedQuote(t *testing.T) {
	venue := &fakeExchange{
		balances: map[string]decimal.Decimal{"ZEUR": dec("1000.00")},
		orders: []core.OpenOrder{
			{TxID: "OAAAAA-BBBBB-CCCCCC", Pair: "XBTEUR", Side: core.Buy, Kind: core.Limit, Price: dec("20000"), Volume: dec("0.01")},
		},
	}
	r := newResolver(t, venue)

	got, err := r.Available(context.Background(), core.Buy, btcPair(t, r))
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if !got.Equal(dec("800.00")) {
		t.Fatalf("Available = %s, want 800.00", got)
	}
}

func TestMarketPricePrefersFeed(t *testing.T) {
	venue := &fakeExchange{ticker: map[string]decimal.Decimal{"XXBTZEUR": dec("30000")}}
	r := newResolver(t, venue)
	pair := btcPair(t, r)

	price, err := r.MarketPrice(context.Background(), pair)
	if err != nil {
		t.Fatalf("MarketPrice: %v", err)
	}
	if !price.Equal(dec("30000")) {
		t.Fatalf("price = %s, want ticker 30000", price)
	}

	r.feed = staticFeed{price: dec("31000")}
	price, err = r.MarketPrice(context.Background(), pair)
	if err != nil {
		t.Fatalf("MarketPrice: %v", err)
	}
	if !price.Equal(dec("31000")) {
		t.Fatalf("price = %s, want feed 31000", price)
	}
}

func TestLastPricesServesFeedBeforeTicker(t *testing.T) {
	venue := &fakeExchange{ticker: map[string]decimal.Decimal{
		"XXBTZEUR": dec("30000"),
		"XETHZEUR": dec("2000"),
	}}
	r := newResolver(t, venue)
	btc := btcPair(t, r)
	eth := core.Pair{Base: "XETH", Quote: "ZEUR", Code: "XETHZEUR", AltCode: "ETHEUR", WSName: "ETH/EUR"}

	r.feed = mapFeed{"XBT/EUR": dec("31000")}
	prices, err := r.LastPrices(context.Background(), []core.Pair{btc, eth})
	if err != nil {
		t.Fatalf("LastPrices: %v", err)
	}
	if !prices["XXBTZEUR"].Equal(dec("31000")) {
		t.Fatalf("XXBTZEUR = %s, want feed 31000", prices["XXBTZEUR"])
	}
	if !prices["XETHZEUR"].Equal(dec("2000")) {
		t.Fatalf("XETHZEUR = %s, want ticker 2000", prices["XETHZEUR"])
	}
}

type staticFeed struct {
	price decimal.Decimal
}

func (s staticFeed) Price(wsname string) (decimal.Decimal, bool) {
	return s.price, true
}

type mapFeed map[string]decimal.Decimal

func (m mapFeed) Price(wsname string) (decimal.Decimal, bool) {
	price, ok := m[wsname]
	return price, ok
}
