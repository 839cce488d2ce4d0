package registry

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
)

type fakeExchange struct {
	assets    map[string]core.Asset
	pairs     map[string]core.Pair
	assetsErr error
}

func (f *fakeExchange) Assets(ctx context.Context) (map[string]core.Asset, error) {
	if f.assetsErr != nil {
		return nil, f.assetsErr
	}
	return f.assets, nil
}

func (f *fakeExchange) AssetPairs(ctx context.Context) (map[string]core.Pair, error) {
	return f.pairs, nil
}

func (f *fakeExchange) Ticker(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (f *fakeExchange) Balance(ctx context.Context) (map[string]decimal.Decimal, error) {
	return nil, nil
}

func (f *fakeExchange) TradeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context) ([]core.OpenOrder, error) {
	return nil, nil
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

type fakeMinimums struct {
	sizes map[string]decimal.Decimal
}

func (f *fakeMinimums) MinOrderSizes(ctx context.Context) (map[string]decimal.Decimal, error) {
	return f.sizes, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testVenue() *fakeExchange {
	minBTC := dec("0.0001")
	return &fakeExchange{
		assets: map[string]core.Asset{
			"XXBT": {Code: "XXBT", AltName: "XBT", Class: core.Crypto},
			"XETH": {Code: "XETH", AltName: "ETH", Class: core.Crypto},
			"ZEUR": {Code: "ZEUR", AltName: "EUR", Class: core.Fiat},
		},
		pairs: map[string]core.Pair{
			"XXBTZEUR": {Base: "XXBT", Quote: "ZEUR", Code: "XXBTZEUR", AltCode: "XBTEUR", WSName: "XBT/EUR", MinVolume: &minBTC},
			"XETHZEUR": {Base: "XETH", Quote: "ZEUR", Code: "XETHZEUR", AltCode: "ETHEUR", WSName: "ETH/EUR"},
			"XXBTZEUR.d": {Base: "XXBT", Quote: "ZEUR", Code: "XXBTZEUR.d", AltCode: "XBTEUR.d"},
		},
	}
}

func TestRefreshBuildsLookupTables(t *testing.T) {
	reg := New(testVenue(), &fakeMinimums{sizes: map[string]decimal.Decimal{"ETH": dec("0.004")}},
		map[string]string{"XBT": "EUR", "ETH": "EUR"}, testLogger())

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	coins := reg.Coins()
	if len(coins) != 2 || coins[0] != "ETH" || coins[1] != "XBT" {
		t.Fatalf("Coins() = %v", coins)
	}
	pair, ok := reg.Pair("XBT")
	if !ok || pair.Code != "XXBTZEUR" {
		t.Fatalf("Pair(XBT) = %+v, %v", pair, ok)
	}
	if _, ok := reg.PairByAltCode("XBTEUR.d"); ok {
		t.Fatal("dark pool pair should be skipped")
	}
	if reg.AltName("ZEUR") != "EUR" {
		t.Fatalf("AltName(ZEUR) = %q", reg.AltName("ZEUR"))
	}
	if reg.AltName("ZZZZ") != "ZZZZ" {
		t.Fatal("unknown code should fall back to itself")
	}
}

func TestRefreshMergesScrapedMinimums(t *testing.T) {
	reg := New(testVenue(), &fakeMinimums{sizes: map[string]decimal.Decimal{
		"ETH": dec("0.004"),
		"XBT": dec("999"), // must not override the venue value
	}}, map[string]string{"XBT": "EUR", "ETH": "EUR"}, testLogger())

	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if min := reg.MinVolume("ETH"); min == nil || !min.Equal(dec("0.004")) {
		t.Fatalf("MinVolume(ETH) = %v, want scraped 0.004", min)
	}
	if min := reg.MinVolume("XBT"); min == nil || !min.Equal(dec("0.0001")) {
		t.Fatalf("MinVolume(XBT) = %v, want venue 0.0001", min)
	}
}

func TestRefreshRejectsUnknownConfiguredPair(t *testing.T) {
	reg := New(testVenue(), nil, map[string]string{"DOGE": "EUR"}, testLogger())
	if err := reg.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh: expected error for untradable configured pair")
	}
}

func TestRefreshKeepsPreviousSnapshotOnFailure(t *testing.T) {
	venue := testVenue()
	reg := New(venue, nil, map[string]string{"XBT": "EUR"}, testLogger())
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	venue.assetsErr = errors.New("venue down")
	if err := reg.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh: expected error")
	}
	if _, ok := reg.Pair("XBT"); !ok {
		t.Fatal("previous snapshot lost after failed refresh")
	}
}

func TestWSNames(t *testing.T) {
	reg := New(testVenue(), nil, map[string]string{"XBT": "EUR", "ETH": "EUR"}, testLogger())
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	names := reg.WSNames()
	if len(names) != 2 || names[0] != "ETH/EUR" || names[1] != "XBT/EUR" {
		t.Fatalf("WSNames() = %v", names)
	}
}
