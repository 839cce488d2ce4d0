package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
)

// Exchange is the venue surface consumed by the session workflows, the
// registry and the order monitor.
type Exchange interface {
	Assets(ctx context.Context) (map[string]core.Asset, error)
	AssetPairs(ctx context.Context) (map[string]core.Pair, error)
	Ticker(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error)
	Balance(ctx context.Context) (map[string]decimal.Decimal, error)
	TradeBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	OpenOrders(ctx context.Context) ([]core.OpenOrder, error)
	AddOrder(ctx context.Context, req core.OrderRequest) (txid, description string, err error)
	CancelOrder(ctx context.Context, txid string) error
	QueryOrder(ctx context.Context, txid string) (core.OrderInfo, error)
}
