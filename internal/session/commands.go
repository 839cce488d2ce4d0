package session

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
)

// command dispatches a slash command. Inside an active workflow only
// /cancel is honored so a half-finished draft is never silently dropped.
func (e *Engine) command(ctx context.Context, s *Session, text string) []Reply {
	cmd := strings.ToLower(strings.Fields(text)[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	if cmd == "/cancel" {
		return e.cancel(s)
	}
	if s.Workflow != WorkflowNone {
		return []Reply{{Text: "A workflow is active. Finish it or /cancel first"}}
	}

	switch cmd {
	case "/start", "/reload":
		return []Reply{{Text: "Bot is ready. Choose a command", Buttons: commandsKeyboard()}}
	case "/trade":
		return e.tradeStart(s)
	case "/orders":
		return e.ordersStart(ctx, s)
	case "/settings":
		return e.settingsStart(s)
	case "/balance":
		return e.balanceCmd(ctx)
	case "/price":
		return e.priceCmd(ctx)
	case "/value":
		return e.valueCmd(ctx)
	case "/state":
		return e.stateCmd(ctx)
	case "/initialize":
		return e.initializeCmd(ctx)
	}
	return []Reply{{Text: "Unknown command", Buttons: commandsKeyboard()}}
}

// balanceCmd lists every non-zero balance. Assets with funds committed to
// open orders additionally show the amount still available.
func (e *Engine) balanceCmd(ctx context.Context) []Reply {
	balances, err := e.exchange.Balance(ctx)
	if err != nil {
		return []Reply{errorReply(err)}
	}
	orders, err := e.exchange.OpenOrders(ctx)
	if err != nil {
		return []Reply{errorReply(err)}
	}

	reserved := make(map[string]decimal.Decimal)
	for _, order := range orders {
		pair, ok := e.registry.PairByAltCode(order.Pair)
		if !ok {
			continue
		}
		switch order.Side {
		case core.Sell:
			reserved[pair.Base] = reserved[pair.Base].Add(order.Volume)
		case core.Buy:
			reserved[pair.Quote] = reserved[pair.Quote].Add(order.Volume.Mul(order.Price))
		}
	}

	codes := make([]string, 0, len(balances))
	for code := range balances {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var msg strings.Builder
	for _, code := range codes {
		amount := balances[code]
		if amount.IsZero() {
			continue
		}
		fmt.Fprintf(&msg, "%s: %s", e.registry.AltName(code), amount.String())
		if res, ok := reserved[code]; ok && res.Sign() > 0 {
			available := amount.Sub(res)
			if available.Sign() < 0 {
				available = decimal.Zero
			}
			fmt.Fprintf(&msg, " (Available: %s)", available.String())
		}
		msg.WriteString("\n")
	}
	if msg.Len() == 0 {
		return []Reply{{Text: "No funds available"}}
	}
	return []Reply{{Text: msg.String()}}
}

// priceCmd reports the last trade price of every configured pair. Prices
// come from the live ticker feed where available, with one REST call
// covering the remainder.
func (e *Engine) priceCmd(ctx context.Context) []Reply {
	coins := e.registry.Coins()
	if len(coins) == 0 {
		return []Reply{{Text: "No trading pairs configured"}}
	}
	pairs := make([]core.Pair, 0, len(coins))
	for _, coin := range coins {
		if pair, ok := e.registry.Pair(coin); ok {
			pairs = append(pairs, pair)
		}
	}

	prices, err := e.resolver.LastPrices(ctx, pairs)
	if err != nil {
		return []Reply{errorReply(err)}
	}

	var msg strings.Builder
	for _, pair := range pairs {
		price, ok := prices[pair.Code]
		if !ok {
			continue
		}
		fmt.Fprintf(&msg, "%s: %s %s\n",
			e.registry.AltName(pair.Base), price.String(), e.registry.AltName(pair.Quote))
	}
	return []Reply{{Text: msg.String()}}
}

// valueCmd reports the overall account value in the base currency.
func (e *Engine) valueCmd(ctx context.Context) []Reply {
	base := e.cfg.Trading.BaseCurrency
	value, err := e.exchange.TradeBalance(ctx, base)
	if err != nil {
		return []Reply{errorReply(err)}
	}
	return []Reply{{Text: fmt.Sprintf("Overall account value:\n≈%s %s", value.StringFixed(2), base)}}
}

func (e *Engine) stateCmd(ctx context.Context) []Reply {
	return []Reply{{Text: "Kraken API status: " + e.status.APIState(ctx)}}
}

// initializeCmd rebuilds the asset/pair/limit tables from the venue.
func (e *Engine) initializeCmd(ctx context.Context) []Reply {
	if err := e.registry.Refresh(ctx); err != nil {
		return []Reply{errorReply(err)}
	}
	return []Reply{{Text: "Bot initialized", Buttons: commandsKeyboard()}}
}
