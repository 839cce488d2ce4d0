package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/resolver"
)

func (e *Engine) tradeStart(s *Session) []Reply {
	s.Workflow = WorkflowTrade
	if !e.advance(s, StepTradeBuySell) {
		return e.cancel(s)
	}
	return []Reply{{
		Text:    "Buy or sell?",
		Buttons: [][]string{{"BUY", "SELL"}, {"CANCEL"}},
	}}
}

func (e *Engine) tradeBuySell(ctx context.Context, s *Session, text string) []Reply {
	switch {
	case strings.EqualFold(text, "buy"):
		s.Trade.Side = core.Buy
	case strings.EqualFold(text, "sell"):
		s.Trade.Side = core.Sell
	default:
		return []Reply{{Text: "Buy or sell?"}}
	}
	if !e.advance(s, StepTradeCurrency) {
		return e.cancel(s)
	}
	return []Reply{{Text: "Choose currency", Buttons: e.coinKeyboard(s.Trade.Side == core.Sell)}}
}

func (e *Engine) tradeCurrency(ctx context.Context, s *Session, text string) []Reply {
	coin := upper(text)
	if s.Trade.Side == core.Sell && coin == "ALL" {
		if !e.advance(s, StepTradeSellAllConfirm) {
			return e.cancel(s)
		}
		return []Reply{{
			Text:    "Sell all assets at current market price? All open orders will be closed!",
			Buttons: confirmKeyboard(),
		}}
	}
	pair, ok := e.registry.Pair(coin)
	if !ok {
		return []Reply{{Text: "Choose one of the listed currencies"}}
	}
	s.Trade.Coin = coin
	s.Trade.Pair = pair
	if !e.advance(s, StepTradePrice) {
		return e.cancel(s)
	}
	return []Reply{{
		Text:    "Enter price per coin in " + e.registry.AltName(pair.Quote),
		Buttons: [][]string{{"MARKET PRICE"}, {"CANCEL"}},
	}}
}

// tradeSellAllConfirm liquidates everything: every open order is canceled
// and every non-fiat position above its minimum is sold at market. One
// failing asset never stops the batch.
func (e *Engine) tradeSellAllConfirm(ctx context.Context, s *Session, text string) []Reply {
	if isNo(text) {
		return e.cancel(s)
	}
	if !isYes(text) {
		return []Reply{{Text: "Sell all assets? YES or NO"}}
	}

	replies := []Reply{{Text: "Preparing to sell everything..."}}

	orders, err := e.exchange.OpenOrders(ctx)
	if err != nil {
		s.Clear()
		return append(replies, errorReply(err))
	}
	for _, order := range orders {
		if err := e.exchange.CancelOrder(ctx, order.TxID); err != nil {
			e.log.WithError(err).WithField("txid", order.TxID).Warn("close order failed")
			replies = append(replies, Reply{Text: "Not possible to close order:\n" + order.TxID})
		}
	}

	balances, err := e.exchange.Balance(ctx)
	if err != nil {
		s.Clear()
		return append(replies, errorReply(err))
	}
	for code, amount := range balances {
		if core.ClassOf(code) == core.Fiat || amount.IsZero() {
			continue
		}
		coin := e.registry.AltName(code)
		pair, ok := e.registry.Pair(coin)
		if !ok {
			e.log.WithField("coin", coin).Debug("no configured pair, skipping")
			continue
		}
		if err := resolver.CheckMinimum(pair, amount); err != nil {
			e.log.WithError(err).WithField("coin", coin).Warn("skipping asset")
			if errors.Is(err, core.ErrBelowMinimum) {
				replies = append(replies, Reply{Text: fmt.Sprintf("Volume of %s too low. Selling next asset...", coin)})
			}
			continue
		}
		txid, _, err := e.exchange.AddOrder(ctx, core.OrderRequest{
			Pair:             pair.Code,
			Side:             core.Sell,
			Kind:             core.Market,
			Volume:           amount,
			TradingAgreement: true,
		})
		if err != nil {
			e.log.WithError(err).WithField("coin", coin).Warn("sell order failed")
			replies = append(replies, Reply{Text: fmt.Sprintf("Not possible to sell %s:\n%v", coin, err)})
			continue
		}
		if e.cfg.Monitor.CheckTrades {
			e.monitor.Track(context.WithoutCancel(ctx), txid)
		}
	}

	s.Clear()
	return append(replies, Reply{Text: "Created orders to sell all assets", Buttons: commandsKeyboard()})
}

func (e *Engine) tradePrice(ctx context.Context, s *Session, text string) []Reply {
	if strings.EqualFold(text, "market price") {
		s.Trade.MarketPrice = true
	} else {
		price, ok := e.parseNumber(text)
		if !ok || price.Sign() <= 0 {
			return []Reply{{Text: "Enter a valid price"}}
		}
		s.Trade.MarketPrice = false
		s.Trade.Price = price
	}

	// Market buy has exactly one way to enter the volume: the price is not
	// known until confirmation, so spending a quote amount is ambiguous.
	if s.Trade.MarketPrice && s.Trade.Side == core.Buy {
		s.Trade.VolMode = VolDirect
		if !e.advance(s, StepTradeVolume) {
			return e.cancel(s)
		}
		return []Reply{{Text: "Enter volume", Buttons: cancelKeyboard()}}
	}

	if !e.advance(s, StepTradeVolType) {
		return e.cancel(s)
	}
	if s.Trade.MarketPrice {
		return []Reply{{
			Text:    "How to enter the volume?",
			Buttons: [][]string{{"ALL", "VOLUME"}, {"CANCEL"}},
		}}
	}
	return []Reply{{
		Text:    "How to enter the volume?",
		Buttons: [][]string{{e.registry.AltName(s.Trade.Pair.Quote), "VOLUME", "ALL"}, {"CANCEL"}},
	}}
}

func (e *Engine) tradeVolType(ctx context.Context, s *Session, text string) []Reply {
	quote := e.registry.AltName(s.Trade.Pair.Quote)
	switch {
	case strings.EqualFold(text, "volume"):
		s.Trade.VolMode = VolDirect
		if !e.advance(s, StepTradeVolume) {
			return e.cancel(s)
		}
		return []Reply{{Text: "Enter volume", Buttons: cancelKeyboard()}}

	case strings.EqualFold(text, quote) && !s.Trade.MarketPrice:
		s.Trade.VolMode = VolQuote
		if !e.advance(s, StepTradeVolumeAsset) {
			return e.cancel(s)
		}
		return []Reply{{Text: "Enter volume in " + quote, Buttons: cancelKeyboard()}}

	case strings.EqualFold(text, "all"):
		s.Trade.VolMode = VolAll
		return e.tradeVolumeAll(ctx, s)
	}
	return []Reply{{Text: "Entered volume type not valid"}}
}

// tradeVolumeAll resolves the full available amount for the chosen side.
// Zero availability ends the workflow without placing an order.
func (e *Engine) tradeVolumeAll(ctx context.Context, s *Session) []Reply {
	replies := []Reply{{Text: "Calculating volume..."}}

	var volume string
	if s.Trade.Side == core.Buy {
		vol, err := e.resolver.BuyAllVolume(ctx, s.Trade.Pair, s.Trade.Price)
		if err != nil {
			s.Clear()
			return append(replies, errorReply(err))
		}
		if vol.IsZero() {
			s.Clear()
			quote := e.registry.AltName(s.Trade.Pair.Quote)
			return append(replies, Reply{Text: "Available " + quote + " volume is 0", Buttons: commandsKeyboard()})
		}
		s.Trade.Volume = vol
		volume = vol.String()
	} else {
		vol, err := e.resolver.SellAllVolume(ctx, s.Trade.Pair)
		if err != nil {
			s.Clear()
			return append(replies, errorReply(err))
		}
		if vol.IsZero() {
			s.Clear()
			return append(replies, Reply{Text: "Available " + s.Trade.Coin + " volume is 0", Buttons: commandsKeyboard()})
		}
		s.Trade.Volume = vol
		volume = vol.String()
	}
	e.log.WithField("volume", volume).Debug("resolved full available volume")

	confirm, ok := e.tradeShowConfirm(ctx, s)
	if !ok {
		return append(replies, confirm...)
	}
	if !e.advance(s, StepTradeConfirm) {
		return e.cancel(s)
	}
	return append(replies, confirm...)
}

func (e *Engine) tradeVolume(ctx context.Context, s *Session, text string) []Reply {
	volume, err := resolver.ParseVolume(text)
	if err != nil {
		return []Reply{{Text: "Enter a valid volume"}}
	}
	return e.tradeCheckVolume(ctx, s, volume)
}

// tradeVolumeAsset converts a quote currency amount into base volume.
func (e *Engine) tradeVolumeAsset(ctx context.Context, s *Session, text string) []Reply {
	amount, ok := e.parseNumber(text)
	if !ok || amount.Sign() <= 0 {
		return []Reply{{Text: "Enter a valid amount"}}
	}
	volume, err := resolver.VolumeFromQuote(amount, s.Trade.Price)
	if err != nil {
		return []Reply{{Text: "Enter a valid amount"}}
	}
	return e.tradeCheckVolume(ctx, s, volume)
}

// tradeCheckVolume applies the minimum order size policy: below the minimum
// re-prompts for a new volume, an unknown minimum aborts the order.
func (e *Engine) tradeCheckVolume(ctx context.Context, s *Session, volume decimal.Decimal) []Reply {
	if err := resolver.CheckMinimum(s.Trade.Pair, volume); err != nil {
		if errors.Is(err, core.ErrUnknownMinimum) {
			e.log.WithField("coin", s.Trade.Coin).Warn("minimum order size unknown, aborting")
			s.Clear()
			return []Reply{{
				Text:    "No minimum order size known for " + s.Trade.Coin + ". Order aborted.",
				Buttons: commandsKeyboard(),
			}}
		}
		e.log.WithError(err).Warn("volume below minimum")
		if s.Step != StepTradeVolume {
			if !e.advance(s, StepTradeVolume) {
				return e.cancel(s)
			}
		}
		return []Reply{
			{Text: fmt.Sprintf("Volume too low. Must be at least %s", s.Trade.Pair.MinVolume)},
			{Text: "Enter new volume", Buttons: cancelKeyboard()},
		}
	}

	s.Trade.Volume = volume
	confirm, ok := e.tradeShowConfirm(ctx, s)
	if !ok {
		return confirm
	}
	if !e.advance(s, StepTradeConfirm) {
		return e.cancel(s)
	}
	return confirm
}

// tradeShowConfirm renders the order summary. For market orders the price
// shown is the current last trade price and the total is an estimate.
func (e *Engine) tradeShowConfirm(ctx context.Context, s *Session) ([]Reply, bool) {
	quote := e.registry.AltName(s.Trade.Pair.Quote)

	var replies []Reply
	if s.Trade.MarketPrice {
		replies = append(replies, Reply{Text: "Retrieving estimated price..."})
		price, err := e.resolver.MarketPrice(ctx, s.Trade.Pair)
		if err != nil {
			s.Clear()
			return append(replies, errorReply(err)), false
		}
		s.Trade.Price = price
	}

	var tradeStr string
	if s.Trade.MarketPrice {
		tradeStr = fmt.Sprintf("%s %s %s @ market price ≈%s %s",
			s.Trade.Side, s.Trade.Volume, s.Trade.Coin, s.Trade.Price, quote)
	} else {
		tradeStr = fmt.Sprintf("%s %s %s @ limit %s %s",
			s.Trade.Side, s.Trade.Volume, s.Trade.Coin, s.Trade.Price, quote)
	}

	total := resolver.Total(s.Trade.Price, s.Trade.Volume)
	valueStr := "(Value: " + resolver.FormatTotal(total, quote, s.Trade.MarketPrice) + ")"

	replies = append(replies, Reply{
		Text:    "Place this order?\n" + tradeStr + "\n" + valueStr,
		Buttons: confirmKeyboard(),
	})
	return replies, true
}

func (e *Engine) tradeConfirm(ctx context.Context, s *Session, text string) []Reply {
	if isNo(text) {
		return e.cancel(s)
	}
	if !isYes(text) {
		return []Reply{{Text: "Place this order? YES or NO"}}
	}

	replies := []Reply{{Text: "Placing order..."}}

	req := core.OrderRequest{
		Pair:   s.Trade.Pair.Code,
		Side:   s.Trade.Side,
		Volume: s.Trade.Volume,
	}
	if s.Trade.MarketPrice {
		req.Kind = core.Market
		req.TradingAgreement = true
	} else {
		req.Kind = core.Limit
		req.Price = s.Trade.Price
	}

	txid, descr, err := e.exchange.AddOrder(ctx, req)
	if err != nil {
		s.Clear()
		if errors.Is(err, core.ErrUndefinedState) {
			e.log.WithError(err).Error("order placement in undefined state")
			return append(replies, Reply{Text: "Undefined state: no error and no TXID", Buttons: commandsKeyboard()})
		}
		return append(replies, errorReply(err), Reply{Buttons: commandsKeyboard(), Text: "Order not placed"})
	}

	// Prefer the final description from the venue; fall back to the one
	// returned at placement.
	if info, qerr := e.exchange.QueryOrder(ctx, txid); qerr == nil && info.Description != "" {
		descr = info.Description
	}

	if e.cfg.Monitor.CheckTrades {
		e.monitor.Track(context.WithoutCancel(ctx), txid)
	}

	s.Clear()
	return append(replies, Reply{
		Text:    "Order placed:\n" + txid + "\n" + descr,
		Buttons: commandsKeyboard(),
	})
}

// coinKeyboard lists the configured coins three per row; selling adds the
// ALL shortcut.
func (e *Engine) coinKeyboard(withAll bool) [][]string {
	coins := e.registry.Coins()
	var rows [][]string
	for i := 0; i < len(coins); i += 3 {
		end := i + 3
		if end > len(coins) {
			end = len(coins)
		}
		rows = append(rows, coins[i:end])
	}
	footer := []string{"CANCEL"}
	if withAll {
		footer = []string{"ALL", "CANCEL"}
	}
	return append(rows, footer)
}
