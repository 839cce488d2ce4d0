package session

import (
	"context"
	"strings"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
)

func (e *Engine) ordersStart(ctx context.Context, s *Session) []Reply {
	replies := []Reply{{Text: "Retrieving orders..."}}

	orders, err := e.exchange.OpenOrders(ctx)
	if err != nil {
		return append(replies, errorReply(err))
	}
	if len(orders) == 0 {
		return append(replies, Reply{Text: "No open orders", Buttons: commandsKeyboard()})
	}

	for _, order := range orders {
		replies = append(replies, Reply{Text: order.TxID + "\n" + order.Description})
	}

	s.Workflow = WorkflowOrders
	if !e.advance(s, StepOrdersClose) {
		return e.cancel(s)
	}
	s.Orders.Open = orders
	return append(replies, Reply{
		Text:    "What do you want to do?",
		Buttons: [][]string{{"CLOSE ORDER", "CLOSE ALL"}, {"CANCEL"}},
	})
}

func (e *Engine) ordersClose(ctx context.Context, s *Session, text string) []Reply {
	switch {
	case strings.EqualFold(text, "close all"):
		return e.ordersCloseAll(ctx, s)
	case strings.EqualFold(text, "close order"):
		if !e.advance(s, StepOrdersCloseOrder) {
			return e.cancel(s)
		}
		buttons := make([][]string, 0, len(s.Orders.Open)+1)
		for _, order := range s.Orders.Open {
			buttons = append(buttons, []string{order.TxID})
		}
		buttons = append(buttons, []string{"CANCEL"})
		return []Reply{{Text: "Which order to close?", Buttons: buttons}}
	}
	return []Reply{{Text: "CLOSE ORDER, CLOSE ALL or CANCEL"}}
}

// ordersCloseAll cancels the cached open orders one by one. A failing
// cancel is reported and iteration continues; the summary lists only the
// orders actually closed.
func (e *Engine) ordersCloseAll(ctx context.Context, s *Session) []Reply {
	replies := []Reply{{Text: "Closing orders..."}}

	var closed []string
	for _, order := range s.Orders.Open {
		if err := e.exchange.CancelOrder(ctx, order.TxID); err != nil {
			e.log.WithError(err).WithField("txid", order.TxID).Warn("cancel failed")
			replies = append(replies, Reply{Text: "Order not closed:\n" + order.TxID})
			continue
		}
		closed = append(closed, order.TxID)
	}

	s.Clear()
	if len(closed) == 0 {
		return append(replies, Reply{Text: "No orders closed", Buttons: commandsKeyboard()})
	}
	return append(replies, Reply{
		Text:    "Orders closed:\n" + strings.Join(closed, "\n"),
		Buttons: commandsKeyboard(),
	})
}

func (e *Engine) ordersCloseOrder(ctx context.Context, s *Session, text string) []Reply {
	txid := strings.TrimSpace(text)
	if !core.ValidTxID(txid) {
		return []Reply{{Text: "Not a valid transaction id"}}
	}

	replies := []Reply{{Text: "Closing order..."}}
	if err := e.exchange.CancelOrder(ctx, txid); err != nil {
		s.Clear()
		return append(replies, errorReply(err), Reply{Text: "Order not closed", Buttons: commandsKeyboard()})
	}

	s.Clear()
	return append(replies, Reply{Text: "Order closed:\n" + txid, Buttons: commandsKeyboard()})
}
