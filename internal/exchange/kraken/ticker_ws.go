package kraken

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const wsEndpoint = "wss://ws.kraken.com"

// Feed keeps a live last-price cache from the public websocket ticker
// channel. The REST Ticker call stays the fallback when a pair has not
// produced an update yet.
type Feed struct {
	endpoint string
	pairs    []string // websocket pair names, e.g. XBT/EUR
	log      *logrus.Entry

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewFeed(pairs []string, log *logrus.Logger) *Feed {
	return &Feed{
		endpoint: wsEndpoint,
		pairs:    pairs,
		log:      log.WithField("component", "ticker_ws"),
		prices:   make(map[string]decimal.Decimal),
	}
}

// Price returns the cached last trade price for a websocket pair name.
func (f *Feed) Price(wsname string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[wsname]
	return price, ok
}

// Run maintains the websocket subscription until the context ends,
// reconnecting with a flat backoff after any failure.
func (f *Feed) Run(ctx context.Context) {
	for {
		if err := f.stream(ctx); err != nil && ctx.Err() == nil {
			f.log.WithError(err).Warn("ticker stream interrupted")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (f *Feed) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	subscribe := map[string]any{
		"event": "subscribe",
		"pair":  f.pairs,
		"subscription": map[string]string{
			"name": "ticker",
		},
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	f.log.WithField("pairs", f.pairs).Info("ticker subscription opened")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handle(data)
	}
}

// Ticker updates arrive as arrays: [channelID, payload, "ticker", pair].
// Everything else (events, heartbeats) is an object and is skipped.
func (f *Feed) handle(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 4 {
		return
	}
	var pair string
	if err := json.Unmarshal(frame[len(frame)-1], &pair); err != nil {
		return
	}
	var payload struct {
		Close []string `json:"c"`
	}
	if err := json.Unmarshal(frame[1], &payload); err != nil || len(payload.Close) == 0 {
		return
	}
	price, err := decimal.NewFromString(payload.Close[0])
	if err != nil {
		return
	}
	f.mu.Lock()
	f.prices[pair] = price
	f.mu.Unlock()
}
