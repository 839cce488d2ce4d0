package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/exchange"
)

// Monitor polls placed orders until they leave the open state. Every tracked
// order runs its own goroutine so a slow poll on one order never delays the
// others.
type Monitor struct {
	exchange  exchange.Exchange
	interval  time.Duration
	notify    func(text string)
	notifyErr func(text string)
	log       *logrus.Entry

	mu   sync.Mutex
	jobs map[string]chan struct{}
	wg   sync.WaitGroup
}

func New(ex exchange.Exchange, interval time.Duration, notify func(text string), log *logrus.Logger) *Monitor {
	return &Monitor{
		exchange: ex,
		interval: interval,
		notify:   notify,
		log:      log.WithField("component", "monitor"),
		jobs:     make(map[string]chan struct{}),
	}
}

// NotifyErrors forwards poll failures to fn in addition to logging them.
// Must be called before the first Track.
func (m *Monitor) NotifyErrors(fn func(text string)) {
	m.notifyErr = fn
}

// Track starts watching an order. Tracking an order twice is a no-op.
func (m *Monitor) Track(ctx context.Context, txid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[txid]; ok {
		return
	}
	stop := make(chan struct{})
	m.jobs[txid] = stop
	m.wg.Add(1)
	go m.watch(ctx, txid, stop)
	m.log.WithField("txid", txid).Info("tracking order")
}

// Remove stops watching an order. Unknown transaction ids are ignored, so
// removal after self-termination is safe.
func (m *Monitor) Remove(txid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stop, ok := m.jobs[txid]; ok {
		close(stop)
		delete(m.jobs, txid)
	}
}

// Tracked returns the transaction ids currently being watched.
func (m *Monitor) Tracked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	txids := make([]string, 0, len(m.jobs))
	for txid := range m.jobs {
		txids = append(txids, txid)
	}
	return txids
}

// Reconcile starts tracking every order currently open on the venue. Used at
// startup to pick up orders placed before the last restart.
func (m *Monitor) Reconcile(ctx context.Context) (int, error) {
	orders, err := m.exchange.OpenOrders(ctx)
	if err != nil {
		return 0, err
	}
	for _, order := range orders {
		m.Track(ctx, order.TxID)
	}
	return len(orders), nil
}

// Stop ends all watch goroutines and waits for them to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	for txid, stop := range m.jobs {
		close(stop)
		delete(m.jobs, txid)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) watch(ctx context.Context, txid string, stop chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if m.poll(ctx, txid) {
				m.Remove(txid)
				return
			}
		}
	}
}

// poll checks the order once and reports whether watching is finished. Only
// a closed or canceled status ends the watch; poll errors and every other
// status, expired included, leave the job active.
func (m *Monitor) poll(ctx context.Context, txid string) bool {
	info, err := m.exchange.QueryOrder(ctx, txid)
	if err != nil {
		m.log.WithError(err).WithField("txid", txid).Warn("order status check failed")
		if m.notifyErr != nil {
			m.notifyErr(fmt.Sprintf("Not possible to check order %s:\n%v", txid, err))
		}
		return false
	}
	switch info.Status {
	case core.OrderClosed:
		m.log.WithField("txid", txid).Info("order closed")
		if m.notify != nil {
			m.notify(fmt.Sprintf("Trade executed: %s\n%s", txid, info.Description))
		}
		return true
	case core.OrderCanceled:
		m.log.WithFields(logrus.Fields{"txid": txid, "status": info.Status}).Debug("order left the book")
		return true
	}
	return false
}
