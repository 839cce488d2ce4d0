package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Sender delivers one message to the operator's channel.
type Sender interface {
	Send(text string) error
}

// Queue decouples background notification producers (monitor, access guard)
// from the chat transport. Push never blocks: when the buffer is full the
// message is dropped and counted.
type Queue struct {
	sender  Sender
	ch      chan string
	log     *logrus.Entry
	dropped atomic.Int64
	wg      sync.WaitGroup
}

func NewQueue(sender Sender, size int, log *logrus.Logger) *Queue {
	return &Queue{
		sender: sender,
		ch:     make(chan string, size),
		log:    log.WithField("component", "notify"),
	}
}

// Start runs the delivery loop until the context ends.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case text := <-q.ch:
				if err := q.sender.Send(text); err != nil {
					q.log.WithError(err).Warn("notification delivery failed")
				}
			}
		}
	}()
}

// Push enqueues a notification without blocking the caller.
func (q *Queue) Push(text string) {
	select {
	case q.ch <- text:
	default:
		q.dropped.Add(1)
		q.log.WithField("dropped_total", q.dropped.Load()).Warn("notification buffer full, dropping")
	}
}

// Dropped returns how many notifications were discarded due to a full
// buffer.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Wait blocks until the delivery loop has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}
