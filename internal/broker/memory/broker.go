// Package memory provides an in-process broker implementation reproducing
// the retry count, delayed re-delivery and dead-letter protocol. It backs
// tests and single-process runs without a broker server.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/datasieve/datasieve/internal/broker"
)

type message struct {
	body  []byte
	count int64
	tag   uint64
}

// Broker implements broker.Broker with in-process queues. The retry delay
// is configurable so tests can run the full retry cycle quickly.
type Broker struct {
	mu      sync.Mutex
	main    chan message
	dead    []message
	nextTag uint64
	closed  bool

	// RetryDelay stands in for the retry queue TTL.
	RetryDelay time.Duration
}

// NewBroker creates a broker with a buffered main queue.
func NewBroker() *Broker {
	return &Broker{main: make(chan message, 1024)}
}

// SetupTopology is a no-op; the in-process queues always exist.
func (b *Broker) SetupTopology(ctx context.Context) error { return nil }

// Publish routes the message to the main queue when the routing key matches
// the application binding, and drops it otherwise.
func (b *Broker) Publish(ctx context.Context, routingKey string, body []byte, count int64) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("%w: broker closed", broker.ErrBrokerSend)
	}
	b.nextTag++
	tag := b.nextTag
	b.mu.Unlock()

	if !routesToMain(routingKey) {
		return nil
	}

	buf := make([]byte, len(body))
	copy(buf, body)
	select {
	case b.main <- message{body: buf, count: count, tag: tag}:
		return nil
	default:
		return fmt.Errorf("%w: main queue full", broker.ErrBrokerSend)
	}
}

// routesToMain mirrors the topic bindings of the main queue: the wildcard
// application binding app.* plus direct delivery on the queue's own name.
func routesToMain(routingKey string) bool {
	if routingKey == "main_queue" {
		return true
	}
	rest, ok := strings.CutPrefix(routingKey, "app.")
	return ok && rest != "" && !strings.Contains(rest, ".")
}

// ConsumeSync pulls up to n queued messages without blocking.
func (b *Broker) ConsumeSync(ctx context.Context, n int) ([]broker.Delivery, error) {
	out := make([]broker.Delivery, 0, n)
	for i := 0; i < n; i++ {
		select {
		case msg := <-b.main:
			out = append(out, b.wrap(msg))
		default:
			return out, nil
		}
	}
	return out, nil
}

// Consume blocks reading the main queue until ctx is cancelled.
func (b *Broker) Consume(ctx context.Context, onMessage, onDead broker.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.main:
			d := b.wrap(msg)
			if d.Count >= broker.MaxRetries {
				onDead(ctx, d)
			} else {
				onMessage(ctx, d)
			}
		}
	}
}

func (b *Broker) wrap(msg message) broker.Delivery {
	return broker.NewDelivery(msg.body, msg.count, msg.tag,
		func() error { return nil },
		func() error { return b.retry(msg) },
		func() error { return b.discard(msg) },
	)
}

// retry re-enqueues the message on the main queue with count+1 after the
// retry delay, standing in for the retry queue's TTL dead-lettering.
func (b *Broker) retry(msg message) error {
	requeue := func() {
		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return
		}
		select {
		case b.main <- message{body: msg.body, count: msg.count + 1, tag: msg.tag}:
		default:
		}
	}
	if b.RetryDelay <= 0 {
		requeue()
		return nil
	}
	time.AfterFunc(b.RetryDelay, requeue)
	return nil
}

func (b *Broker) discard(msg message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = append(b.dead, msg)
	return nil
}

// DeadLetters returns the bodies of messages that were discarded to the
// terminal queue, in arrival order.
func (b *Broker) DeadLetters() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.dead))
	for i, msg := range b.dead {
		out[i] = msg.body
	}
	return out
}

// QueueLen returns the number of messages waiting on the main queue.
func (b *Broker) QueueLen() int {
	return len(b.main)
}

// Close marks the broker closed. Pending retries are dropped.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
