// Package broker defines the message broker port: publishing job messages,
// consuming them with a bounded retry protocol, and terminal dead-lettering.
package broker

import (
	"context"
	"errors"
)

// MaxRetries is the number of delivery attempts a message gets before it is
// handed to the dead-letter callback.
const MaxRetries = 5

// Common errors
var (
	ErrBrokerConnection = errors.New("broker connection error")
	ErrBrokerSend       = errors.New("broker publish failed")
)

// Delivery is one consumed message. Exactly one of Ack, Retry or Discard
// must be called to resolve it.
type Delivery struct {
	Body  []byte
	Count int64
	Tag   uint64

	ack     func() error
	retry   func() error
	discard func() error
}

// NewDelivery builds a delivery with backend-supplied resolution callbacks.
// Backends call this; consumers only resolve.
func NewDelivery(body []byte, count int64, tag uint64, ack, retry, discard func() error) Delivery {
	return Delivery{Body: body, Count: count, Tag: tag, ack: ack, retry: retry, discard: discard}
}

// Ack confirms the message and removes it from the queue.
func (d Delivery) Ack() error { return d.ack() }

// Retry republishes the message on the retry queue with the attempt count
// incremented, then acks the original. The retry queue's TTL delays the
// re-delivery to the main queue.
func (d Delivery) Retry() error { return d.retry() }

// Discard rejects the message without requeue, dead-lettering it to the
// terminal queue.
func (d Delivery) Discard() error { return d.discard() }

// Handler processes one delivery and resolves it.
type Handler func(ctx context.Context, d Delivery)

// Broker is the messaging contract. Implementations must be safe for use by
// one publisher and one consumer goroutine.
type Broker interface {
	// SetupTopology declares the exchanges, queues and bindings. Idempotent.
	SetupTopology(ctx context.Context) error

	// Publish sends a persistent JSON message on the application exchange
	// with the given routing key and retry count header.
	Publish(ctx context.Context, routingKey string, body []byte, count int64) error

	// ConsumeSync pulls up to n messages from the main queue without
	// blocking, stopping early when the queue is empty.
	ConsumeSync(ctx context.Context, n int) ([]Delivery, error)

	// Consume blocks reading the main queue until ctx is cancelled.
	// Messages whose count has reached MaxRetries go to onDead instead of
	// onMessage. A handler panic resolves the message with Discard.
	Consume(ctx context.Context, onMessage, onDead Handler) error

	Close() error
}
