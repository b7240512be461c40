// Package rabbit provides the RabbitMQ broker implementation.
package rabbit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/datasieve/datasieve/internal/broker"
)

// Config holds RabbitMQ connection and topology configuration.
type Config struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	Exchange       string `json:"exchange" yaml:"exchange"`
	QueueName      string `json:"queue_name" yaml:"queue_name"`
	QueueRetry     string `json:"queue_retry" yaml:"queue_retry"`
	QueueDLQ       string `json:"queue_dlq" yaml:"queue_dlq"`
	QueueTTLMillis int    `json:"queue_ttl_milliseconds" yaml:"queue_ttl_milliseconds"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           5672,
		Username:       "guest",
		Password:       "guest",
		Exchange:       "datasieve",
		QueueName:      "main_queue",
		QueueRetry:     "retry_queue",
		QueueDLQ:       "dlq_queue",
		QueueTTLMillis: 30000,
	}
}

// URL returns the AMQP connection URL.
func (c Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

// dlxName is the dead-letter exchange paired with the application exchange.
func (c Config) dlxName() string {
	return c.Exchange + ".dlx"
}

// Broker implements broker.Broker over RabbitMQ.
type Broker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  Config
	logger  *slog.Logger
}

// NewBroker dials the broker, opens a channel and declares the topology.
func NewBroker(config Config, logger *slog.Logger) (*Broker, error) {
	conn, err := amqp.Dial(config.URL())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s:%d: %v", broker.ErrBrokerConnection, config.Host, config.Port, err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %v", broker.ErrBrokerConnection, err)
	}

	b := &Broker{conn: conn, channel: channel, config: config, logger: logger}
	if err := b.SetupTopology(context.Background()); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

// SetupTopology declares the application and dead-letter exchanges, the
// three queues and their bindings. Safe to call repeatedly.
func (b *Broker) SetupTopology(ctx context.Context) error {
	c := b.config

	if err := b.channel.ExchangeDeclare(c.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare exchange %q: %v", broker.ErrBrokerConnection, c.Exchange, err)
	}
	if err := b.channel.ExchangeDeclare(c.dlxName(), "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare exchange %q: %v", broker.ErrBrokerConnection, c.dlxName(), err)
	}

	// Main queue dead-letters straight to the terminal queue.
	if _, err := b.channel.QueueDeclare(c.QueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    c.dlxName(),
		"x-dead-letter-routing-key": c.QueueDLQ,
	}); err != nil {
		return fmt.Errorf("%w: declare queue %q: %v", broker.ErrBrokerConnection, c.QueueName, err)
	}

	// Retry queue holds messages for the TTL, then dead-letters them back
	// to the application exchange for re-delivery.
	if _, err := b.channel.QueueDeclare(c.QueueRetry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    c.Exchange,
		"x-dead-letter-routing-key": c.QueueName,
		"x-message-ttl":             int32(c.QueueTTLMillis),
	}); err != nil {
		return fmt.Errorf("%w: declare queue %q: %v", broker.ErrBrokerConnection, c.QueueRetry, err)
	}

	if _, err := b.channel.QueueDeclare(c.QueueDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare queue %q: %v", broker.ErrBrokerConnection, c.QueueDLQ, err)
	}

	bindings := []struct {
		queue, key, exchange string
	}{
		{c.QueueName, "app.*", c.Exchange},
		{c.QueueName, c.QueueName, c.Exchange},
		{c.QueueRetry, c.QueueRetry, c.dlxName()},
		{c.QueueDLQ, c.QueueDLQ, c.dlxName()},
	}
	for _, bd := range bindings {
		if err := b.channel.QueueBind(bd.queue, bd.key, bd.exchange, false, nil); err != nil {
			return fmt.Errorf("%w: bind %q to %q: %v", broker.ErrBrokerConnection, bd.queue, bd.exchange, err)
		}
	}
	return nil
}

// Publish sends a persistent message on the application exchange.
func (b *Broker) Publish(ctx context.Context, routingKey string, body []byte, count int64) error {
	return b.publishOn(ctx, b.config.Exchange, routingKey, body, count)
}

func (b *Broker) publishOn(ctx context.Context, exchange, routingKey string, body []byte, count int64) error {
	err := b.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"count": count},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish %q: %v", broker.ErrBrokerSend, routingKey, err)
	}
	return nil
}

// ConsumeSync pulls up to n messages from the main queue without blocking.
func (b *Broker) ConsumeSync(ctx context.Context, n int) ([]broker.Delivery, error) {
	out := make([]broker.Delivery, 0, n)
	for i := 0; i < n; i++ {
		msg, ok, err := b.channel.Get(b.config.QueueName, false)
		if err != nil {
			return out, fmt.Errorf("%w: get from %q: %v", broker.ErrBrokerConnection, b.config.QueueName, err)
		}
		if !ok {
			break
		}
		out = append(out, b.wrap(msg))
	}
	return out, nil
}

// Consume blocks reading the main queue until ctx is cancelled. Messages
// that exhausted their retry budget go to onDead.
func (b *Broker) Consume(ctx context.Context, onMessage, onDead broker.Handler) error {
	deliveries, err := b.channel.Consume(b.config.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%w: consume %q: %v", broker.ErrBrokerConnection, b.config.QueueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%w: delivery channel closed", broker.ErrBrokerConnection)
			}
			b.dispatch(ctx, b.wrap(msg), onMessage, onDead)
		}
	}
}

func (b *Broker) dispatch(ctx context.Context, d broker.Delivery, onMessage, onDead broker.Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("message handler panic", slog.Any("panic", r), slog.Uint64("tag", d.Tag))
			_ = d.Discard()
		}
	}()
	if d.Count >= broker.MaxRetries {
		onDead(ctx, d)
		return
	}
	onMessage(ctx, d)
}

func (b *Broker) wrap(msg amqp.Delivery) broker.Delivery {
	count := countFromHeaders(msg.Headers)
	return broker.NewDelivery(msg.Body, count, msg.DeliveryTag,
		func() error { return msg.Ack(false) },
		func() error { return b.rejectWithRetry(msg, count) },
		func() error { return msg.Nack(false, false) },
	)
}

// rejectWithRetry republishes the body on the retry queue with count+1,
// then acks the original so it leaves the main queue.
func (b *Broker) rejectWithRetry(msg amqp.Delivery, count int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.publishOn(ctx, b.config.dlxName(), b.config.QueueRetry, msg.Body, count+1); err != nil {
		return err
	}
	return msg.Ack(false)
}

// Close shuts the channel and connection.
func (b *Broker) Close() error {
	if err := b.channel.Close(); err != nil {
		_ = b.conn.Close()
		return fmt.Errorf("%w: close channel: %v", broker.ErrBrokerConnection, err)
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("%w: close connection: %v", broker.ErrBrokerConnection, err)
	}
	return nil
}

// countFromHeaders reads the retry counter, tolerating the integer widths
// AMQP clients use for header values.
func countFromHeaders(headers amqp.Table) int64 {
	if headers == nil {
		return 0
	}
	switch v := headers["count"].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
