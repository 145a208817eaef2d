package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"usos/internal/log"
)

const publishTimeout = 5 * time.Second

// AMQPClient publishes events to a topic exchange and consumes them back
type AMQPClient struct {
	conn     *amqp091.Connection
	mu       sync.Mutex // guards channel for publishing
	channel  *amqp091.Channel
	exchange string
	logger   *log.Logger
}

// NewAMQPClient dials the broker and declares the topic exchange
func NewAMQPClient(url, exchange string, logger *log.Logger) (*AMQPClient, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &AMQPClient{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger.WithComponent(log.ComponentAMQP),
	}

	if err := declareExchange(channel, exchange); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

func declareExchange(ch *amqp091.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

// Notify publishes the event under its routing key
func (c *AMQPClient) Notify(ctx context.Context, e Event) error {
	body, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	err = c.channel.PublishWithContext(
		ctx,
		c.exchange,     // exchange
		e.RoutingKey(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	c.logger.DebugContext(ctx, "Published event",
		log.FieldRoutingKey, e.RoutingKey(),
		log.FieldOperation, log.OpPublish)
	return nil
}

// Consume binds a queue to the exchange with bindingKey (e.g. "family.#")
// and hands every event to handler until ctx ends. An empty queue name
// declares a private queue that disappears with the connection.
// Undecodable messages are dropped; a failing handler gets one redelivery.
func (c *AMQPClient) Consume(ctx context.Context, queue, bindingKey string, handler func(context.Context, Event) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	durable := queue != ""
	q, err := ch.QueueDeclare(
		queue,    // name
		durable,  // durable
		!durable, // delete when unused
		!durable, // exclusive
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, bindingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming events", "queue", q.Name, "binding", bindingKey)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return nil
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *AMQPClient) handle(ctx context.Context, delivery amqp091.Delivery, handler func(context.Context, Event) error) {
	e, err := EventFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to decode event", log.FieldError, err)
		delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, e); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle event",
			log.FieldRoutingKey, delivery.RoutingKey,
			log.FieldError, err,
			"redelivered", delivery.Redelivered)
		delivery.Nack(false, !delivery.Redelivered)
		return
	}

	delivery.Ack(false)
}

// Close closes the channel and the connection
func (c *AMQPClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
