package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moodlocation/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient routes domain events through a topic exchange. Every event
// type gets a queue bound under its own routing key, so events published
// before a consumer attaches are kept until it does.
type RabbitMQClient struct {
	conn          *amqp.Connection
	exchange      string
	durable       bool
	autoDelete    bool
	prefetchCount int

	// mu guards pub and bound; an amqp channel must not be shared by
	// concurrent writers.
	mu    sync.Mutex
	pub   *amqp.Channel
	bound map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	r := &RabbitMQClient{
		conn:          conn,
		exchange:      exchange,
		durable:       cfg.QueueDurable,
		autoDelete:    cfg.QueueAutoDelete,
		prefetchCount: cfg.PrefetchCount,
		pub:           pub,
		bound:         map[string]bool{},
	}
	if err := r.declareExchange(pub); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return r, nil
}

// Publish sends an event with channel as its routing key.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.bound[channel] {
		if err := r.bindQueue(r.pub, channel); err != nil {
			return "", err
		}
		r.bound[channel] = true
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	deliveryMode := amqp.Transient
	if r.durable {
		deliveryMode = amqp.Persistent
	}

	id := newMessageID()
	err := r.pub.PublishWithContext(ctx, r.exchange, channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now().UTC(),
		MessageId:    id,
		Type:         attrs["type"],
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe consumes the events routed under channel on a dedicated amqp
// channel until ctx is done. A handler error requeues the delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}
	if err := r.declareExchange(ch); err != nil {
		return err
	}
	if err := r.bindQueue(ch, channel); err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, r.queueName(channel), "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, msg); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(r.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
}

func (r *RabbitMQClient) bindQueue(ch *amqp.Channel, channel string) error {
	queue, err := ch.QueueDeclare(r.queueName(channel), r.durable, r.autoDelete, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue for %s: %w", channel, err)
	}
	if err := ch.QueueBind(queue.Name, channel, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue for %s: %w", channel, err)
	}
	return nil
}

// queueName scopes event queues under the exchange name.
func (r *RabbitMQClient) queueName(channel string) string {
	return r.exchange + "." + channel
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
