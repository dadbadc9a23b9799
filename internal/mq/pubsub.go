package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/moodlocation/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubClient publishes domain events to Google Cloud Pub/Sub, one topic
// per event type named <prefix><event type>.
type PubSubClient struct {
	client             *pubsub.Client
	topicPrefix        string
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:             client,
		topicPrefix:        cfg.TopicPrefix,
		subscriptionSuffix: cfg.SubscriptionSuffix,
		topics:             map[string]*pubsub.Topic{},
	}, nil
}

// Publish sends an event and waits for the server-assigned message id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

// Subscribe receives events of one type through a shared subscription until
// ctx is done. A handler error nacks the message for redelivery.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub := p.client.Subscription(p.subscriptionName(channel))
	found, err := sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !found {
		sub, err = p.client.CreateSubscription(ctx, sub.ID(), pubsub.SubscriptionConfig{Topic: topic})
		if err != nil {
			return err
		}
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := handler(ctx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached handle for an event type, creating the topic on
// first use.
func (p *PubSubClient) topic(ctx context.Context, channel string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if topic, ok := p.topics[channel]; ok {
		return topic, nil
	}

	id := p.topicID(channel)
	topic := p.client.Topic(id)
	found, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		if topic, err = p.client.CreateTopic(ctx, id); err != nil {
			return nil, err
		}
	}
	p.topics[channel] = topic
	return topic, nil
}

// topicID maps an event type onto a topic id. Pub/Sub ids must start with
// a letter, which the default "moodlocation-" prefix guarantees.
func (p *PubSubClient) topicID(channel string) string {
	return p.topicPrefix + channel
}

func (p *PubSubClient) subscriptionName(channel string) string {
	return p.topicID(channel) + p.subscriptionSuffix
}
