package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes loan events to a single topic. The client is created lazily
// on first publish so a missing Pub/Sub does not block startup.
type PubSubPublisher struct {
	ProjectID       string
	CredentialsJSON string
	TopicName       string
	Logger          *logrus.Logger

	mu     sync.Mutex
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher(settings *Settings, logg *logrus.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		ProjectID:       settings.PubSubProjectID,
		CredentialsJSON: settings.PubSubCredentialsJSON,
		TopicName:       settings.LoanEventsTopic,
		Logger:          logg,
	}
}

func (p *PubSubPublisher) getTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	if p.ProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	if p.TopicName == "" {
		return nil, errors.New("LOAN_EVENTS_TOPIC is required")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if p.CredentialsJSON != "" {
		c, err = pubsub.NewClient(ctx, p.ProjectID, option.WithCredentialsJSON([]byte(p.CredentialsJSON)))
	} else {
		// Application Default Credentials
		c, err = pubsub.NewClient(ctx, p.ProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}

	t, err := createTopicIfNotExists(ctx, c, p.TopicName)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	p.client = c
	p.topic = t
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"field":      "pubsub",
			"project_id": p.ProjectID,
			"topic":      p.TopicName,
		}).Info("pubsub publisher ready")
	}
	return t, nil
}

// Publish sends data with attrs and waits for the server-assigned message id.
func (p *PubSubPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	t, err := p.getTopic(ctx)
	if err != nil {
		return "", err
	}
	pubCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	result := t.Publish(pubCtx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	return result.Get(pubCtx)
}

func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
		p.topic = nil
	}
	if p.client != nil {
		err := p.client.Close()
		p.client = nil
		return err
	}
	return nil
}

func createTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}
