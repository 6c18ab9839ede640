// Package pubsub publishes notification pushes to a Google Cloud Pub/Sub
// topic consumed by the mobile push relay.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/orro3790/drive-sub008/pkg/config"
	"github.com/orro3790/drive-sub008/pkg/logger"
)

// OrderingAttribute names the message attribute used as ordering key, so one
// driver's pushes arrive in the order they were sent.
const OrderingAttribute = "user_id"

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub notification topic is required")
	errNotInitialized    = errors.New("pubsub publisher not initialized")
)

type Client struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
	timeout   time.Duration
}

// NewClient connects and fails fast when the topic is missing; topics are
// provisioned by infrastructure, never created here.
func NewClient(ctx context.Context, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(cfg.ProjectID)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case strings.TrimSpace(cfg.NotificationTopic) == "":
		return nil, errTopicRequired
	}

	psClient, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:  psClient,
		topic:   topicName(project, cfg.NotificationTopic),
		timeout: cfg.PublishTimeout,
	}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}
	c.publisher = psClient.Publisher(c.topic)
	c.publisher.EnableMessageOrdering = true

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topic), "pubsub publisher ready")
	}
	return c, nil
}

// Publish blocks until the server acknowledges the message or the publish
// timeout passes.
func (c *Client) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	if c == nil || c.publisher == nil {
		return "", errNotInitialized
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	key := attrs[OrderingAttribute]
	id, err := c.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: key}).Get(ctx)
	if err != nil && key != "" {
		// A failed ordered publish pauses its key until resumed.
		c.publisher.ResumePublish(key)
	}
	return id, err
}

// Ping checks that the topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.topic)
	default:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
}

// Close flushes pending publishes.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}

// topicName accepts a short topic id or a full resource name.
func topicName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" || strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return "projects/" + project + "/topics/" + topic
}
