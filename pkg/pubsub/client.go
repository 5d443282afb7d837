// Package pubsub wraps the Google Cloud Pub/Sub client for the catalog
// domain topic and its cache-invalidation subscription.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub domain topic is required")
	errNotProvisioned    = errors.New("pubsub resource is not provisioned")
	errNoClient          = errors.New("pubsub client not initialized")
)

type Client struct {
	gcp       *pubsub.Client
	projectID string
	topic     string
	sub       string
}

// NewClient dials Pub/Sub. Consumers pass needSubscription so a missing
// subscription fails startup instead of the first Receive.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, needSubscription bool, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case strings.TrimSpace(cfg.DomainTopic) == "":
		return nil, errTopicRequired
	}

	raw, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{gcp: raw, projectID: projectID, topic: cfg.DomainTopic, sub: cfg.DomainSubscription}

	if needSubscription {
		if err := c.checkSubscription(ctx); err != nil {
			_ = raw.Close()
			return nil, err
		}
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project":      projectID,
			"topic":        c.topic,
			"subscription": c.sub,
		}), "pubsub.connected")
	}
	return c, nil
}

func (c *Client) checkSubscription(ctx context.Context) error {
	name := qualify(c.projectID, kindSubscription, c.sub)
	if name == "" {
		return fmt.Errorf("%w: subscription name is empty", errNotProvisioned)
	}
	_, err := c.gcp.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	return describeLookup(name, err)
}

func (c *Client) checkTopic(ctx context.Context) error {
	name := qualify(c.projectID, kindTopic, c.topic)
	_, err := c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	return describeLookup(name, err)
}

func describeLookup(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%w: %s", errNotProvisioned, name)
	default:
		return fmt.Errorf("looking up %s: %w", name, err)
	}
}

// Subscription returns a subscriber for a short ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.gcp == nil {
		return nil
	}
	if full := qualify(c.projectID, kindSubscription, name); full != "" {
		return c.gcp.Subscriber(full)
	}
	return nil
}

func (c *Client) DomainSubscription() *pubsub.Subscriber {
	return c.Subscription(c.sub)
}

// Publisher returns a publisher for a short ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	if full := qualify(c.projectID, kindTopic, name); full != "" {
		return c.gcp.Publisher(full)
	}
	return nil
}

// Ping confirms the domain topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errNoClient
	}
	return c.checkTopic(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	return c.gcp.Close()
}

// qualify expands a short ID into projects/<project>/<kind>/<id>. Names that
// are already qualified pass through; blank input yields "".
func qualify(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if projectID = strings.TrimSpace(projectID); projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
